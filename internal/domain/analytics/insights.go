package analytics

import (
	"fmt"

	"github.com/okian/calpulse/internal/domain/model"
)

// Rule thresholds.
const (
	overloadMeetingsPerDay = 6
	overloadMeetingHours   = 30
	highLoadDayCount       = 6
	focusGapMinutes        = 60
	limitedFocusAvgGap     = 30
	shortGapMinutes        = 15
	backToBackMinGaps      = 3
	longMeetingMinutes     = 60
	balancedAvgGap         = 30

	poorBalanceHours        = 35
	poorBalanceMeetings     = 7
	moderateBalanceHours    = 25
	moderateBalanceMeetings = 5
)

// busiestDayLayout renders a date like "Monday, Jan 1".
const busiestDayLayout = "Monday, Jan 2"

// ClassifyBalance grades work-life balance from total meeting hours and the
// average number of meetings per day.
func ClassifyBalance(totalHours, meetingsPerDay float64) Balance {
	switch {
	case totalHours > poorBalanceHours || meetingsPerDay > poorBalanceMeetings:
		return BalancePoor
	case totalHours > moderateBalanceHours || meetingsPerDay > moderateBalanceMeetings:
		return BalanceModerate
	default:
		return BalanceGood
	}
}

// insightSet collects insights and de-duplicated recommendations in the
// order they were produced.
type insightSet struct {
	insights        []Insight
	recommendations []string
	seen            map[string]struct{}
}

func (s *insightSet) add(in Insight, recommendations ...string) {
	s.insights = append(s.insights, in)
	for _, r := range recommendations {
		if _, ok := s.seen[r]; ok {
			continue
		}
		s.seen[r] = struct{}{}
		s.recommendations = append(s.recommendations, r)
	}
}

// GenerateInsights applies the workload rules to metadata, which must be the
// AnalyzeRange result for the same events. Every rule is evaluated; several
// insights can be emitted together.
func GenerateInsights(events []model.CalendarEvent, metadata RangeMetadata) CalendarInsights {
	set := &insightSet{
		insights:        make([]Insight, 0),
		recommendations: make([]string, 0),
		seen:            make(map[string]struct{}),
	}

	longMeetings := 0
	for _, ev := range normalize(events) {
		if ev.duration > longMeetingMinutes {
			longMeetings++
		}
	}

	busiest := DayCount{}
	highLoadDays := 0
	for _, day := range sortedKeys(metadata.EventsPerDay) {
		count := metadata.EventsPerDay[day]
		if count > busiest.Count {
			busiest = DayCount{Date: day, Count: count}
		}
		if count >= highLoadDayCount {
			highLoadDays++
		}
	}

	activeDays := len(metadata.EventsPerDay)
	if activeDays < 1 {
		activeDays = 1
	}
	meetingsPerDay := float64(metadata.TotalEvents) / float64(activeDays)

	overload := meetingsPerDay > overloadMeetingsPerDay || metadata.TotalMeetingHours > overloadMeetingHours

	longGaps, shortGaps, focusMinutes := 0, 0, 0
	for _, g := range metadata.Gaps {
		if g.Duration >= focusGapMinutes {
			longGaps++
			focusMinutes += g.Duration
		}
		if g.Duration < shortGapMinutes {
			shortGaps++
		}
	}
	focusAvailable := longGaps > 0

	balance := ClassifyBalance(metadata.TotalMeetingHours, meetingsPerDay)

	if overload {
		set.add(Insight{
			Type:  InsightWarning,
			Title: "High Meeting Load Detected",
			Description: fmt.Sprintf("You have %.1f meeting hours this week with an average of %.1f meetings per day.",
				metadata.TotalMeetingHours, meetingsPerDay),
			Priority:   PriorityHigh,
			Actionable: "Consider blocking focus time and declining non-essential meetings.",
		},
			"Block 2-3 hours daily for focused work",
			"Review recurring meetings - can any be reduced in frequency?",
		)
	}

	if busiest.Count > 0 {
		set.add(Insight{
			Type:        InsightInfo,
			Title:       "Busiest Day",
			Description: fmt.Sprintf("%s is your busiest day with %d meetings.", displayDate(busiest.Date), busiest.Count),
			Priority:    PriorityMedium,
			Actionable:  "Prepare in advance and block buffer time before/after.",
		})
	}

	switch {
	case focusAvailable:
		set.add(Insight{
			Type:  InsightSuccess,
			Title: "Focus Time Available",
			Description: fmt.Sprintf("You have %d gaps of 60+ minutes totaling %d hours that could be used for focused work.",
				longGaps, int(jsRound(float64(focusMinutes)/60))),
			Priority:   PriorityMedium,
			Actionable: "Block these times in your calendar to protect them.",
		}, "Schedule deep work during identified focus time slots")
	case len(metadata.Gaps) > 0 && metadata.AverageGap < limitedFocusAvgGap:
		set.add(Insight{
			Type:  InsightWarning,
			Title: "Limited Focus Time",
			Description: fmt.Sprintf("Your average gap between meetings is only %d minutes, leaving little time for focused work.",
				int(jsRound(metadata.AverageGap))),
			Priority:   PriorityHigh,
			Actionable: "Consider scheduling longer breaks between meetings.",
		}, "Aim for at least 30-minute buffers between meetings")
	}

	if shortGaps > backToBackMinGaps {
		set.add(Insight{
			Type:  InsightWarning,
			Title: "Back-to-Back Meetings",
			Description: fmt.Sprintf("You have %d gaps of less than 15 minutes between meetings, which can lead to meeting fatigue.",
				shortGaps),
			Priority:   PriorityMedium,
			Actionable: "Add buffer time between meetings to allow for breaks and preparation.",
		}, "Add 15-minute buffers between consecutive meetings")
	}

	if metadata.AverageDuration > longMeetingMinutes {
		set.add(Insight{
			Type:  InsightSuggestion,
			Title: "Long Average Meeting Duration",
			Description: fmt.Sprintf("Your average meeting is %d minutes. Consider if some meetings could be shorter.",
				int(jsRound(metadata.AverageDuration))),
			Priority:   PriorityLow,
			Actionable: "Try defaulting to 25 or 45-minute meetings instead of 30 or 60.",
		}, "Experiment with shorter default meeting durations")
	}

	if highLoadDays > 0 {
		set.add(Insight{
			Type:        InsightWarning,
			Title:       "Multiple High-Meeting Days",
			Description: fmt.Sprintf("You have %d day(s) with 6+ meetings, which can be overwhelming.", highLoadDays),
			Priority:    PriorityHigh,
			Actionable:  "Distribute meetings more evenly across the week if possible.",
		})
	}

	if !overload && metadata.AverageGap >= balancedAvgGap && balance == BalanceGood {
		set.add(Insight{
			Type:        InsightSuccess,
			Title:       "Well-Balanced Schedule",
			Description: "Your calendar shows good balance with adequate time between meetings.",
			Priority:    PriorityLow,
		})
	}

	if metadata.TotalEvents == 0 {
		set.add(Insight{
			Type:        InsightInfo,
			Title:       "No Meetings Found",
			Description: "No meetings found in the selected date range.",
			Priority:    PriorityLow,
		})
	}

	return CalendarInsights{
		Insights: set.insights,
		Patterns: Patterns{
			BusiestDay:            busiest,
			AverageMeetingsPerDay: round2(meetingsPerDay),
			MeetingOverload:       overload,
			FocusTimeAvailable:    focusAvailable,
			WorkLifeBalance:       balance,
			LongMeetingCount:      longMeetings,
		},
		Recommendations: set.recommendations,
	}
}

// displayDate renders a YYYY-MM-DD key as e.g. "Monday, Jan 1".
func displayDate(date string) string {
	t, ok := parseDate(date)
	if !ok {
		return date
	}
	return t.Format(busiestDayLayout)
}
