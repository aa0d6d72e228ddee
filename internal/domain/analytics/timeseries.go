package analytics

import (
	"github.com/okian/calpulse/internal/domain/model"
)

// AnalyzeTimeSeries computes one DailyMetric for every day from startDate to
// endDate inclusive, including days without events. Events starting outside
// the range are ignored. Unparsable dates produce an empty series.
func AnalyzeTimeSeries(events []model.CalendarEvent, startDate, endDate string) TimeSeriesData {
	valid := normalize(events)

	byDate := make(map[string][]normalizedEvent)
	for _, ev := range valid {
		key := ev.dateKey()
		byDate[key] = append(byDate[key], ev)
	}

	days := dateSequence(startDate, endDate)
	metrics := make([]DailyMetric, 0, len(days))
	for _, day := range days {
		metrics = append(metrics, dailyMetric(day, byDate[day]))
	}

	return TimeSeriesData{
		Metrics: metrics,
		Summary: summarize(metrics),
	}
}

// dateSequence lists every UTC date from start to end inclusive.
func dateSequence(startDate, endDate string) []string {
	start, ok := parseDate(startDate)
	if !ok {
		return nil
	}
	end, ok := parseDate(endDate)
	if !ok {
		return nil
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

// dailyMetric computes the metric of one day from its own sorted events.
// Gaps never cross into a neighbouring day.
func dailyMetric(date string, dayEvents []normalizedEvent) DailyMetric {
	totalDuration := 0
	for _, ev := range dayEvents {
		totalDuration += ev.duration
	}

	m := DailyMetric{
		Date:          date,
		MeetingCount:  len(dayEvents),
		MeetingHours:  round2(float64(totalDuration) / 60),
		TotalDuration: totalDuration,
	}
	if len(dayEvents) > 0 {
		m.AverageDuration = round2(float64(totalDuration) / float64(len(dayEvents)))
	}

	gaps := gapsBetween(dayEvents)
	if len(gaps) == 0 {
		return m
	}
	sum := 0
	m.LongestGap = gaps[0].Duration
	m.ShortestGap = gaps[0].Duration
	for _, g := range gaps {
		sum += g.Duration
		if g.Duration > m.LongestGap {
			m.LongestGap = g.Duration
		}
		if g.Duration < m.ShortestGap {
			m.ShortestGap = g.Duration
		}
	}
	m.AverageGap = round2(float64(sum) / float64(len(gaps)))
	return m
}

// summarize derives the range summary. Averages are taken over every day,
// empty ones included.
func summarize(metrics []DailyMetric) TimeSeriesSummary {
	s := TimeSeriesSummary{TotalDays: len(metrics)}
	if len(metrics) == 0 {
		return s
	}

	totalMeetings := 0
	totalHours := 0.0
	for _, m := range metrics {
		totalMeetings += m.MeetingCount
		totalHours += m.MeetingHours

		// first strictly greater count wins
		if m.MeetingCount > s.PeakDay.Count {
			s.PeakDay = DayCount{Date: m.Date, Count: m.MeetingCount}
		}
	}

	s.QuietestDay = DayCount{Date: metrics[0].Date, Count: metrics[0].MeetingCount}
	for _, m := range metrics[1:] {
		if m.MeetingCount < s.QuietestDay.Count {
			s.QuietestDay = DayCount{Date: m.Date, Count: m.MeetingCount}
		}
	}

	days := float64(len(metrics))
	s.AverageMeetingsPerDay = round2(float64(totalMeetings) / days)
	s.AverageHoursPerDay = round2(totalHours / days)
	return s
}
