package analytics

import (
	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/internal/domain/types"
)

// AnalyzeRange computes aggregate metadata for events. startDate and endDate
// are echoed in the result and are not used to filter events; callers pass
// only the events of the intended window.
func AnalyzeRange(events []model.CalendarEvent, startDate, endDate string) RangeMetadata {
	valid := normalize(events)

	totalDuration := 0
	eventsPerDay := make(map[string]int)
	for _, ev := range valid {
		totalDuration += ev.duration
		eventsPerDay[ev.dateKey()]++
	}

	averageDuration := 0.0
	if len(valid) > 0 {
		averageDuration = float64(totalDuration) / float64(len(valid))
	}

	gaps := gapsBetween(valid)
	totalGap := 0
	for _, g := range gaps {
		totalGap += g.Duration
	}
	averageGap := 0.0
	if len(gaps) > 0 {
		averageGap = float64(totalGap) / float64(len(gaps))
	}

	return RangeMetadata{
		DateRange:         types.DateRange{Start: startDate, End: endDate},
		TotalEvents:       len(valid),
		TotalDuration:     totalDuration,
		AverageDuration:   round2(averageDuration),
		EventsPerDay:      eventsPerDay,
		Gaps:              gaps,
		AverageGap:        round2(averageGap),
		TotalMeetingHours: round2(float64(totalDuration) / 60),
	}
}
