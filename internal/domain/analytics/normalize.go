// Package analytics derives summary statistics, daily time-series and
// workload insights from a list of calendar events.
//
// Every function in this package is pure: inputs are never mutated, outputs
// are freshly allocated and nothing depends on the wall clock. Events that
// are all-day or whose start/end cannot be parsed are dropped silently.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/okian/calpulse/internal/domain/model"
)

// DateLayout is the calendar-date format used for keys and date ranges.
const DateLayout = "2006-01-02"

// instantLayout renders gap boundaries as UTC with millisecond precision.
const instantLayout = "2006-01-02T15:04:05.000Z07:00"

// instantLayouts are tried in order when parsing event start/end values.
// Zone-less layouts are read as UTC; the Graph client asks for UTC times.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DateLayout,
}

// normalizedEvent is a timed event with parsed instants.
type normalizedEvent struct {
	event    *model.CalendarEvent
	start    time.Time
	end      time.Time
	duration int // minutes
}

// dateKey returns the UTC calendar date of the event start.
func (e normalizedEvent) dateKey() string {
	return e.start.UTC().Format(DateLayout)
}

// normalize filters out all-day and unparsable events and returns the rest
// sorted by start. Ties keep their input order.
func normalize(events []model.CalendarEvent) []normalizedEvent {
	out := make([]normalizedEvent, 0, len(events))
	for i := range events {
		ev := &events[i]
		if ev.IsAllDay || ev.Start.DateTime == "" || ev.End.DateTime == "" {
			continue
		}
		start, ok := parseInstant(ev.Start.DateTime)
		if !ok {
			continue
		}
		end, ok := parseInstant(ev.End.DateTime)
		if !ok {
			continue
		}
		out = append(out, normalizedEvent{
			event:    ev,
			start:    start,
			end:      end,
			duration: minutesBetween(start, end),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].start.Before(out[j].start)
	})
	return out
}

// parseInstant parses an event timestamp in any of the accepted layouts.
func parseInstant(value string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDate parses a YYYY-MM-DD string as UTC midnight. Full timestamps are
// accepted and truncated to their UTC date.
func parseDate(value string) (time.Time, bool) {
	if t, err := time.ParseInLocation(DateLayout, value, time.UTC); err == nil {
		return t, true
	}
	t, ok := parseInstant(value)
	if !ok {
		return time.Time{}, false
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// gapsBetween returns the positive gaps between adjacent events of a sorted
// slice. Overlapping and back-to-back pairs produce nothing.
func gapsBetween(events []normalizedEvent) []Gap {
	gaps := make([]Gap, 0)
	for i := 0; i+1 < len(events); i++ {
		from := events[i].end
		to := events[i+1].start
		if !to.After(from) {
			continue
		}
		gaps = append(gaps, Gap{
			Start:    from.UTC().Format(instantLayout),
			End:      to.UTC().Format(instantLayout),
			Duration: minutesBetween(from, to),
		})
	}
	return gaps
}

// minutesBetween returns the rounded number of minutes from a to b.
func minutesBetween(a, b time.Time) int {
	return int(jsRound(float64(b.Sub(a)) / float64(time.Minute)))
}

// jsRound rounds half up, towards positive infinity.
func jsRound(x float64) float64 {
	return math.Floor(x + 0.5)
}

// round2 rounds to two decimal places.
func round2(x float64) float64 {
	return jsRound(x*100) / 100
}

// sortedKeys returns the keys of a per-day map in ascending date order, which
// is also the order in which the days were first seen in a sorted event list.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
