package testevents

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/okian/calpulse/internal/domain/model"
)

// Errors returned by the generator.
var (
	ErrInvalidDate      = errors.New("invalid date format, use YYYY-MM-DD")
	ErrInvalidDateRange = errors.New("start date must be before end date")
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1 << 53
)

// Rand is the random source used by the generator. Float64 returns a value
// in [0, 1).
type Rand interface {
	Float64() float64
}

// cryptoRand draws from crypto/rand.
type cryptoRand struct{}

func (cryptoRand) Float64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	if err != nil {
		return 0
	}
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// NewRand returns the default crypto-backed random source.
func NewRand() Rand { return cryptoRand{} }

// GeneratorConfig describes the events to generate. Zero counts and
// durations fall back to the package defaults.
type GeneratorConfig struct {
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	EventsPerDay int    `json:"eventsPerDay"`
	MinDuration  int    `json:"minDuration"`
	MaxDuration  int    `json:"maxDuration"`
	TimeZone     string `json:"timeZone"`
	Realistic    bool   `json:"realistic"`
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.EventsPerDay <= 0 {
		c.EventsPerDay = DefaultEventsPerDay
	}
	if c.EventsPerDay > MaxEventsPerDay {
		c.EventsPerDay = MaxEventsPerDay
	}
	if c.MinDuration <= 0 {
		c.MinDuration = DefaultMinDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.MaxDuration < c.MinDuration {
		c.MaxDuration = c.MinDuration
	}
	if c.TimeZone == "" {
		c.TimeZone = DefaultTimeZone
	}
	return c
}

// ParseRange parses both dates and checks their order.
func ParseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, startDate)
	}
	end, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, endDate)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return start, end, nil
}

// DaySpan returns the number of whole days between two dates.
func DaySpan(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}

// Generate dispatches to GenerateRealisticWeek or GenerateEvents.
func Generate(rng Rand, cfg GeneratorConfig) ([]model.NewEvent, error) {
	if cfg.Realistic {
		if _, _, err := ParseRange(cfg.StartDate, cfg.EndDate); err != nil {
			return nil, err
		}
		return GenerateRealisticWeek(rng, cfg.StartDate, cfg.TimeZone)
	}
	return GenerateEvents(rng, cfg)
}

// GenerateEvents creates events for every UTC day from StartDate to EndDate
// inclusive.
func GenerateEvents(rng Rand, cfg GeneratorConfig) ([]model.NewEvent, error) {
	cfg = cfg.withDefaults()
	start, end, err := ParseRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return nil, err
	}

	events := make([]model.NewEvent, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		events = append(events, generateDayEvents(rng, day, cfg.EventsPerDay, cfg.MinDuration, cfg.MaxDuration, cfg.TimeZone)...)
	}
	return events, nil
}

// GenerateRealisticWeek creates a working week of meetings: seven days from
// startDate with weekends skipped and the third and fifth day busier.
func GenerateRealisticWeek(rng Rand, startDate, timeZone string) ([]model.NewEvent, error) {
	start, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, startDate)
	}
	if timeZone == "" {
		timeZone = DefaultTimeZone
	}

	events := make([]model.NewEvent, 0)
	for offset := 0; offset < weekDays; offset++ {
		day := start.AddDate(0, 0, offset)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		meetings := busyWeekdayMeetings
		if offset != 2 && offset != 4 {
			meetings = baseWeekdayMeetings + int(math.Floor(rng.Float64()*extraWeekdayRange))
		}
		events = append(events, generateDayEvents(rng, day, meetings, realisticMinMinutes, realisticMaxMinutes, timeZone)...)
	}
	return events, nil
}

// generateDayEvents places up to count meetings inside working hours on day.
// Meetings that would end after working hours are skipped.
func generateDayEvents(rng Rand, day time.Time, count, minDuration, maxDuration int, timeZone string) []model.NewEvent {
	slots := make([]float64, count)
	for i := range slots {
		slots[i] = workStartHour + rng.Float64()*(workEndHour-workStartHour)
	}
	sort.Float64s(slots)

	events := make([]model.NewEvent, 0, count)
	lastEnd := float64(workStartHour)
	for _, slot := range slots {
		startHour := math.Max(slot, lastEnd)
		duration := float64(minDuration) + rng.Float64()*float64(maxDuration-minDuration)
		endHour := startHour + duration/minutesPerHour
		if endHour > workEndHour {
			continue
		}

		subject := pick(rng, meetingSubjects) + " - " + pick(rng, subjectSuffixes)
		events = append(events, model.NewEvent{
			Subject: subject,
			Start:   model.DateTimeZone{DateTime: atHour(day, startHour), TimeZone: timeZone},
			End:     model.DateTimeZone{DateTime: atHour(day, endHour), TimeZone: timeZone},
			Body:    &model.ItemBody{ContentType: bodyType, Content: bodyContent},
		})

		gap := minBreakMinutes + rng.Float64()*breakRangeMinutes
		lastEnd = endHour + gap/minutesPerHour
	}
	return events
}

// atHour renders day at a fractional hour, truncated to the minute.
func atHour(day time.Time, hour float64) string {
	h := math.Floor(hour)
	m := math.Floor((hour - h) * minutesPerHour)
	t := time.Date(day.Year(), day.Month(), day.Day(), int(h), int(m), 0, 0, time.UTC)
	return t.Format(isoLayout)
}

func pick(rng Rand, items []string) string {
	i := int(math.Floor(rng.Float64() * float64(len(items))))
	if i >= len(items) {
		i = len(items) - 1
	}
	return items[i]
}
