package testevents

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fixedRand always returns the same value.
type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestGenerateEvents(t *testing.T) {
	Convey("Given a fixed random source", t, func() {
		rng := fixedRand(0.5)

		Convey("When generating a single day with defaults", func() {
			events, err := GenerateEvents(rng, GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-01-01"})
			So(err, ShouldBeNil)

			Convey("Then meetings are laid out with breaks in between", func() {
				So(len(events), ShouldEqual, 3)
				So(events[0].Start.DateTime, ShouldEqual, "2024-01-01T13:00:00.000Z")
				So(events[0].End.DateTime, ShouldEqual, "2024-01-01T13:45:00.000Z")
				So(events[1].Start.DateTime, ShouldEqual, "2024-01-01T14:22:00.000Z")
				So(events[1].End.DateTime, ShouldEqual, "2024-01-01T15:07:00.000Z")
				So(events[2].Start.DateTime, ShouldEqual, "2024-01-01T15:45:00.000Z")
				So(events[2].End.DateTime, ShouldEqual, "2024-01-01T16:30:00.000Z")
			})

			Convey("And each event carries a subject, timezone and body", func() {
				So(events[0].Subject, ShouldEqual, "Retrospective - Part 1")
				So(events[0].Start.TimeZone, ShouldEqual, "UTC")
				So(events[0].Body, ShouldNotBeNil)
				So(events[0].Body.ContentType, ShouldEqual, "HTML")
				So(events[0].Body.Content, ShouldEqual, "<p>Test event generated for calendar analysis.</p>")
			})
		})

		Convey("When asking for fewer events than fit", func() {
			events, err := GenerateEvents(rng, GeneratorConfig{
				StartDate: "2024-01-01", EndDate: "2024-01-03", EventsPerDay: 1, TimeZone: "Europe/Berlin",
			})
			So(err, ShouldBeNil)

			Convey("Then every day gets its share", func() {
				So(len(events), ShouldEqual, 3)
				So(events[2].Start.DateTime, ShouldStartWith, "2024-01-03T")
				So(events[2].Start.TimeZone, ShouldEqual, "Europe/Berlin")
			})
		})
	})

	Convey("Given draws that overrun working hours", t, func() {
		events, err := GenerateEvents(fixedRand(0.99), GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-01-03"})

		Convey("Then those meetings are skipped", func() {
			So(err, ShouldBeNil)
			So(events, ShouldNotBeNil)
			So(events, ShouldBeEmpty)
		})
	})

	Convey("Given the crypto random source", t, func() {
		events, err := GenerateEvents(NewRand(), GeneratorConfig{
			StartDate: "2024-03-01", EndDate: "2024-03-30", EventsPerDay: 6, MinDuration: 20, MaxDuration: 90,
		})
		So(err, ShouldBeNil)

		Convey("Then every event stays inside working hours without overlap", func() {
			var prevEnd time.Time
			for _, ev := range events {
				start := mustTime(t, ev.Start.DateTime)
				end := mustTime(t, ev.End.DateTime)
				So(start.Hour(), ShouldBeGreaterThanOrEqualTo, workStartHour)
				So(end.Before(start), ShouldBeFalse)
				So(end.Hour()*60+end.Minute(), ShouldBeLessThanOrEqualTo, workEndHour*60)
				So(end.Sub(start).Minutes(), ShouldBeLessThanOrEqualTo, 91.0)
				if prevEnd.Format(dateLayout) == start.Format(dateLayout) {
					So(start.Before(prevEnd), ShouldBeFalse)
				}
				prevEnd = end
			}
		})

		Convey("And subjects come from the known lists", func() {
			for _, ev := range events {
				parts := strings.SplitN(ev.Subject, " - ", 2)
				So(len(parts), ShouldEqual, 2)
				So(meetingSubjects, ShouldContain, parts[0])
				So(subjectSuffixes, ShouldContain, parts[1])
			}
		})
	})

	Convey("Given invalid ranges", t, func() {
		_, err := GenerateEvents(fixedRand(0.5), GeneratorConfig{StartDate: "01/01/2024", EndDate: "2024-01-02"})
		So(errors.Is(err, ErrInvalidDate), ShouldBeTrue)

		_, err = GenerateEvents(fixedRand(0.5), GeneratorConfig{StartDate: "2024-01-05", EndDate: "2024-01-02"})
		So(errors.Is(err, ErrInvalidDateRange), ShouldBeTrue)

		_, err = Generate(fixedRand(0.5), GeneratorConfig{StartDate: "2024-01-05", Realistic: true})
		So(errors.Is(err, ErrInvalidDate), ShouldBeTrue)
	})
}

func TestGenerateRealisticWeek(t *testing.T) {
	Convey("Given a week starting on a Monday", t, func() {
		events, err := GenerateRealisticWeek(fixedRand(0.5), "2024-01-01", "")
		So(err, ShouldBeNil)

		Convey("Then only weekdays get meetings and late slots are dropped", func() {
			days := map[string]int{}
			for _, ev := range events {
				days[ev.Start.DateTime[:10]]++
			}
			So(days, ShouldResemble, map[string]int{
				"2024-01-01": 2, "2024-01-02": 2, "2024-01-03": 2, "2024-01-04": 2, "2024-01-05": 2,
			})
		})

		Convey("And the timezone defaults to UTC", func() {
			So(events[0].End.TimeZone, ShouldEqual, "UTC")
		})
	})

	Convey("Given the dispatcher", t, func() {
		events, err := Generate(fixedRand(0.5), GeneratorConfig{StartDate: "2024-01-06", EndDate: "2024-01-06", Realistic: true})

		Convey("Then the week is generated from the start date", func() {
			So(err, ShouldBeNil)
			So(events[0].Start.DateTime, ShouldStartWith, "2024-01-08")
			So(len(events), ShouldEqual, 10)
		})
	})
}

func TestEventsPerDayCap(t *testing.T) {
	Convey("Given a huge eventsPerDay", t, func() {
		cfg := GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-01-01", EventsPerDay: 1_000_000_000}

		Convey("Then the defaults clamp it", func() {
			So(cfg.withDefaults().EventsPerDay, ShouldEqual, MaxEventsPerDay)
		})

		Convey("And a day never holds more than the cap", func() {
			events, err := GenerateEvents(fixedRand(0), cfg)
			So(err, ShouldBeNil)
			So(len(events), ShouldBeLessThanOrEqualTo, MaxEventsPerDay)
			So(events, ShouldNotBeEmpty)
		})
	})
}

func TestDaySpan(t *testing.T) {
	Convey("Given parsed ranges", t, func() {
		start, end, err := ParseRange("2024-01-01", "2024-01-31")
		So(err, ShouldBeNil)
		So(DaySpan(start, end), ShouldEqual, 30)

		start, end, err = ParseRange("2024-01-01", "2024-01-01")
		So(err, ShouldBeNil)
		So(DaySpan(start, end), ShouldEqual, 0)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a configured run", t, func() {
		So(logger.Init(logger.WithOutput(io.Discard)), ShouldBeNil)
		out := filepath.Join(t.TempDir(), "nested", "events.json")
		cfg := &Config{
			Generator:  GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-01-02"},
			OutputFile: out,
			Analyze:    true,
		}

		Convey("When it runs", func() {
			stats, err := run(context.Background(), cfg, fixedRand(0.5))
			So(err, ShouldBeNil)

			Convey("Then the events are written as a JSON array", func() {
				raw, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var events []model.NewEvent
				So(json.Unmarshal(raw, &events), ShouldBeNil)
				So(len(events), ShouldEqual, 6)
			})

			Convey("And the statistics are filled in", func() {
				So(stats.EventsGenerated, ShouldEqual, 6)
				So(stats.DaysCovered, ShouldEqual, 2)
				So(stats.EndTime.Before(stats.StartTime), ShouldBeFalse)
			})
		})

		Convey("When nothing fits", func() {
			_, err := run(context.Background(), cfg, fixedRand(0.99))

			Convey("Then it reports no events", func() {
				So(errors.Is(err, ErrNoEvents), ShouldBeTrue)
			})
		})
	})
}
