package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/calpulse/internal/adapters/auth"
	"github.com/okian/calpulse/internal/adapters/graph"
	"github.com/okian/calpulse/internal/adapters/repository"
	"github.com/okian/calpulse/internal/adapters/session"
	service "github.com/okian/calpulse/internal/app"
	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/internal/domain/types"
	"github.com/okian/calpulse/internal/testevents"
	"github.com/okian/calpulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type fakeIdentity struct {
	mu        sync.Mutex
	token     string
	refreshes int
	failNext  error
	lastState string
}

func (f *fakeIdentity) AuthCodeURL(_ context.Context, state string) (string, error) {
	f.lastState = state
	return "https://login.example/authorize?state=" + state, nil
}

func (f *fakeIdentity) ExchangeCode(_ context.Context, code string) (auth.Token, error) {
	if code == "bad" {
		return auth.Token{}, errors.New("invalid grant")
	}
	return auth.Token{AccessToken: "access-1", AccountID: "acct-1"}, nil
}

func (f *fakeIdentity) Refresh(_ context.Context, accountID string) (auth.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.failNext != nil {
		return auth.Token{}, f.failNext
	}
	return auth.Token{AccessToken: f.token, AccountID: accountID}, nil
}

type fakeCalendar struct {
	mu       sync.Mutex
	valid    string
	events   []model.CalendarEvent
	views    int
	created  []model.NewEvent
	createFn func(model.NewEvent) error
	windows  [][2]time.Time
}

func (f *fakeCalendar) CalendarView(_ context.Context, token string, from, to time.Time) ([]model.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views++
	f.windows = append(f.windows, [2]time.Time{from, to})
	if token != f.valid {
		return nil, &graph.APIError{Status: 401}
	}
	return f.events, nil
}

func (f *fakeCalendar) Me(_ context.Context, token string) (graph.Profile, error) {
	return graph.Profile{ID: "user-1", DisplayName: "Ada", UserPrincipalName: "ada@example.com"}, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, token string, ev model.NewEvent) (model.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token != f.valid {
		return model.CalendarEvent{}, &graph.APIError{Status: 401}
	}
	if f.createFn != nil {
		if err := f.createFn(ev); err != nil {
			return model.CalendarEvent{}, err
		}
	}
	f.created = append(f.created, ev)
	return ev.AsCalendarEvent(fmt.Sprintf("id-%d", len(f.created))), nil
}

func event(id, start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      id,
		Subject: id,
		Start:   model.DateTimeZone{DateTime: start, TimeZone: "UTC"},
		End:     model.DateTimeZone{DateTime: end, TimeZone: "UTC"},
	}
}

var fixedNow = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)

// fixedRand packs every generated meeting at the start of the working day.
type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

func newService(cal *fakeCalendar, id *fakeIdentity, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithTestEventDelay(0),
		service.WithRand(fixedRand(0)),
	}
	if id != nil {
		base = append(base, service.WithIdentity(id))
	}
	return service.New(cal, append(base, opts...)...)
}

func TestService_Login(t *testing.T) {
	Convey("Given a service with an identity provider", t, func() {
		ctx := context.Background()
		id := &fakeIdentity{}
		svc := newService(&fakeCalendar{}, id)

		Convey("When a login URL is requested without state", func() {
			u, err := svc.LoginURL(ctx, "")

			Convey("Then a random state is generated", func() {
				So(err, ShouldBeNil)
				So(id.lastState, ShouldNotBeEmpty)
				So(u, ShouldEndWith, id.lastState)
			})
		})

		Convey("When a login URL is requested with state", func() {
			_, err := svc.LoginURL(ctx, "abc")
			So(err, ShouldBeNil)
			So(id.lastState, ShouldEqual, "abc")
		})

		Convey("When a login completes", func() {
			sess, err := svc.CompleteLogin(ctx, "good")

			Convey("Then the session carries the token and profile", func() {
				So(err, ShouldBeNil)
				So(sess.AccessToken, ShouldEqual, "access-1")
				So(sess.AccountID, ShouldEqual, "acct-1")
				So(sess.User, ShouldResemble, types.User{ID: "user-1", DisplayName: "Ada", Email: "ada@example.com"})
			})
		})

		Convey("When the code is rejected", func() {
			_, err := svc.CompleteLogin(ctx, "bad")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a service without an identity provider", t, func() {
		svc := newService(&fakeCalendar{}, nil)

		_, err := svc.LoginURL(context.Background(), "")
		So(errors.Is(err, service.ErrAuthNotConfigured), ShouldBeTrue)
		_, err = svc.CompleteLogin(context.Background(), "code")
		So(errors.Is(err, service.ErrAuthNotConfigured), ShouldBeTrue)
		_, err = svc.Refresh(context.Background(), session.Session{AccountID: "a"})
		So(errors.Is(err, service.ErrTokenExpired), ShouldBeTrue)
	})
}

func TestService_ResolveRange(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := newService(&fakeCalendar{}, nil, service.WithDefaultRangeDays(3))

		Convey("When no dates are given", func() {
			r, err := svc.ResolveRange("", "")

			Convey("Then the default range ends today", func() {
				So(err, ShouldBeNil)
				So(r, ShouldResemble, types.DateRange{Start: "2024-01-07", End: "2024-01-10"})
			})
		})

		Convey("When only one date is given", func() {
			r, err := svc.ResolveRange("2024-01-01", "")
			So(err, ShouldBeNil)
			So(r.End, ShouldEqual, "2024-01-10")
		})

		Convey("When a date is malformed", func() {
			_, err := svc.ResolveRange("2024-13-01", "2024-01-02")
			So(errors.Is(err, service.ErrInvalidDate), ShouldBeTrue)
		})

		Convey("When the start is after the end", func() {
			_, err := svc.ResolveRange("2024-01-05", "2024-01-02")
			So(errors.Is(err, service.ErrInvalidRange), ShouldBeTrue)
		})
	})
}

func TestService_Analytics(t *testing.T) {
	Convey("Given a calendar with events", t, func() {
		ctx := context.Background()
		cal := &fakeCalendar{
			valid: "access-1",
			events: []model.CalendarEvent{
				event("a", "2024-01-01T09:00:00", "2024-01-01T10:00:00"),
				event("b", "2024-01-01T11:00:00", "2024-01-01T12:00:00"),
			},
		}
		svc := newService(cal, &fakeIdentity{token: "access-1"},
			service.WithEventCache(repository.NewEventCache(16)))
		sess := &session.Session{AccessToken: "access-1", AccountID: "acct-1"}
		r := types.DateRange{Start: "2024-01-01", End: "2024-01-02"}

		Convey("When events are requested", func() {
			res, err := svc.Events(ctx, sess, r)

			Convey("Then the metadata is computed over the window including the end date", func() {
				So(err, ShouldBeNil)
				So(res.Events, ShouldHaveLength, 2)
				So(res.Metadata.TotalEvents, ShouldEqual, 2)
				So(res.Metadata.TotalDuration, ShouldEqual, 120)
				So(res.Metadata.Gaps, ShouldHaveLength, 1)
				So(cal.windows[0][0].Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(cal.windows[0][1].Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When the same range is analysed twice", func() {
			_, err1 := svc.TimeSeries(ctx, sess, r)
			ins, err2 := svc.Insights(ctx, sess, r)

			Convey("Then the second fetch is served from the cache", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(cal.views, ShouldEqual, 1)
				So(ins.Metadata.TotalEvents, ShouldEqual, 2)
				So(ins.Insights.Insights, ShouldNotBeEmpty)
				So(svc.GetStats()["cachedWindows"], ShouldEqual, 1)
			})
		})

		Convey("When the time series is requested", func() {
			ts, err := svc.TimeSeries(ctx, sess, r)

			Convey("Then there is one metric per day", func() {
				So(err, ShouldBeNil)
				So(ts.Metrics, ShouldHaveLength, 2)
				So(ts.Summary.PeakDay.Date, ShouldEqual, "2024-01-01")
				So(ts.Summary.PeakDay.Count, ShouldEqual, 2)
			})
		})
	})

	Convey("Given an expired access token", t, func() {
		ctx := context.Background()
		cal := &fakeCalendar{valid: "access-2"}
		id := &fakeIdentity{token: "access-2"}
		svc := newService(cal, id)
		r := types.DateRange{Start: "2024-01-01", End: "2024-01-01"}

		Convey("When the account can be refreshed", func() {
			sess := &session.Session{AccessToken: "stale", AccountID: "acct-1"}
			res, err := svc.Events(ctx, sess, r)

			Convey("Then the call is retried with the new token", func() {
				So(err, ShouldBeNil)
				So(res.Events, ShouldBeEmpty)
				So(res.Events, ShouldNotBeNil)
				So(sess.AccessToken, ShouldEqual, "access-2")
				So(id.refreshes, ShouldEqual, 1)
			})
		})

		Convey("When the refresh fails", func() {
			id.failNext = errors.New("interaction required")
			sess := &session.Session{AccessToken: "stale", AccountID: "acct-1"}
			_, err := svc.Events(ctx, sess, r)

			Convey("Then the token is reported expired", func() {
				So(errors.Is(err, service.ErrTokenExpired), ShouldBeTrue)
				So(sess.AccessToken, ShouldEqual, "stale")
			})
		})

		Convey("When the refreshed token is rejected too", func() {
			id.token = "still-wrong"
			sess := &session.Session{AccessToken: "stale", AccountID: "acct-1"}
			_, err := svc.Events(ctx, sess, r)

			Convey("Then the token is reported expired", func() {
				So(errors.Is(err, service.ErrTokenExpired), ShouldBeTrue)
				So(errors.Is(err, graph.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When the session has no account", func() {
			sess := &session.Session{AccessToken: "stale"}
			_, err := svc.Events(ctx, sess, r)
			So(errors.Is(err, service.ErrTokenExpired), ShouldBeTrue)
			So(id.refreshes, ShouldEqual, 0)
		})
	})
}

func TestService_TestEvents(t *testing.T) {
	Convey("Given a service that creates test events", t, func() {
		ctx := context.Background()
		cal := &fakeCalendar{valid: "access-1"}
		cache := repository.NewEventCache(16)
		svc := newService(cal, &fakeIdentity{token: "access-1"},
			service.WithEventCache(cache),
			service.WithPreviewLimit(4),
		)
		sess := &session.Session{AccessToken: "access-1", AccountID: "acct-1"}
		cfg := testevents.GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-01-02", EventsPerDay: 3}

		Convey("When a preview is requested", func() {
			p, err := svc.PreviewTestEvents(ctx, cfg)

			Convey("Then only the head is returned", func() {
				So(err, ShouldBeNil)
				So(p.Count, ShouldEqual, 6)
				So(p.Total, ShouldEqual, 6)
				So(p.Events, ShouldHaveLength, 4)
				So(cal.created, ShouldBeEmpty)
			})
		})

		Convey("When a preview spans more than the allowed days", func() {
			_, err := svc.PreviewTestEvents(ctx, testevents.GeneratorConfig{
				StartDate: "1990-01-01", EndDate: "2030-12-31", EventsPerDay: 2,
			})

			Convey("Then it is rejected before generating", func() {
				var tooLong *service.RangeTooLongError
				So(errors.As(err, &tooLong), ShouldBeTrue)
				So(tooLong.MaxDays, ShouldEqual, service.DefaultMaxTestDays)
				So(errors.Is(err, service.ErrRangeTooLong), ShouldBeTrue)
			})
		})

		Convey("When a preview has bad dates", func() {
			_, err := svc.PreviewTestEvents(ctx, testevents.GeneratorConfig{StartDate: "2024-01-05", EndDate: "2024-01-01"})
			So(errors.Is(err, service.ErrInvalidRange), ShouldBeTrue)
		})

		Convey("When dates are missing", func() {
			_, err := svc.PreviewTestEvents(ctx, testevents.GeneratorConfig{StartDate: "2024-01-01"})
			So(errors.Is(err, service.ErrMissingDates), ShouldBeTrue)
			_, err = svc.GenerateTestEvents(ctx, sess, testevents.GeneratorConfig{}, "")
			So(errors.Is(err, service.ErrMissingDates), ShouldBeTrue)
		})

		Convey("When events are generated", func() {
			_, _ = svc.Events(ctx, sess, types.DateRange{Start: "2024-01-01", End: "2024-01-02"})
			So(cache.Len(), ShouldEqual, 1)
			res, err := svc.GenerateTestEvents(ctx, sess, cfg, "")

			Convey("Then they are all created and the cache is dropped", func() {
				So(err, ShouldBeNil)
				So(res.Success, ShouldBeTrue)
				So(res.Requested, ShouldEqual, 6)
				So(res.Created, ShouldEqual, 6)
				So(res.Failed, ShouldEqual, 0)
				So(res.Message, ShouldEqual, "Created 6 out of 6 events")
				So(cal.created, ShouldHaveLength, 6)
				So(cache.Len(), ShouldEqual, 0)
			})
		})

		Convey("When some creations fail", func() {
			n := 0
			cal.createFn = func(model.NewEvent) error {
				n++
				if n%2 == 0 {
					return &graph.APIError{Status: 400, Body: "bad"}
				}
				return nil
			}
			res, err := svc.GenerateTestEvents(ctx, sess, cfg, "")

			Convey("Then failures are reported per event", func() {
				So(err, ShouldBeNil)
				So(res.Created, ShouldEqual, 3)
				So(res.Failed, ShouldEqual, 3)
				So(res.Errors, ShouldHaveLength, 3)
				So(res.Errors[0].Event, ShouldNotBeEmpty)
			})
		})

		Convey("When every creation is forbidden", func() {
			cal.createFn = func(model.NewEvent) error { return &graph.APIError{Status: 403} }
			_, err := svc.GenerateTestEvents(ctx, sess, cfg, "key-1")

			Convey("Then a permission error is returned and the key released", func() {
				So(errors.Is(err, service.ErrPermissionDenied), ShouldBeTrue)
				So(errors.Is(err, graph.ErrForbidden), ShouldBeTrue)
				cal.createFn = nil
				_, err = svc.GenerateTestEvents(ctx, sess, cfg, "key-1")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the range is too long", func() {
			_, err := svc.GenerateTestEvents(ctx, sess, testevents.GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-02-15"}, "")
			So(errors.Is(err, service.ErrRangeTooLong), ShouldBeTrue)
		})

		Convey("When the range is exactly the limit", func() {
			_, err := svc.GenerateTestEvents(ctx, sess, testevents.GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-01-31", EventsPerDay: 1}, "")
			So(err, ShouldBeNil)
			So(cal.created, ShouldHaveLength, 31)
		})

		Convey("When the same idempotency key is reused", func() {
			_, err1 := svc.GenerateTestEvents(ctx, sess, cfg, "key-2")
			_, err2 := svc.GenerateTestEvents(ctx, sess, cfg, "key-2")

			Convey("Then the second request is rejected", func() {
				So(err1, ShouldBeNil)
				So(errors.Is(err2, service.ErrDuplicateRequest), ShouldBeTrue)
				So(cal.created, ShouldHaveLength, 6)
			})
		})

		Convey("When the dates are invalid", func() {
			_, err := svc.GenerateTestEvents(ctx, sess, testevents.GeneratorConfig{StartDate: "nope", EndDate: "2024-01-01"}, "")
			So(errors.Is(err, service.ErrInvalidDate), ShouldBeTrue)
			_, err = svc.GenerateTestEvents(ctx, sess, testevents.GeneratorConfig{StartDate: "2024-01-03", EndDate: "2024-01-01"}, "")
			So(errors.Is(err, service.ErrInvalidRange), ShouldBeTrue)
		})
	})
}

func TestService_DisplayValue(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newService(&fakeCalendar{}, nil)

		Convey("Then no value is set initially", func() {
			v := svc.DisplayValue(ctx)
			So(v.HasValue, ShouldBeFalse)
			So(v.Value, ShouldBeNil)
		})

		Convey("When a value is set", func() {
			So(svc.SetDisplayValue(ctx, 7.5), ShouldBeNil)
			v := svc.DisplayValue(ctx)
			So(v.HasValue, ShouldBeTrue)
			So(*v.Value, ShouldEqual, 7.5)
			So(svc.GetStats()["hasDisplayValue"], ShouldBeTrue)
		})

		Convey("When a NaN is set", func() {
			err := svc.SetDisplayValue(ctx, math.NaN())
			So(errors.Is(err, service.ErrInvalidValue), ShouldBeTrue)
		})
	})
}
