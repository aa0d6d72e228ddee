package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/calpulse/internal/adapters/mq/queue"
	worker "github.com/okian/calpulse/internal/adapters/mq/worker"
	model "github.com/okian/calpulse/internal/domain/model"
	logging "github.com/okian/calpulse/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockCreator struct {
	mu      sync.Mutex
	fail    map[string]error
	created []string
	active  int
	peak    int
	pause   time.Duration
}

func newMockCreator() *mockCreator {
	return &mockCreator{fail: make(map[string]error)}
}

func (m *mockCreator) CreateEvent(ctx context.Context, e model.NewEvent) (model.CalendarEvent, error) {
	m.mu.Lock()
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	pause := m.pause
	m.mu.Unlock()

	if pause > 0 {
		time.Sleep(pause)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	if err, ok := m.fail[e.Subject]; ok {
		return model.CalendarEvent{}, err
	}
	m.created = append(m.created, e.Subject)
	return e.AsCalendarEvent("id-" + e.Subject), nil
}

func fill(q *queue.InMemoryQueue, n int) {
	for i := 0; i < n; i++ {
		_ = q.Enqueue(context.Background(), queue.Job{Index: i, Event: model.NewEvent{Subject: fmt.Sprintf("event-%d", i)}})
	}
	_ = q.Close()
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init(logging.WithOutput(io.Discard))
		ctx := context.Background()
		q := queue.NewInMemoryQueue()
		creator := newMockCreator()

		convey.Convey("When every creation succeeds", func() {
			fill(q, 5)
			res, err := worker.NewPool(q, creator, worker.WithDelay(0)).Run(ctx)

			convey.Convey("Then all events are created in order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Created, convey.ShouldEqual, 5)
				convey.So(res.Failed, convey.ShouldEqual, 0)
				convey.So(res.Errors, convey.ShouldBeEmpty)
				convey.So(res.Errors, convey.ShouldNotBeNil)
				convey.So(creator.created, convey.ShouldResemble, []string{
					"event-0", "event-1", "event-2", "event-3", "event-4",
				})
			})
		})

		convey.Convey("When some creations fail", func() {
			creator.fail["event-1"] = errors.New("quota exceeded")
			creator.fail["event-3"] = errors.New("bad request")
			fill(q, 5)
			res, err := worker.NewPool(q, creator, worker.WithDelay(0), worker.WithWorkers(3)).Run(ctx)

			convey.Convey("Then failures are collected with the event subject", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Created, convey.ShouldEqual, 3)
				convey.So(res.Failed, convey.ShouldEqual, 2)
				convey.So(res.Errors, convey.ShouldHaveLength, 2)
				convey.So(res.Errors[0].Event, convey.ShouldEqual, "event-1")
				convey.So(res.Errors[0].Error, convey.ShouldEqual, "quota exceeded")
				convey.So(res.Errors[1].Event, convey.ShouldEqual, "event-3")
				convey.So(res.Errors[1].Err(), convey.ShouldBeError, "bad request")
			})
		})

		convey.Convey("When a delay is configured", func() {
			fill(q, 3)
			start := time.Now()
			res, _ := worker.NewPool(q, creator, worker.WithDelay(20*time.Millisecond)).Run(ctx)

			convey.Convey("Then each success is followed by the pause", func() {
				convey.So(res.Created, convey.ShouldEqual, 3)
				convey.So(time.Since(start), convey.ShouldBeGreaterThanOrEqualTo, 60*time.Millisecond)
			})
		})

		convey.Convey("When the default single worker is used", func() {
			creator.pause = 5 * time.Millisecond
			fill(q, 4)
			_, _ = worker.NewPool(q, creator, worker.WithDelay(0)).Run(ctx)

			convey.Convey("Then creations never overlap", func() {
				convey.So(creator.peak, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			for i := 0; i < 10; i++ {
				_ = q.Enqueue(ctx, queue.Job{Index: i, Event: model.NewEvent{Subject: fmt.Sprintf("event-%d", i)}})
			}
			cctx, cancel := context.WithCancel(ctx)
			go func() {
				time.Sleep(30 * time.Millisecond)
				cancel()
			}()
			res, err := worker.NewPool(q, creator, worker.WithDelay(50*time.Millisecond)).Run(cctx)

			convey.Convey("Then the pool stops early", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(res.Created, convey.ShouldBeLessThan, 10)
			})
		})
	})
}

func TestCreatorFunc(t *testing.T) {
	convey.Convey("Given a function creator", t, func() {
		var got string
		c := worker.CreatorFunc(func(_ context.Context, e model.NewEvent) (model.CalendarEvent, error) {
			got = e.Subject
			return model.CalendarEvent{ID: "1"}, nil
		})
		ev, err := c.CreateEvent(context.Background(), model.NewEvent{Subject: "Standup"})

		convey.So(err, convey.ShouldBeNil)
		convey.So(ev.ID, convey.ShouldEqual, "1")
		convey.So(got, convey.ShouldEqual, "Standup")
	})
}
