// Package worker drains creation jobs from a queue and posts them to the
// calendar.
package worker

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okian/calpulse/internal/adapters/mq/queue"
	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/pkg/logger"
	"github.com/okian/calpulse/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Default pool configuration constants.
const (
	defaultWorkers = 1
	defaultDelay   = 100 * time.Millisecond
)

// Creator creates a single calendar event.
type Creator interface {
	CreateEvent(ctx context.Context, e model.NewEvent) (model.CalendarEvent, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, e model.NewEvent) (model.CalendarEvent, error)

// CreateEvent calls f.
func (f CreatorFunc) CreateEvent(ctx context.Context, e model.NewEvent) (model.CalendarEvent, error) {
	return f(ctx, e)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// JobError describes one event that could not be created.
type JobError struct {
	Event string `json:"event"`
	Error string `json:"error"`

	index int
	err   error
}

// Err returns the underlying creation error.
func (e JobError) Err() error { return e.err }

// Result summarises a drained batch. Errors are in submission order.
type Result struct {
	Created int        `json:"created"`
	Failed  int        `json:"failed"`
	Errors  []JobError `json:"errors"`
}

// Pool runs a fixed number of workers over a queue.
type Pool struct {
	queue   Queue
	creator Creator
	workers int
	delay   time.Duration
	logger  logger.Logger

	mu     sync.Mutex
	result Result
}

// NewPool creates a new worker pool.
func NewPool(q Queue, creator Creator, opts ...Option) *Pool {
	p := &Pool{
		queue:   q,
		creator: creator,
		workers: defaultWorkers,
		delay:   defaultDelay,
		logger:  logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes jobs until the queue is closed and drained, or ctx is
// cancelled. Failed creations are collected in the result and never stop
// the pool. The returned error is the context error, if any.
func (p *Pool) Run(ctx context.Context) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	jobs := p.queue.Dequeue(gctx)

	metrics.UpdateWorkerActiveCount(p.workers)
	defer metrics.UpdateWorkerActiveCount(0)

	for i := 0; i < p.workers; i++ {
		name := "worker-" + strconv.Itoa(i)
		g.Go(func() error {
			return p.work(gctx, p.logger.Named(name), jobs)
		})
	}
	err := g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	res := p.result
	p.result = Result{}
	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].index < res.Errors[j].index })
	if res.Errors == nil {
		res.Errors = []JobError{}
	}
	return res, err
}

func (p *Pool) work(ctx context.Context, log logger.Logger, jobs <-chan queue.Job) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jobs:
			if !ok {
				return nil
			}
			metrics.RecordQueueDequeue()
			if !p.process(ctx, log, job) {
				continue
			}
			if p.delay <= 0 {
				continue
			}
			t := time.NewTimer(p.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, log logger.Logger, job queue.Job) bool {
	start := time.Now()
	_, err := p.creator.CreateEvent(ctx, job.Event)
	metrics.RecordWorkerProcessingLatency(time.Since(start).Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		metrics.RecordTestEventFailed()
		log.Warn(ctx, "event creation failed",
			logger.String("subject", job.Event.Subject),
			logger.Int("index", job.Index),
			logger.Error(err),
		)
		p.result.Failed++
		p.result.Errors = append(p.result.Errors, JobError{
			Event: job.Event.Subject,
			Error: err.Error(),
			index: job.Index,
			err:   err,
		})
		return false
	}
	metrics.RecordTestEventCreated()
	p.result.Created++
	return true
}
