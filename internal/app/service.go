// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/calpulse/internal/adapters/auth"
	"github.com/okian/calpulse/internal/adapters/graph"
	eventqueue "github.com/okian/calpulse/internal/adapters/mq/queue"
	workerpool "github.com/okian/calpulse/internal/adapters/mq/worker"
	"github.com/okian/calpulse/internal/adapters/repository"
	"github.com/okian/calpulse/internal/adapters/session"
	"github.com/okian/calpulse/internal/domain/analytics"
	"github.com/okian/calpulse/internal/domain/dedupe"
	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/internal/domain/types"
	"github.com/okian/calpulse/internal/testevents"
	"github.com/okian/calpulse/pkg/logger"
	"github.com/okian/calpulse/pkg/metrics"
)

// Default service configuration constants.
const (
	DefaultRangeDays    = 7
	DefaultMaxTestDays  = 30
	DefaultPreviewLimit = 10
	defaultWorkers      = 1
	defaultDelay        = 100 * time.Millisecond
	dateLayout          = "2006-01-02"
)

// Identity signs users in and refreshes their access tokens.
type Identity interface {
	AuthCodeURL(ctx context.Context, state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (auth.Token, error)
	Refresh(ctx context.Context, accountID string) (auth.Token, error)
}

// Calendar reads and writes the signed-in user's calendar.
type Calendar interface {
	CalendarView(ctx context.Context, token string, from, to time.Time) ([]model.CalendarEvent, error)
	Me(ctx context.Context, token string) (graph.Profile, error)
	CreateEvent(ctx context.Context, token string, ev model.NewEvent) (model.CalendarEvent, error)
}

// EventsResult is the event list of a range with its aggregate.
type EventsResult struct {
	Events   []model.CalendarEvent   `json:"events"`
	Metadata analytics.RangeMetadata `json:"metadata"`
}

// InsightsResult pairs the range aggregate with the insights built on it.
type InsightsResult struct {
	Metadata analytics.RangeMetadata    `json:"metadata"`
	Insights analytics.CalendarInsights `json:"insights"`
}

// Preview is the head of a generated batch.
type Preview struct {
	Count  int              `json:"count"`
	Events []model.NewEvent `json:"events"`
	Total  int              `json:"total"`
}

// GenerateResult reports a bulk creation.
type GenerateResult struct {
	Success   bool                  `json:"success"`
	Requested int                   `json:"requested"`
	Created   int                   `json:"created"`
	Failed    int                   `json:"failed"`
	Errors    []workerpool.JobError `json:"errors"`
	Message   string                `json:"message"`
}

// DisplayValue is the stored display value. Value is nil until one is set.
type DisplayValue struct {
	Value    *float64 `json:"value"`
	HasValue bool     `json:"hasValue"`
}

// Service implements the API dependencies for calendar analytics.
type Service struct {
	identity Identity
	calendar Calendar
	cache    repository.EventCache
	values   repository.ValueStore
	deduper  dedupe.Deduper
	rng      testevents.Rand

	defaultRangeDays int
	maxTestEventDays int
	previewLimit     int
	workers          int
	delay            time.Duration

	now     func() time.Time
	started time.Time
	logger  logger.Logger

	mu          sync.Mutex
	generations int
}

// New constructs a new Service over a calendar backend.
func New(calendar Calendar, opts ...Option) *Service {
	s := &Service{
		calendar:         calendar,
		cache:            repository.NewEventCache(0),
		values:           repository.NewValueStore(),
		deduper:          dedupe.NewInMemoryDeduper(),
		rng:              testevents.NewRand(),
		defaultRangeDays: DefaultRangeDays,
		maxTestEventDays: DefaultMaxTestDays,
		previewLimit:     DefaultPreviewLimit,
		workers:          defaultWorkers,
		delay:            defaultDelay,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.started = s.now()

	return s
}

// LoginURL returns the identity provider sign-in URL. An empty state is
// replaced with a fresh random one.
func (s *Service) LoginURL(ctx context.Context, state string) (string, error) {
	if s.identity == nil {
		return "", ErrAuthNotConfigured
	}
	if state == "" {
		state = uuid.NewString()
	}
	return s.identity.AuthCodeURL(ctx, state)
}

// CompleteLogin redeems an authorization code and loads the user profile.
func (s *Service) CompleteLogin(ctx context.Context, code string) (session.Session, error) {
	if s.identity == nil {
		return session.Session{}, ErrAuthNotConfigured
	}
	tok, err := s.identity.ExchangeCode(ctx, code)
	if err != nil {
		metrics.RecordSessionEvent("login_failed")
		return session.Session{}, err
	}
	profile, err := s.calendar.Me(ctx, tok.AccessToken)
	if err != nil {
		metrics.RecordSessionEvent("login_failed")
		return session.Session{}, fmt.Errorf("load profile: %w", err)
	}
	metrics.RecordSessionEvent("login")
	s.logger.Info(ctx, "user signed in", logger.String("user", profile.ID))

	return session.Session{
		AccessToken: tok.AccessToken,
		AccountID:   tok.AccountID,
		User:        profile.User(),
	}, nil
}

// Refresh silently renews the access token of a session.
func (s *Service) Refresh(ctx context.Context, sess session.Session) (session.Session, error) {
	if s.identity == nil || sess.AccountID == "" {
		return session.Session{}, ErrTokenExpired
	}
	tok, err := s.identity.Refresh(ctx, sess.AccountID)
	if err != nil {
		metrics.RecordSessionEvent("refresh_failed")
		return session.Session{}, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	}
	metrics.RecordSessionEvent("refresh")
	sess.AccessToken = tok.AccessToken
	if tok.AccountID != "" {
		sess.AccountID = tok.AccountID
	}
	return sess, nil
}

// ResolveRange turns query dates into a range. Both empty selects the
// default number of days ending today in UTC.
func (s *Service) ResolveRange(startDate, endDate string) (types.DateRange, error) {
	if startDate == "" || endDate == "" {
		today := s.now().UTC()
		return types.DateRange{
			Start: today.AddDate(0, 0, -s.defaultRangeDays).Format(dateLayout),
			End:   today.Format(dateLayout),
		}, nil
	}
	if _, _, err := testevents.ParseRange(startDate, endDate); err != nil {
		return types.DateRange{}, err
	}
	return types.DateRange{Start: startDate, End: endDate}, nil
}

// Events fetches the events of r and aggregates them. sess is updated in
// place when its token had to be refreshed.
func (s *Service) Events(ctx context.Context, sess *session.Session, r types.DateRange) (EventsResult, error) {
	events, err := s.fetch(ctx, sess, r)
	if err != nil {
		return EventsResult{}, err
	}
	start := time.Now()
	md := analytics.AnalyzeRange(events, r.Start, r.End)
	metrics.RecordAnalysis("range", len(events), time.Since(start).Seconds())
	return EventsResult{Events: events, Metadata: md}, nil
}

// TimeSeries fetches the events of r and returns one metric per day.
func (s *Service) TimeSeries(ctx context.Context, sess *session.Session, r types.DateRange) (analytics.TimeSeriesData, error) {
	events, err := s.fetch(ctx, sess, r)
	if err != nil {
		return analytics.TimeSeriesData{}, err
	}
	start := time.Now()
	ts := analytics.AnalyzeTimeSeries(events, r.Start, r.End)
	metrics.RecordAnalysis("timeseries", len(events), time.Since(start).Seconds())
	return ts, nil
}

// Insights fetches the events of r and classifies them.
func (s *Service) Insights(ctx context.Context, sess *session.Session, r types.DateRange) (InsightsResult, error) {
	events, err := s.fetch(ctx, sess, r)
	if err != nil {
		return InsightsResult{}, err
	}
	start := time.Now()
	md := analytics.AnalyzeRange(events, r.Start, r.End)
	in := analytics.GenerateInsights(events, md)
	metrics.RecordAnalysis("insights", len(events), time.Since(start).Seconds())
	return InsightsResult{Metadata: md, Insights: in}, nil
}

// fetch loads [start 00:00Z, end+1 00:00Z) so the end date is included.
func (s *Service) fetch(ctx context.Context, sess *session.Session, r types.DateRange) ([]model.CalendarEvent, error) {
	from, to, err := testevents.ParseRange(r.Start, r.End)
	if err != nil {
		return nil, err
	}
	to = to.AddDate(0, 0, 1)

	ts := &tokenSource{svc: s, sess: sess}
	load := func(ctx context.Context) ([]model.CalendarEvent, error) {
		var events []model.CalendarEvent
		err := ts.call(ctx, func(ctx context.Context, token string) error {
			var err error
			events, err = s.calendar.CalendarView(ctx, token, from, to)
			return err
		})
		if events == nil && err == nil {
			events = []model.CalendarEvent{}
		}
		return events, err
	}

	account := cacheAccount(*sess)
	if account == "" {
		return load(ctx)
	}
	events, hit, err := s.cache.Get(ctx, repository.CacheKey{AccountID: account, From: from, To: to}, load)
	if err != nil {
		s.logger.Warn(ctx, "calendar fetch failed",
			logger.String("start", r.Start),
			logger.String("end", r.End),
			logger.Error(err),
		)
		return nil, err
	}
	s.logger.Debug(ctx, "calendar fetched",
		logger.Int("events", len(events)),
		logger.Bool("cached", hit),
	)
	return events, nil
}

func cacheAccount(sess session.Session) string {
	if sess.AccountID != "" {
		return sess.AccountID
	}
	return sess.User.ID
}

// PreviewTestEvents generates a batch without creating it.
func (s *Service) PreviewTestEvents(_ context.Context, cfg testevents.GeneratorConfig) (Preview, error) {
	if err := s.checkTestRange(cfg); err != nil {
		return Preview{}, err
	}
	events, err := testevents.Generate(s.rng, cfg)
	if err != nil {
		return Preview{}, err
	}
	head := events
	if len(head) > s.previewLimit {
		head = head[:s.previewLimit]
	}
	return Preview{Count: len(events), Events: head, Total: len(events)}, nil
}

// checkTestRange validates the dates of a test event request and caps its
// span at maxTestEventDays.
func (s *Service) checkTestRange(cfg testevents.GeneratorConfig) error {
	if cfg.StartDate == "" || cfg.EndDate == "" {
		return ErrMissingDates
	}
	start, end, err := testevents.ParseRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return err
	}
	if testevents.DaySpan(start, end) > s.maxTestEventDays {
		return &RangeTooLongError{MaxDays: s.maxTestEventDays}
	}
	return nil
}

// GenerateTestEvents generates a batch and creates it in the user's
// calendar. A non-empty idempotency key that was already used fails with
// ErrDuplicateRequest.
func (s *Service) GenerateTestEvents(ctx context.Context, sess *session.Session, cfg testevents.GeneratorConfig, idempotencyKey string) (GenerateResult, error) {
	if err := s.checkTestRange(cfg); err != nil {
		return GenerateResult{}, err
	}

	if idempotencyKey != "" {
		if s.deduper.SeenAndRecord(ctx, idempotencyKey) {
			metrics.RecordIdempotencyReplay()
			return GenerateResult{}, ErrDuplicateRequest
		}
	}
	release := func() {
		if idempotencyKey != "" {
			s.deduper.Unrecord(ctx, idempotencyKey)
		}
	}

	events, err := testevents.Generate(s.rng, cfg)
	if err != nil {
		release()
		return GenerateResult{}, err
	}
	if len(events) == 0 {
		release()
		return GenerateResult{}, ErrNoEvents
	}

	res, err := s.createAll(ctx, sess, events)
	if err != nil {
		release()
		return GenerateResult{}, err
	}
	if res.Created == 0 && res.Failed > 0 {
		release()
		first := res.Errors[0].Err()
		switch {
		case errors.Is(first, ErrTokenExpired):
			return GenerateResult{}, first
		case errors.Is(first, graph.ErrForbidden):
			return GenerateResult{}, fmt.Errorf("%w: %w", ErrPermissionDenied, first)
		}
	}
	if res.Created > 0 {
		s.cache.Invalidate(ctx, cacheAccount(*sess))
	}

	s.mu.Lock()
	s.generations++
	s.mu.Unlock()

	s.logger.Info(ctx, "test events created",
		logger.Int("requested", len(events)),
		logger.Int("created", res.Created),
		logger.Int("failed", res.Failed),
	)
	return GenerateResult{
		Success:   true,
		Requested: len(events),
		Created:   res.Created,
		Failed:    res.Failed,
		Errors:    res.Errors,
		Message:   fmt.Sprintf("Created %d out of %d events", res.Created, len(events)),
	}, nil
}

func (s *Service) createAll(ctx context.Context, sess *session.Session, events []model.NewEvent) (workerpool.Result, error) {
	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(len(events)))
	for i, ev := range events {
		if err := q.Enqueue(ctx, eventqueue.Job{Index: i, Event: ev}); err != nil {
			return workerpool.Result{}, fmt.Errorf("enqueue event %d: %w", i, err)
		}
	}
	if err := q.Close(); err != nil {
		return workerpool.Result{}, err
	}

	ts := &tokenSource{svc: s, sess: sess}
	creator := workerpool.CreatorFunc(func(ctx context.Context, ev model.NewEvent) (model.CalendarEvent, error) {
		var created model.CalendarEvent
		err := ts.call(ctx, func(ctx context.Context, token string) error {
			var err error
			created, err = s.calendar.CreateEvent(ctx, token, ev)
			return err
		})
		return created, err
	})

	pool := workerpool.NewPool(q, creator,
		workerpool.WithWorkers(s.workers),
		workerpool.WithDelay(s.delay),
		workerpool.WithLogger(s.logger.Named("generator")),
	)
	return pool.Run(ctx)
}

// DisplayValue returns the stored display value.
func (s *Service) DisplayValue(ctx context.Context) DisplayValue {
	v, ok := s.values.Get(ctx)
	if !ok {
		return DisplayValue{}
	}
	return DisplayValue{Value: &v, HasValue: true}
}

// SetDisplayValue stores a new display value.
func (s *Service) SetDisplayValue(ctx context.Context, v float64) error {
	if err := s.values.Set(ctx, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	generations := s.generations
	s.mu.Unlock()

	_, hasValue := s.values.Get(context.Background())
	cached := s.cache.Len()
	metrics.UpdateCacheEntries(metrics.CacheEvents, cached)

	return map[string]interface{}{
		"uptimeSeconds":    int64(s.now().Sub(s.started).Seconds()),
		"authConfigured":   s.identity != nil,
		"cachedWindows":    cached,
		"idempotencyKeys":  s.deduper.Size(),
		"generations":      generations,
		"testEventWorkers": s.workers,
		"testEventDelayMs": s.delay.Milliseconds(),
		"defaultRangeDays": s.defaultRangeDays,
		"maxTestEventDays": s.maxTestEventDays,
		"hasDisplayValue":  hasValue,
		"goroutines":       runtime.NumGoroutine(),
	}
}

// tokenSource runs Graph calls with the session token and renews it at
// most once per request on a 401.
type tokenSource struct {
	svc   *Service
	mu    sync.Mutex
	sess  *session.Session
	tried bool
}

func (t *tokenSource) call(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	t.mu.Lock()
	token := t.sess.AccessToken
	t.mu.Unlock()

	err := fn(ctx, token)
	if !errors.Is(err, graph.ErrUnauthorized) {
		return err
	}
	fresh, rerr := t.renew(ctx, token)
	if rerr != nil {
		return rerr
	}
	err = fn(ctx, fresh)
	if errors.Is(err, graph.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	}
	return err
}

func (t *tokenSource) renew(ctx context.Context, stale string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess.AccessToken != stale {
		return t.sess.AccessToken, nil
	}
	if t.tried {
		return "", ErrTokenExpired
	}
	t.tried = true
	next, err := t.svc.Refresh(ctx, *t.sess)
	if err != nil {
		return "", err
	}
	*t.sess = next
	return next.AccessToken, nil
}
