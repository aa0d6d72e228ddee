package service

import (
	"time"

	"github.com/okian/calpulse/internal/adapters/repository"
	"github.com/okian/calpulse/internal/domain/dedupe"
	"github.com/okian/calpulse/internal/testevents"
	"github.com/okian/calpulse/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithIdentity sets the sign-in provider. Without one every sign-in
// operation fails with ErrAuthNotConfigured.
func WithIdentity(id Identity) Option {
	return func(s *Service) {
		if id != nil {
			s.identity = id
		}
	}
}

// WithEventCache sets the cache of fetched calendar windows.
func WithEventCache(c repository.EventCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithValueStore sets where the display value lives.
func WithValueStore(v repository.ValueStore) Option {
	return func(s *Service) {
		if v != nil {
			s.values = v
		}
	}
}

// WithDeduper sets the idempotency key tracker.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithRand sets the random source of the test event generator.
func WithRand(r testevents.Rand) Option {
	return func(s *Service) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithDefaultRangeDays sets how many days before today a request without
// dates covers.
func WithDefaultRangeDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultRangeDays = days
		}
	}
}

// WithMaxTestEventDays caps the range of a test event generation request.
func WithMaxTestEventDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxTestEventDays = days
		}
	}
}

// WithPreviewLimit sets how many generated events a preview returns.
func WithPreviewLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.previewLimit = n
		}
	}
}

// WithTestEventWorkers sets how many events are created concurrently.
func WithTestEventWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTestEventDelay sets the pause after each created event.
func WithTestEventDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithClock overrides the time source used for default ranges.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
