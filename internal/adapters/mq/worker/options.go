package worker

import (
	"time"

	"github.com/okian/calpulse/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets how many jobs are created concurrently. Values below one
// keep the default.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDelay sets the pause a worker takes after each successful creation.
// Negative values keep the default.
func WithDelay(d time.Duration) Option {
	return func(p *Pool) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
