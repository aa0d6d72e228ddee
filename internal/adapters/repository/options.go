package repository

import "time"

const defaultCacheTTL = 5 * time.Minute

// Option applies a configuration option to the LRUEventCache.
type Option func(*LRUEventCache)

// WithTTL sets how long a fetched window stays fresh. Non-positive values
// keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(c *LRUEventCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *LRUEventCache) {
		if now != nil {
			c.now = now
		}
	}
}
