package dedupe

import "time"

// Option applies a configuration option to the deduper.
type Option func(*lruDeduper)

// WithMaxSize sets the maximum number of keys to keep in memory. The least
// recently used key is evicted first. Non-positive values keep the default.
func WithMaxSize(maxSize int) Option {
	return func(d *lruDeduper) {
		d.maxSize = maxSize
	}
}

// WithTTL sets how long a key counts as seen. Zero or negative keeps keys
// until they are evicted.
func WithTTL(ttl time.Duration) Option {
	return func(d *lruDeduper) {
		d.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *lruDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
