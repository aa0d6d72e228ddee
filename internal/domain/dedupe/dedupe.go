// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default configuration constants.
const (
	defaultMaxSize = 1024
	defaultTTL     = 10 * time.Minute
)

// Deduper records seen idempotency keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key so the request can be retried. Used when the
	// request failed before doing any work.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// lruDeduper keeps the most recently recorded keys in an LRU. Keys older
// than ttl count as unseen.
type lruDeduper struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, time.Time]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &lruDeduper{
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.maxSize <= 0 {
		d.maxSize = defaultMaxSize
	}
	// lru.New only errors on non-positive size which we guard above.
	d.cache, _ = lru.New[string, time.Time](d.maxSize)

	return d
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *lruDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if ts, ok := d.cache.Get(key); ok {
		if d.ttl <= 0 || now.Sub(ts) <= d.ttl {
			return true
		}
		d.cache.Remove(key)
	}
	d.cache.Add(key, now)
	return false
}

// Unrecord removes a key from the seen list, allowing it to be retried.
func (d *lruDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Remove(key)
}

// Size returns the current number of entries in the deduper.
func (d *lruDeduper) Size() int64 {
	return int64(d.cache.Len())
}
