package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const keySeparator = "|"

type cacheEntry struct {
	events   []model.CalendarEvent
	storedAt time.Time
}

// LRUEventCache is an EventCache backed by an LRU with a TTL. Concurrent
// misses for the same key share one load.
type LRUEventCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, cacheEntry]
	group singleflight.Group
	ttl   time.Duration
	now   func() time.Time
}

// NewEventCache creates an event cache holding up to size windows. A
// non-positive size returns a pass-through cache that always loads.
func NewEventCache(size int, opts ...Option) EventCache {
	if size <= 0 {
		return passThrough{}
	}
	c := &LRUEventCache{
		ttl: defaultCacheTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	// lru.New only errors on non-positive size which we guard above.
	c.cache, _ = lru.New[string, cacheEntry](size)
	return c
}

func (k CacheKey) String() string {
	return strings.Join([]string{
		k.AccountID,
		k.From.UTC().Format(time.RFC3339),
		k.To.UTC().Format(time.RFC3339),
	}, keySeparator)
}

// Get implements EventCache.
func (c *LRUEventCache) Get(ctx context.Context, key CacheKey, load Loader) ([]model.CalendarEvent, bool, error) {
	k := key.String()

	if events, ok := c.lookup(k); ok {
		metrics.RecordCacheHit(metrics.CacheEvents)
		return events, true, nil
	}
	metrics.RecordCacheMiss(metrics.CacheEvents)

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		events, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache.Add(k, cacheEntry{events: events, storedAt: c.now()})
		c.mu.Unlock()
		metrics.UpdateCacheEntries(metrics.CacheEvents, c.cache.Len())
		return events, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]model.CalendarEvent), false, nil
}

func (c *LRUEventCache) lookup(k string) ([]model.CalendarEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache.Get(k)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.cache.Remove(k)
		return nil, false
	}
	return entry.events, true
}

// Invalidate implements EventCache.
func (c *LRUEventCache) Invalidate(_ context.Context, accountID string) {
	prefix := accountID + keySeparator
	c.mu.Lock()
	for _, k := range c.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Remove(k)
		}
	}
	c.mu.Unlock()
	metrics.UpdateCacheEntries(metrics.CacheEvents, c.cache.Len())
}

// Len implements EventCache.
func (c *LRUEventCache) Len() int {
	return c.cache.Len()
}

// passThrough never caches.
type passThrough struct{}

func (passThrough) Get(ctx context.Context, _ CacheKey, load Loader) ([]model.CalendarEvent, bool, error) {
	events, err := load(ctx)
	return events, false, err
}

func (passThrough) Invalidate(context.Context, string) {}

func (passThrough) Len() int { return 0 }
