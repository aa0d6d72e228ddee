// Package repository holds the in-memory stores of the service: a cache of
// fetched calendar events and the display value.
package repository

import (
	"context"
	"time"

	"github.com/okian/calpulse/internal/domain/model"
)

// Loader fetches the events of a cache key on a miss.
type Loader func(ctx context.Context) ([]model.CalendarEvent, error)

// CacheKey identifies one fetched window of one account.
type CacheKey struct {
	AccountID string
	From      time.Time
	To        time.Time
}

// EventCache caches fetched event lists. Returned slices are shared and
// must not be modified.
type EventCache interface {
	// Get returns the cached events for key or calls load on a miss.
	// hit reports whether the result came from the cache.
	Get(ctx context.Context, key CacheKey, load Loader) (events []model.CalendarEvent, hit bool, err error)

	// Invalidate drops every cached window of an account.
	Invalidate(ctx context.Context, accountID string)

	// Len returns the number of cached windows.
	Len() int
}

// ValueStore holds a single numeric display value.
type ValueStore interface {
	// Get returns the value and whether one has been set.
	Get(ctx context.Context) (float64, bool)

	// Set stores v. Non-finite values are rejected with ErrInvalidValue.
	Set(ctx context.Context, v float64) error
}
