package repository

import (
	"context"
	"math"
	"sync"
)

// MemoryValueStore keeps the display value in memory.
type MemoryValueStore struct {
	mu    sync.RWMutex
	value float64
	set   bool
}

// NewValueStore returns an empty MemoryValueStore.
func NewValueStore() *MemoryValueStore {
	return &MemoryValueStore{}
}

// Get implements ValueStore.
func (s *MemoryValueStore) Get(context.Context) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.set
}

// Set implements ValueStore.
func (s *MemoryValueStore) Set(_ context.Context, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidValue
	}
	s.mu.Lock()
	s.value, s.set = v, true
	s.mu.Unlock()
	return nil
}
