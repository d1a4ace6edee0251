package cache

import (
	"context"
	"sync"
	"time"
)

// Store represents the shared counter store used for throttling.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]*memoryCounter
	clock func() time.Time
	ops   int
}

// pruneEvery bounds how many increments pass between sweeps of expired counters.
const pruneEvery = 1024

type memoryCounter struct {
	count     int64
	windowEnd time.Time
}

// NewMemoryStore constructs an empty in-memory store. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{data: make(map[string]*memoryCounter), clock: clock}
}

func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ops++; s.ops%pruneEvery == 0 {
		s.pruneLocked(now)
	}

	counter, ok := s.data[key]
	if !ok || !now.Before(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++

	return counter.count, counter.windowEnd.Sub(now), nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// Prune drops counters whose window has elapsed. IncrementWithTTL also
// sweeps periodically, so long-running processes do not accumulate keys.
func (s *MemoryStore) Prune() int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(now)
}

func (s *MemoryStore) pruneLocked(now time.Time) int {
	removed := 0
	for key, counter := range s.data {
		if !now.Before(counter.windowEnd) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}
