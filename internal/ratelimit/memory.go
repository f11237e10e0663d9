package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/daap14/parley/internal/clock"
)

type entry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process memory. Suitable for a single
// instance; use RedisStore when running several replicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   clock.Clock
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		clock:   c,
	}
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt, nil
}

// Cleanup removes counters whose window has ended.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartCleanup runs Cleanup every interval until ctx is cancelled.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				slog.Debug("rate limit counters expired", "removed", n)
			}
		}
	}
}
