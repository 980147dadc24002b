package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/autogenlabs-dev/tokengate/internal/clock"
)

type memoryEntry struct {
	windowStart time.Time
	count       int64
}

// MemoryStore is a process-local fixed-window counter. Suitable for a
// single instance; multi-instance deployments should use Redis.
type MemoryStore struct {
	clock clock.Clock
	mu    sync.Mutex
	items map[string]*memoryEntry
	// nextPrune bounds the map to accounts seen within the last window.
	nextPrune time.Time
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MemoryStore{
		clock: clk,
		items: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextPrune) {
		for k, e := range s.items {
			if now.Sub(e.windowStart) >= window {
				delete(s.items, k)
			}
		}
		s.nextPrune = now.Add(window)
	}

	entry := s.items[key]
	if entry == nil || now.Sub(entry.windowStart) >= window {
		entry = &memoryEntry{windowStart: now}
		s.items[key] = entry
	}
	entry.count++
	return entry.count, nil
}
