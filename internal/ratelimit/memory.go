package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore holds windows in process memory. State is lost on restart and
// is not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

func (s *MemoryStore) CheckAndRecord(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := purge(s.windows[key], now.Add(-window))
	entries = append(entries, now)
	s.windows[key] = entries
	return len(entries), nil
}

// Prune drops expired timestamps and empty keys.
func (s *MemoryStore) Prune(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entries := range s.windows {
		entries = purge(entries, now.Add(-window))
		if len(entries) == 0 {
			delete(s.windows, key)
			removed++
			continue
		}
		s.windows[key] = entries
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// purge keeps timestamps at or after cutoff. Entries are appended in order so
// the first kept index splits the slice.
func purge(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && entries[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return entries
	}
	return append(entries[:0], entries[i:]...)
}
