package quota

import (
	"context"
	"sync"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

// MemoryStore keeps the latest dated record per key. A record from an earlier
// day is replaced, never carried over.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.DailyUsageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.DailyUsageRecord)}
}

func (s *MemoryStore) Get(_ context.Context, key, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Date != day {
		return 0, nil
	}
	return rec.Count, nil
}

func (s *MemoryStore) Incr(_ context.Context, key, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[key]
	if rec.Date != day {
		rec = models.DailyUsageRecord{Date: day}
	}
	rec.Count++
	s.records[key] = rec
	return rec.Count, nil
}

func (s *MemoryStore) Reset(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Seed writes a record directly.
func (s *MemoryStore) Seed(key string, rec models.DailyUsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
}
