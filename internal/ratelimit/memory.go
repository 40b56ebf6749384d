package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps hits in process memory. Entries for idle tokens are
// never removed.
type MemoryStore struct {
	hits map[string][]time.Time
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (s *MemoryStore) Hits(_ context.Context, token string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := s.hits[token]
	out := make([]time.Time, len(hits))
	copy(out, hits)
	return out, nil
}

func (s *MemoryStore) SetHits(_ context.Context, token string, hits []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]time.Time, len(hits))
	copy(stored, hits)
	s.hits[token] = stored
	return nil
}
