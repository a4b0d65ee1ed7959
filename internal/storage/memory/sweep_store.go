package memory

import (
	"context"
	"sort"
	"sync"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

// SweepStore is an in-memory implementation of storage.SweepStore.
type SweepStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SweepRecord // keyed by sweep_id
}

// NewSweepStore creates a new in-memory sweep store.
func NewSweepStore() *SweepStore {
	return &SweepStore{
		data: make(map[string]*domain.SweepRecord),
	}
}

// Compile-time interface check.
var _ storage.SweepStore = (*SweepStore)(nil)

// Insert adds a new sweep record. Returns ErrDuplicateKey if sweep_id exists.
func (s *SweepStore) Insert(_ context.Context, r *domain.SweepRecord) error {
	if r == nil || r.SweepID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.SweepID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.SweepID] = r.Clone()
	return nil
}

// GetAll retrieves all sweep records, ordered by timestamp ASC.
func (s *SweepStore) GetAll(_ context.Context) ([]*domain.SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SweepRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}
