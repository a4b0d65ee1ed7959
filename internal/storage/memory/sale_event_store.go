package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

// SaleEventStore is an in-memory implementation of storage.SaleEventStore.
type SaleEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SaleEvent // keyed by event_id
}

// NewSaleEventStore creates a new in-memory sale event store.
func NewSaleEventStore() *SaleEventStore {
	return &SaleEventStore{
		data: make(map[string]*domain.SaleEvent),
	}
}

// Compile-time interface check.
var _ storage.SaleEventStore = (*SaleEventStore)(nil)

// InsertBulk adds multiple events. Fails entire batch on duplicate event_id.
func (s *SaleEventStore) InsertBulk(_ context.Context, events []*domain.SaleEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicates before applying anything
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || !e.Kind.IsValid() {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[e.EventID]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.data[e.EventID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	for _, e := range events {
		s.data[e.EventID] = copyEvent(e)
	}
	return nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *SaleEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SaleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SaleEvent
	for _, e := range s.data {
		if e.TimestampMs >= start && e.TimestampMs <= end {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

func copyEvent(e *domain.SaleEvent) *domain.SaleEvent {
	c := *e
	if e.AmountIn != nil {
		c.AmountIn = new(uint256.Int).Set(e.AmountIn)
	}
	if e.AmountOut != nil {
		c.AmountOut = new(uint256.Int).Set(e.AmountOut)
	}
	return &c
}
