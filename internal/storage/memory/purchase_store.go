package memory

import (
	"context"
	"sort"
	"sync"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

// PurchaseStore is an in-memory implementation of storage.PurchaseStore.
type PurchaseStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PurchaseReceipt // keyed by receipt_id
}

// NewPurchaseStore creates a new in-memory purchase store.
func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{
		data: make(map[string]*domain.PurchaseReceipt),
	}
}

// Compile-time interface check.
var _ storage.PurchaseStore = (*PurchaseStore)(nil)

// Insert adds a new receipt. Returns ErrDuplicateKey if receipt_id exists.
func (s *PurchaseStore) Insert(_ context.Context, r *domain.PurchaseReceipt) error {
	if r == nil || r.ReceiptID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ReceiptID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[r.ReceiptID] = r.Clone()
	return nil
}

// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *PurchaseStore) GetByID(_ context.Context, receiptID string) (*domain.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[receiptID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// GetByBuyer retrieves all receipts for a buyer, ordered by timestamp ASC.
func (s *PurchaseStore) GetByBuyer(_ context.Context, buyer domain.Address) ([]*domain.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PurchaseReceipt
	for _, r := range s.data {
		if r.Buyer == buyer {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// GetByTimeRange retrieves receipts within [start, end] (inclusive).
func (s *PurchaseStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PurchaseReceipt
	for _, r := range s.data {
		if r.Timestamp >= start && r.Timestamp <= end {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}
