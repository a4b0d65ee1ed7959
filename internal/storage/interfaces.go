package storage

import (
	"context"

	"token-sale-lab/internal/domain"
)

// PurchaseStore provides access to purchase_receipts storage.
type PurchaseStore interface {
	// Insert adds a new receipt. Returns ErrDuplicateKey if receipt_id exists.
	Insert(ctx context.Context, r *domain.PurchaseReceipt) error

	// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, receiptID string) (*domain.PurchaseReceipt, error)

	// GetByBuyer retrieves all receipts for a buyer, ordered by timestamp ASC.
	GetByBuyer(ctx context.Context, buyer domain.Address) ([]*domain.PurchaseReceipt, error)

	// GetByTimeRange retrieves receipts within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.PurchaseReceipt, error)
}

// SweepStore provides access to sweep_records storage.
type SweepStore interface {
	// Insert adds a new sweep record. Returns ErrDuplicateKey if sweep_id exists.
	Insert(ctx context.Context, r *domain.SweepRecord) error

	// GetAll retrieves all sweep records, ordered by timestamp ASC.
	GetAll(ctx context.Context) ([]*domain.SweepRecord, error)
}

// SaleEventStore provides access to the analytical sale_events stream.
type SaleEventStore interface {
	// InsertBulk adds multiple events. Fails entire batch on duplicate event_id.
	InsertBulk(ctx context.Context, events []*domain.SaleEvent) error

	// GetByTimeRange retrieves events within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleEvent, error)
}
