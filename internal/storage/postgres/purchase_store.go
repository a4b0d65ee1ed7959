package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

// PurchaseStore implements storage.PurchaseStore using PostgreSQL.
type PurchaseStore struct {
	pool *Pool
}

// NewPurchaseStore creates a new PurchaseStore.
func NewPurchaseStore(pool *Pool) *PurchaseStore {
	return &PurchaseStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PurchaseStore = (*PurchaseStore)(nil)

// Insert adds a new receipt. Returns ErrDuplicateKey if receipt_id exists.
func (s *PurchaseStore) Insert(ctx context.Context, r *domain.PurchaseReceipt) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO purchase_receipts (
			receipt_id, buyer, amount_in, amount_out, timestamp_ms
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ReceiptID,
		r.Buyer.String(),
		r.AmountIn.Dec(),
		r.AmountOut.Dec(),
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *PurchaseStore) GetByID(ctx context.Context, receiptID string) (*domain.PurchaseReceipt, error) {
	query := `
		SELECT receipt_id, buyer, amount_in::text, amount_out::text, timestamp_ms, created_at
		FROM purchase_receipts
		WHERE receipt_id = $1
	`

	row := s.pool.QueryRow(ctx, query, receiptID)
	r, err := scanReceipt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt by id: %w", err)
	}
	return r, nil
}

// GetByBuyer retrieves all receipts for a buyer, ordered by timestamp ASC.
func (s *PurchaseStore) GetByBuyer(ctx context.Context, buyer domain.Address) ([]*domain.PurchaseReceipt, error) {
	query := `
		SELECT receipt_id, buyer, amount_in::text, amount_out::text, timestamp_ms, created_at
		FROM purchase_receipts
		WHERE buyer = $1
		ORDER BY timestamp_ms ASC, receipt_id ASC
	`

	rows, err := s.pool.Query(ctx, query, buyer.String())
	if err != nil {
		return nil, fmt.Errorf("get receipts by buyer: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// GetByTimeRange retrieves receipts within [start, end] (inclusive).
func (s *PurchaseStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.PurchaseReceipt, error) {
	query := `
		SELECT receipt_id, buyer, amount_in::text, amount_out::text, timestamp_ms, created_at
		FROM purchase_receipts
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms ASC, receipt_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get receipts by time range: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// scanReceipt scans a single receipt row.
func scanReceipt(row pgx.Row) (*domain.PurchaseReceipt, error) {
	var (
		r         domain.PurchaseReceipt
		buyer     string
		amountIn  string
		amountOut string
	)

	err := row.Scan(&r.ReceiptID, &buyer, &amountIn, &amountOut, &r.Timestamp, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Buyer = domain.Address(buyer)
	if r.AmountIn, err = domain.ParseAmount(amountIn); err != nil {
		return nil, err
	}
	if r.AmountOut, err = domain.ParseAmount(amountOut); err != nil {
		return nil, err
	}
	return &r, nil
}

// scanReceipts scans multiple receipt rows.
func scanReceipts(rows pgx.Rows) ([]*domain.PurchaseReceipt, error) {
	var result []*domain.PurchaseReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return result, nil
}
