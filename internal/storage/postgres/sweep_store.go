package postgres

import (
	"context"
	"fmt"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

// SweepStore implements storage.SweepStore using PostgreSQL.
type SweepStore struct {
	pool *Pool
}

// NewSweepStore creates a new SweepStore.
func NewSweepStore(pool *Pool) *SweepStore {
	return &SweepStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SweepStore = (*SweepStore)(nil)

// Insert adds a new sweep record. Returns ErrDuplicateKey if sweep_id exists.
func (s *SweepStore) Insert(ctx context.Context, r *domain.SweepRecord) error {
	if r == nil || r.SweepID == "" || r.Amount == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sweep_records (
			sweep_id, caller, amount, timestamp_ms
		) VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		r.SweepID,
		r.Caller.String(),
		r.Amount.Dec(),
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert sweep record: %w", err)
	}
	return nil
}

// GetAll retrieves all sweep records, ordered by timestamp ASC.
func (s *SweepStore) GetAll(ctx context.Context) ([]*domain.SweepRecord, error) {
	query := `
		SELECT sweep_id, caller, amount::text, timestamp_ms, created_at
		FROM sweep_records
		ORDER BY timestamp_ms ASC, sweep_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get sweep records: %w", err)
	}
	defer rows.Close()

	var result []*domain.SweepRecord
	for rows.Next() {
		var (
			r      domain.SweepRecord
			caller string
			amount string
		)
		if err := rows.Scan(&r.SweepID, &caller, &amount, &r.Timestamp, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sweep record: %w", err)
		}
		r.Caller = domain.Address(caller)
		if r.Amount, err = domain.ParseAmount(amount); err != nil {
			return nil, err
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep records: %w", err)
	}
	return result, nil
}
