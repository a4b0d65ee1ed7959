package clickhouse

import (
	"context"
	"fmt"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

// SaleEventStore implements storage.SaleEventStore using ClickHouse.
// Amounts travel as UInt256 columns.
type SaleEventStore struct {
	conn *Conn
}

// NewSaleEventStore creates a new SaleEventStore.
func NewSaleEventStore(conn *Conn) *SaleEventStore {
	return &SaleEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SaleEventStore = (*SaleEventStore)(nil)

// InsertBulk adds multiple events. Fails entire batch on duplicate event_id.
func (s *SaleEventStore) InsertBulk(ctx context.Context, events []*domain.SaleEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || !e.Kind.IsValid() {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sale_events (
			event_id, kind, actor, amount_in, amount_out, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID, string(e.Kind), e.Actor.String(),
			e.AmountIn.ToBig(), e.AmountOut.ToBig(), uint64(e.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *SaleEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleEvent, error) {
	query := `
		SELECT event_id, kind, actor, toString(amount_in), toString(amount_out), timestamp_ms
		FROM sale_events
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.SaleEvent
	for rows.Next() {
		var (
			e           domain.SaleEvent
			kind        string
			actor       string
			amountIn    string
			amountOut   string
			timestampMs uint64
		)
		if err := rows.Scan(&e.EventID, &kind, &actor, &amountIn, &amountOut, &timestampMs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = domain.SaleEventKind(kind)
		e.Actor = domain.Address(actor)
		e.TimestampMs = int64(timestampMs)
		if e.AmountIn, err = domain.ParseAmount(amountIn); err != nil {
			return nil, err
		}
		if e.AmountOut, err = domain.ParseAmount(amountOut); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

// exists checks whether an event_id is already stored.
func (s *SaleEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM sale_events WHERE event_id = ?`, eventID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
