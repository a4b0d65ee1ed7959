package observability

import (
	"context"
	"time"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

// Instrumented store wrappers record query latency and errors into
// DefaultMetrics. The database label distinguishes backends ("postgres",
// "clickhouse").

// InstrumentPurchaseStore wraps a PurchaseStore with query metrics.
func InstrumentPurchaseStore(database string, inner storage.PurchaseStore) storage.PurchaseStore {
	return &instrumentedPurchaseStore{database: database, inner: inner}
}

// InstrumentSweepStore wraps a SweepStore with query metrics.
func InstrumentSweepStore(database string, inner storage.SweepStore) storage.SweepStore {
	return &instrumentedSweepStore{database: database, inner: inner}
}

// InstrumentSaleEventStore wraps a SaleEventStore with query metrics.
func InstrumentSaleEventStore(database string, inner storage.SaleEventStore) storage.SaleEventStore {
	return &instrumentedSaleEventStore{database: database, inner: inner}
}

type instrumentedPurchaseStore struct {
	database string
	inner    storage.PurchaseStore
}

var _ storage.PurchaseStore = (*instrumentedPurchaseStore)(nil)

func (s *instrumentedPurchaseStore) Insert(ctx context.Context, r *domain.PurchaseReceipt) error {
	start := time.Now()
	err := s.inner.Insert(ctx, r)
	RecordDBQuery(s.database, "purchase_insert", time.Since(start).Seconds(), err)
	return err
}

func (s *instrumentedPurchaseStore) GetByID(ctx context.Context, receiptID string) (*domain.PurchaseReceipt, error) {
	start := time.Now()
	r, err := s.inner.GetByID(ctx, receiptID)
	RecordDBQuery(s.database, "purchase_get_by_id", time.Since(start).Seconds(), err)
	return r, err
}

func (s *instrumentedPurchaseStore) GetByBuyer(ctx context.Context, buyer domain.Address) ([]*domain.PurchaseReceipt, error) {
	start := time.Now()
	r, err := s.inner.GetByBuyer(ctx, buyer)
	RecordDBQuery(s.database, "purchase_get_by_buyer", time.Since(start).Seconds(), err)
	return r, err
}

func (s *instrumentedPurchaseStore) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*domain.PurchaseReceipt, error) {
	start := time.Now()
	r, err := s.inner.GetByTimeRange(ctx, startMs, endMs)
	RecordDBQuery(s.database, "purchase_get_by_time_range", time.Since(start).Seconds(), err)
	return r, err
}

type instrumentedSweepStore struct {
	database string
	inner    storage.SweepStore
}

var _ storage.SweepStore = (*instrumentedSweepStore)(nil)

func (s *instrumentedSweepStore) Insert(ctx context.Context, r *domain.SweepRecord) error {
	start := time.Now()
	err := s.inner.Insert(ctx, r)
	RecordDBQuery(s.database, "sweep_insert", time.Since(start).Seconds(), err)
	return err
}

func (s *instrumentedSweepStore) GetAll(ctx context.Context) ([]*domain.SweepRecord, error) {
	start := time.Now()
	r, err := s.inner.GetAll(ctx)
	RecordDBQuery(s.database, "sweep_get_all", time.Since(start).Seconds(), err)
	return r, err
}

type instrumentedSaleEventStore struct {
	database string
	inner    storage.SaleEventStore
}

var _ storage.SaleEventStore = (*instrumentedSaleEventStore)(nil)

func (s *instrumentedSaleEventStore) InsertBulk(ctx context.Context, events []*domain.SaleEvent) error {
	start := time.Now()
	err := s.inner.InsertBulk(ctx, events)
	RecordDBQuery(s.database, "sale_event_insert_bulk", time.Since(start).Seconds(), err)
	return err
}

func (s *instrumentedSaleEventStore) GetByTimeRange(ctx context.Context, startMs, endMs int64) ([]*domain.SaleEvent, error) {
	start := time.Now()
	r, err := s.inner.GetByTimeRange(ctx, startMs, endMs)
	RecordDBQuery(s.database, "sale_event_get_by_time_range", time.Since(start).Seconds(), err)
	return r, err
}
