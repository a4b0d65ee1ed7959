package clickhouse_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
	"token-sale-lab/internal/storage/clickhouse"
)

func createTestEvent(id string, kind domain.SaleEventKind, ts int64) *domain.SaleEvent {
	return &domain.SaleEvent{
		EventID:     id,
		Kind:        kind,
		Actor:       "actor-1",
		AmountIn:    uint256.NewInt(10),
		AmountOut:   uint256.NewInt(200),
		TimestampMs: ts,
	}
}

func TestSaleEventStore_InsertBulkAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewSaleEventStore(conn)

	events := []*domain.SaleEvent{
		createTestEvent("e1", domain.SaleEventPurchase, 1000),
		createTestEvent("e2", domain.SaleEventPurchase, 2000),
		createTestEvent("e3", domain.SaleEventSweep, 3000),
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	result, err := store.GetByTimeRange(ctx, 1000, 2500)
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, "e1", result[0].EventID)
	assert.Equal(t, "e2", result[1].EventID)
	assert.Equal(t, domain.SaleEventPurchase, result[0].Kind)
	assert.True(t, result[0].AmountOut.Eq(uint256.NewInt(200)), "got %s", result[0].AmountOut.Dec())
}

func TestSaleEventStore_LargeAmounts(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewSaleEventStore(conn)

	// Maximum 256-bit value must survive the UInt256 round trip.
	max := new(uint256.Int).SetAllOne()
	e := &domain.SaleEvent{
		EventID:     "e-max",
		Kind:        domain.SaleEventSweep,
		Actor:       "actor-1",
		AmountIn:    uint256.NewInt(0),
		AmountOut:   max,
		TimestampMs: 1000,
	}
	require.NoError(t, store.InsertBulk(ctx, []*domain.SaleEvent{e}))

	result, err := store.GetByTimeRange(ctx, 1000, 1000)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].AmountOut.Eq(max), "got %s", result[0].AmountOut.Dec())
}

func TestSaleEventStore_EmptyBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSaleEventStore(conn)
	assert.NoError(t, store.InsertBulk(context.Background(), nil))
}

func TestSaleEventStore_DuplicateDetection(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := clickhouse.NewSaleEventStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.SaleEvent{
		createTestEvent("e1", domain.SaleEventPurchase, 1000),
	}))

	// Duplicate against existing rows.
	err := store.InsertBulk(ctx, []*domain.SaleEvent{
		createTestEvent("e1", domain.SaleEventPurchase, 2000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Intra-batch duplicate.
	err = store.InsertBulk(ctx, []*domain.SaleEvent{
		createTestEvent("e2", domain.SaleEventPurchase, 1000),
		createTestEvent("e2", domain.SaleEventPurchase, 2000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSaleEventStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSaleEventStore(conn)

	err := store.InsertBulk(context.Background(), []*domain.SaleEvent{
		createTestEvent("e1", "BOGUS", 1000),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
