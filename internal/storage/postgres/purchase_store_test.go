package postgres

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/storage"
)

func createTestReceipt(id string, buyer domain.Address, ts int64) *domain.PurchaseReceipt {
	return &domain.PurchaseReceipt{
		ReceiptID: id,
		Buyer:     buyer,
		AmountIn:  uint256.NewInt(10),
		AmountOut: uint256.NewInt(200),
		Timestamp: ts,
	}
}

func TestPurchaseStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPurchaseStore(pool)

	receipt := createTestReceipt("receipt-001", "buyer-1", 1704067200000)

	err := store.Insert(ctx, receipt)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "receipt-001")
	require.NoError(t, err)

	assert.Equal(t, receipt.ReceiptID, retrieved.ReceiptID)
	assert.Equal(t, receipt.Buyer, retrieved.Buyer)
	assert.True(t, retrieved.AmountIn.Eq(uint256.NewInt(10)), "amount_in mismatch: %s", retrieved.AmountIn.Dec())
	assert.True(t, retrieved.AmountOut.Eq(uint256.NewInt(200)), "amount_out mismatch: %s", retrieved.AmountOut.Dec())
	assert.Equal(t, receipt.Timestamp, retrieved.Timestamp)
	assert.NotZero(t, retrieved.CreatedAt)
}

func TestPurchaseStore_LargeAmounts(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPurchaseStore(pool)

	// Maximum 256-bit value must survive the NUMERIC round trip.
	max := new(uint256.Int).SetAllOne()
	receipt := &domain.PurchaseReceipt{
		ReceiptID: "receipt-max",
		Buyer:     "buyer-1",
		AmountIn:  uint256.NewInt(1),
		AmountOut: max,
		Timestamp: 1000,
	}

	err := store.Insert(ctx, receipt)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "receipt-max")
	require.NoError(t, err)
	assert.True(t, retrieved.AmountOut.Eq(max), "got %s", retrieved.AmountOut.Dec())
}

func TestPurchaseStore_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPurchaseStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPurchaseStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPurchaseStore(pool)

	receipt := createTestReceipt("receipt-001", "buyer-1", 1000)

	err := store.Insert(ctx, receipt)
	require.NoError(t, err)

	err = store.Insert(ctx, receipt)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPurchaseStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPurchaseStore(pool)

	// Zero input amount fails validation before reaching the database.
	bad := &domain.PurchaseReceipt{
		ReceiptID: "receipt-bad",
		Buyer:     "buyer-1",
		AmountIn:  uint256.NewInt(0),
		AmountOut: uint256.NewInt(0),
	}
	err := store.Insert(context.Background(), bad)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPurchaseStore_GetByBuyer(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPurchaseStore(pool)

	require.NoError(t, store.Insert(ctx, createTestReceipt("r1", "buyer-1", 3000)))
	require.NoError(t, store.Insert(ctx, createTestReceipt("r2", "buyer-1", 1000)))
	require.NoError(t, store.Insert(ctx, createTestReceipt("r3", "buyer-2", 2000)))

	result, err := store.GetByBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, result, 2)

	// Ordered by timestamp ascending.
	assert.Equal(t, "r2", result[0].ReceiptID)
	assert.Equal(t, "r1", result[1].ReceiptID)
}

func TestPurchaseStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPurchaseStore(pool)

	require.NoError(t, store.Insert(ctx, createTestReceipt("r1", "buyer-1", 1000)))
	require.NoError(t, store.Insert(ctx, createTestReceipt("r2", "buyer-1", 2000)))
	require.NoError(t, store.Insert(ctx, createTestReceipt("r3", "buyer-1", 3000)))

	result, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}
