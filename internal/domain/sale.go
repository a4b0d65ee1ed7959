package domain

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// SaleConfig holds the immutable configuration of a fixed-rate token sale.
// Set once at construction; no update operation exists.
type SaleConfig struct {
	EndTimestamp int64   // sale deadline, Unix timestamp in milliseconds
	Rate         uint64  // output-token units per unit of input currency
	Treasury     Address // destination for collected currency and swept tokens
	Token        Address // external token ledger account of the sale token
}

// Validate checks that the config is well-formed.
func (c SaleConfig) Validate() error {
	if c.EndTimestamp <= 0 {
		return errors.New("end timestamp must be positive")
	}
	if c.Rate == 0 {
		return errors.New("rate must be greater than zero")
	}
	if c.Treasury == "" {
		return errors.New("treasury address is required")
	}
	if c.Token == "" {
		return errors.New("token address is required")
	}
	return nil
}

// PurchaseReceipt records a completed purchase.
// Corresponds to purchase_receipts table in PostgreSQL.
type PurchaseReceipt struct {
	ReceiptID string       // PRIMARY KEY, uuid
	Buyer     Address      // purchasing account
	AmountIn  *uint256.Int // native currency paid
	AmountOut *uint256.Int // tokens received (AmountIn * Rate)
	Timestamp int64        // execution time, Unix ms
	CreatedAt int64        // record creation timestamp (ms)
}

// Clone returns a deep copy of the receipt.
func (r *PurchaseReceipt) Clone() *PurchaseReceipt {
	c := *r
	if r.AmountIn != nil {
		c.AmountIn = new(uint256.Int).Set(r.AmountIn)
	}
	if r.AmountOut != nil {
		c.AmountOut = new(uint256.Int).Set(r.AmountOut)
	}
	return &c
}

// Validate checks receipt fields at package boundaries.
func (r *PurchaseReceipt) Validate() error {
	if r == nil || r.ReceiptID == "" {
		return errors.New("receipt id is required")
	}
	if r.Buyer == "" {
		return errors.New("buyer address is required")
	}
	if r.AmountIn == nil || r.AmountIn.IsZero() {
		return errors.New("amount in must be greater than zero")
	}
	if r.AmountOut == nil {
		return errors.New("amount out is required")
	}
	return nil
}

// SweepRecord records a post-deadline sweep of unsold tokens to the treasury.
// Corresponds to sweep_records table in PostgreSQL.
type SweepRecord struct {
	SweepID   string       // PRIMARY KEY, uuid
	Caller    Address      // whoever triggered the sweep (not access controlled)
	Amount    *uint256.Int // tokens moved to the treasury
	Timestamp int64        // execution time, Unix ms
	CreatedAt int64        // record creation timestamp (ms)
}

// Clone returns a deep copy of the record.
func (r *SweepRecord) Clone() *SweepRecord {
	c := *r
	if r.Amount != nil {
		c.Amount = new(uint256.Int).Set(r.Amount)
	}
	return &c
}

// SaleEventKind distinguishes rows in the analytical sale_events stream.
type SaleEventKind string

const (
	SaleEventPurchase SaleEventKind = "PURCHASE"
	SaleEventSweep    SaleEventKind = "SWEEP"
)

// IsValid checks if the kind is a known value.
func (k SaleEventKind) IsValid() bool {
	return k == SaleEventPurchase || k == SaleEventSweep
}

// SaleEvent is one row of the analytical event stream.
// Corresponds to sale_events table in ClickHouse.
type SaleEvent struct {
	EventID     string        // uuid
	Kind        SaleEventKind // PURCHASE | SWEEP
	Actor       Address       // buyer or sweep caller
	AmountIn    *uint256.Int  // currency paid (zero for sweeps)
	AmountOut   *uint256.Int  // tokens moved
	TimestampMs int64         // execution time, Unix ms
}

// EventFromReceipt converts a purchase receipt to a sale event.
func EventFromReceipt(r *PurchaseReceipt) *SaleEvent {
	return &SaleEvent{
		EventID:     r.ReceiptID,
		Kind:        SaleEventPurchase,
		Actor:       r.Buyer,
		AmountIn:    new(uint256.Int).Set(r.AmountIn),
		AmountOut:   new(uint256.Int).Set(r.AmountOut),
		TimestampMs: r.Timestamp,
	}
}

// EventFromSweep converts a sweep record to a sale event.
func EventFromSweep(r *SweepRecord) *SaleEvent {
	return &SaleEvent{
		EventID:     r.SweepID,
		Kind:        SaleEventSweep,
		Actor:       r.Caller,
		AmountIn:    uint256.NewInt(0),
		AmountOut:   new(uint256.Int).Set(r.Amount),
		TimestampMs: r.Timestamp,
	}
}

// FormatAmount renders a nil-safe decimal string for logging and JSON.
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// ParseAmount parses a decimal amount string into a 256-bit unsigned integer.
func ParseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}
