package domain

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestSaleConfig_Validate(t *testing.T) {
	valid := SaleConfig{
		EndTimestamp: 1704067200000,
		Rate:         20,
		Treasury:     "treasury",
		Token:        "token",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *SaleConfig)
	}{
		{"zero end timestamp", func(c *SaleConfig) { c.EndTimestamp = 0 }},
		{"negative end timestamp", func(c *SaleConfig) { c.EndTimestamp = -1 }},
		{"zero rate", func(c *SaleConfig) { c.Rate = 0 }},
		{"missing treasury", func(c *SaleConfig) { c.Treasury = "" }},
		{"missing token", func(c *SaleConfig) { c.Token = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestPurchaseReceipt_Clone(t *testing.T) {
	r := &PurchaseReceipt{
		ReceiptID: "r1",
		Buyer:     "buyer1",
		AmountIn:  uint256.NewInt(10),
		AmountOut: uint256.NewInt(200),
		Timestamp: 1000,
	}

	c := r.Clone()
	c.AmountIn.SetUint64(999)

	if !r.AmountIn.Eq(uint256.NewInt(10)) {
		t.Errorf("Clone shares AmountIn: %s", r.AmountIn.Dec())
	}
}

func TestEventFromReceipt(t *testing.T) {
	r := &PurchaseReceipt{
		ReceiptID: "r1",
		Buyer:     "buyer1",
		AmountIn:  uint256.NewInt(10),
		AmountOut: uint256.NewInt(200),
		Timestamp: 1000,
	}

	e := EventFromReceipt(r)
	if e.Kind != SaleEventPurchase {
		t.Errorf("Kind mismatch: got %s", e.Kind)
	}
	if e.EventID != "r1" || e.Actor != "buyer1" {
		t.Errorf("Identity mismatch: %s / %s", e.EventID, e.Actor)
	}
	if !e.AmountOut.Eq(uint256.NewInt(200)) {
		t.Errorf("AmountOut mismatch: %s", e.AmountOut.Dec())
	}
}

func TestEventFromSweep(t *testing.T) {
	r := &SweepRecord{
		SweepID:   "s1",
		Caller:    "caller1",
		Amount:    uint256.NewInt(800),
		Timestamp: 2000,
	}

	e := EventFromSweep(r)
	if e.Kind != SaleEventSweep {
		t.Errorf("Kind mismatch: got %s", e.Kind)
	}
	if !e.AmountIn.IsZero() {
		t.Errorf("Sweep events carry no input, got %s", e.AmountIn.Dec())
	}
	if !e.AmountOut.Eq(uint256.NewInt(800)) {
		t.Errorf("AmountOut mismatch: %s", e.AmountOut.Dec())
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err != nil {
		t.Fatalf("ParseAmount failed at max value: %v", err)
	}
	if v.Dec() != "115792089237316195423570985008687907853269984665640564039457584007913129639935" {
		t.Errorf("Round trip mismatch")
	}

	for _, bad := range []string{"", "-1", "abc", "115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestFormatAmount_Nil(t *testing.T) {
	if got := FormatAmount(nil); got != "0" {
		t.Errorf("Expected 0 for nil, got %s", got)
	}
}
