package observability

import (
	"strconv"

	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
)

// Recorder feeds committed sale operations into DefaultMetrics. It satisfies
// the sale engine's hook interface.
type Recorder struct{}

// OnPurchase records a committed purchase.
func (Recorder) OnPurchase(r *domain.PurchaseReceipt) {
	RecordPurchase(amountFloat(r.AmountOut), amountFloat(r.AmountIn))
}

// OnSweep records a committed sweep.
func (Recorder) OnSweep(*domain.SweepRecord) {
	RecordSweep()
}

// amountFloat converts a 256-bit amount to float64 for metric export.
// Precision loss is acceptable here; metrics are not the audit trail.
func amountFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, err := strconv.ParseFloat(v.Dec(), 64)
	if err != nil {
		return 0
	}
	return f
}
