package sale

import "errors"

// Sale errors. Every error aborts the entire enclosing operation with zero
// observable state change; there is no partial-success path.
var (
	// ErrSaleEnded is returned when quoting or purchasing after the deadline.
	ErrSaleEnded = errors.New("sale has ended")

	// ErrSaleActive is returned when sweeping before the deadline.
	ErrSaleActive = errors.New("sale is still active")

	// ErrInsufficientInput is returned when quoting a zero input amount.
	ErrInsufficientInput = errors.New("input amount must be greater than zero")

	// ErrExceedsRemainingSupply is returned when the requested output exceeds
	// the contract's token balance.
	ErrExceedsRemainingSupply = errors.New("output exceeds remaining supply")

	// ErrBalanceCheckFailed is returned when the token balance query fails
	// or returns a malformed result.
	ErrBalanceCheckFailed = errors.New("token balance check failed")

	// ErrCurrencyTransferFailed is returned when the treasury rejects the
	// currency transfer.
	ErrCurrencyTransferFailed = errors.New("currency transfer to treasury failed")

	// ErrTokenTransferFailed is returned when the token ledger rejects an
	// outbound token transfer.
	ErrTokenTransferFailed = errors.New("token transfer failed")

	// ErrArithmeticOverflow is returned when input * rate overflows 256 bits.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
