package ledger

import "errors"

// Ledger errors.
var (
	// ErrMalformedBalance is returned when a balance query does not produce
	// exactly one well-formed 32-byte word.
	ErrMalformedBalance = errors.New("malformed balance response")

	// ErrUnavailable is returned when the ledger cannot be reached.
	ErrUnavailable = errors.New("ledger unavailable")
)
