// Package ledger defines the collaborator interfaces for the external
// token ledger and the native-currency ledger. The sale engine owns neither;
// it only reads balances and requests transfers.
package ledger

import (
	"context"

	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
)

// TokenLedger is the external fungible-token accounting system.
// Transfers never create or destroy supply.
type TokenLedger interface {
	// BalanceOf returns the token balance held by addr.
	// A malformed or failed query returns ErrMalformedBalance (possibly wrapped).
	BalanceOf(ctx context.Context, addr domain.Address) (*uint256.Int, error)

	// Transfer moves amount from one account to another.
	// ok=false means the ledger rejected the transfer with no effect
	// (insufficient balance, rejecting receiver).
	Transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) (ok bool, err error)
}

// CurrencyLedger tracks native-currency balances with the same contract
// as TokenLedger.
type CurrencyLedger interface {
	BalanceOf(ctx context.Context, addr domain.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) (ok bool, err error)
}
