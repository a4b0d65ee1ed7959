package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
)

// Environment errors.
var (
	// ErrInsufficientFunds is returned when the caller cannot cover the
	// attached currency value.
	ErrInsufficientFunds = errors.New("caller has insufficient currency")
)

// Environment reproduces the host-ledger invocation contract: each call is
// totally ordered, observes fully committed prior state, and either commits
// all of its effects or none of them.
type Environment struct {
	mu       sync.Mutex
	tokens   *Ledger
	currency *Ledger
	contract domain.Address
}

// NewEnvironment creates an execution environment around the two ledgers
// and the sale contract's own account.
func NewEnvironment(tokens, currency *Ledger, contract domain.Address) *Environment {
	return &Environment{
		tokens:   tokens,
		currency: currency,
		contract: contract,
	}
}

// Invoke runs fn as one atomic ledger operation. The caller's attached
// currency value is debited from the caller and credited to the contract
// before fn runs. If fn returns an error, every effect on both ledgers,
// including the value credit, is rolled back exactly.
func (e *Environment) Invoke(ctx context.Context, caller domain.Address, value *uint256.Int, fn func(context.Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokenSnap := e.tokens.snapshot()
	currencySnap := e.currency.snapshot()

	if value != nil && !value.IsZero() {
		ok, err := e.currency.Transfer(ctx, caller, e.contract, value)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientFunds
		}
	}

	if err := fn(ctx); err != nil {
		e.tokens.restore(tokenSnap)
		e.currency.restore(currencySnap)
		return err
	}

	return nil
}
