// Package sale implements the fixed-rate token sale state machine:
// participants send native currency and receive tokens at a fixed rate,
// up to the contract's remaining balance, until a fixed deadline. After the
// deadline anyone may sweep unsold tokens to the treasury.
package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/ledger"
	"token-sale-lab/internal/storage"
)

// Environment provides the atomic invocation contract of the hosting ledger:
// Invoke credits the contract's currency balance with value from caller,
// runs fn, and rolls every ledger effect back exactly if fn returns an error.
// A nil or zero value attaches no currency.
type Environment interface {
	Invoke(ctx context.Context, caller domain.Address, value *uint256.Int, fn func(context.Context) error) error
}

// Hook receives successful operations. Hooks are observability only and
// must not change observable sale state.
type Hook interface {
	OnPurchase(r *domain.PurchaseReceipt)
	OnSweep(r *domain.SweepRecord)
}

// Engine executes sale operations against the two ledger collaborators.
type Engine struct {
	cfg      domain.SaleConfig
	contract domain.Address
	tokens   ledger.TokenLedger
	currency ledger.CurrencyLedger
	env      Environment
	clock    Clock

	purchaseStore storage.PurchaseStore
	sweepStore    storage.SweepStore
	hooks         []Hook
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	Config   domain.SaleConfig
	Contract domain.Address // the sale contract's own ledger account
	Tokens   ledger.TokenLedger
	Currency ledger.CurrencyLedger
	Env      Environment
	Clock    Clock // defaults to SystemClock

	// Optional audit stores; receipts are persisted when non-nil.
	PurchaseStore storage.PurchaseStore
	SweepStore    storage.SweepStore

	// Optional observability hooks, notified after commit.
	Hooks []Hook
}

// NewEngine creates a sale engine. The config is validated once and fixed
// for the engine's lifetime.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sale config: %w", err)
	}
	if opts.Contract == "" {
		return nil, errors.New("contract address is required")
	}
	if opts.Tokens == nil || opts.Currency == nil {
		return nil, errors.New("token and currency ledgers are required")
	}
	if opts.Env == nil {
		return nil, errors.New("execution environment is required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	return &Engine{
		cfg:           opts.Config,
		contract:      opts.Contract,
		tokens:        opts.Tokens,
		currency:      opts.Currency,
		env:           opts.Env,
		clock:         clock,
		purchaseStore: opts.PurchaseStore,
		sweepStore:    opts.SweepStore,
		hooks:         opts.Hooks,
	}, nil
}

// Config returns the immutable sale configuration.
func (e *Engine) Config() domain.SaleConfig {
	return e.cfg
}

// Contract returns the sale contract's own ledger account.
func (e *Engine) Contract() domain.Address {
	return e.contract
}

// Active reports whether the sale deadline has not passed yet.
func (e *Engine) Active() bool {
	return e.clock.Now() <= e.cfg.EndTimestamp
}

// Quote computes the token output for inputAmount without side effects.
// Steps:
//  1. Reject zero input
//  2. Reject after the deadline
//  3. Query the contract's token balance
//  4. Multiply input by rate, checking 256-bit overflow explicitly
//  5. Reject outputs above the remaining balance
func (e *Engine) Quote(ctx context.Context, inputAmount *uint256.Int) (*uint256.Int, error) {
	if inputAmount == nil || inputAmount.IsZero() {
		return nil, ErrInsufficientInput
	}
	if e.clock.Now() > e.cfg.EndTimestamp {
		return nil, ErrSaleEnded
	}

	balance, err := e.tokens.BalanceOf(ctx, e.contract)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceCheckFailed, err)
	}

	out := new(uint256.Int)
	if _, overflow := out.MulOverflow(inputAmount, uint256.NewInt(e.cfg.Rate)); overflow {
		return nil, ErrArithmeticOverflow
	}
	if out.Gt(balance) {
		return nil, ErrExceedsRemainingSupply
	}

	return out, nil
}

// RemainingSupply returns the contract's current token balance.
func (e *Engine) RemainingSupply(ctx context.Context) (*uint256.Int, error) {
	balance, err := e.tokens.BalanceOf(ctx, e.contract)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceCheckFailed, err)
	}
	return balance, nil
}

// Purchase executes a purchase by caller, who attaches inputAmount of native
// currency. Either all effects commit (currency to treasury, tokens to
// caller, receipt persisted) or none do: a failed receipt insert rolls the
// ledger transfers back along with everything else.
func (e *Engine) Purchase(ctx context.Context, caller domain.Address, inputAmount *uint256.Int) (*domain.PurchaseReceipt, error) {
	var receipt *domain.PurchaseReceipt

	err := e.env.Invoke(ctx, caller, inputAmount, func(ctx context.Context) error {
		out, err := e.Quote(ctx, inputAmount)
		if err != nil {
			return err
		}

		// Forward the entire currency balance held by the contract.
		held, err := e.currency.BalanceOf(ctx, e.contract)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCurrencyTransferFailed, err)
		}
		ok, err := e.currency.Transfer(ctx, e.contract, e.cfg.Treasury, held)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCurrencyTransferFailed, err)
		}
		if !ok {
			return ErrCurrencyTransferFailed
		}

		ok, err = e.tokens.Transfer(ctx, e.contract, caller, out)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
		}
		if !ok {
			return ErrTokenTransferFailed
		}

		receipt = &domain.PurchaseReceipt{
			ReceiptID: uuid.NewString(),
			Buyer:     caller,
			AmountIn:  new(uint256.Int).Set(inputAmount),
			AmountOut: out,
			Timestamp: e.clock.Now(),
			CreatedAt: time.Now().UnixMilli(),
		}
		if e.purchaseStore != nil {
			if err := e.purchaseStore.Insert(ctx, receipt); err != nil {
				return fmt.Errorf("persist receipt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, h := range e.hooks {
		h.OnPurchase(receipt)
	}

	return receipt, nil
}

// SweepExcess transfers the contract's entire remaining token balance to the
// treasury. Only valid after the deadline. No access control on caller: the
// destination is fixed, so the operation is safe to expose to anyone.
// Sweeping a zero balance succeeds trivially. The transfer and the record
// insert commit or roll back together.
func (e *Engine) SweepExcess(ctx context.Context, caller domain.Address) (*domain.SweepRecord, error) {
	if e.clock.Now() <= e.cfg.EndTimestamp {
		return nil, ErrSaleActive
	}

	var record *domain.SweepRecord

	err := e.env.Invoke(ctx, caller, nil, func(ctx context.Context) error {
		balance, err := e.tokens.BalanceOf(ctx, e.contract)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBalanceCheckFailed, err)
		}

		ok, err := e.tokens.Transfer(ctx, e.contract, e.cfg.Treasury, balance)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
		}
		if !ok {
			return ErrTokenTransferFailed
		}

		record = &domain.SweepRecord{
			SweepID:   uuid.NewString(),
			Caller:    caller,
			Amount:    balance,
			Timestamp: e.clock.Now(),
			CreatedAt: time.Now().UnixMilli(),
		}
		if e.sweepStore != nil {
			if err := e.sweepStore.Insert(ctx, record); err != nil {
				return fmt.Errorf("persist sweep record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, h := range e.hooks {
		h.OnSweep(record)
	}

	return record, nil
}
