// Package memory provides in-memory implementations of the ledger
// collaborators plus the atomic execution environment used by simulations
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/ledger"
)

// Ledger is an in-memory balance book implementing ledger.TokenLedger
// and ledger.CurrencyLedger. Transfers conserve supply: they fail with
// ok=false and no effect when the sender's balance is insufficient or the
// receiver rejects.
type Ledger struct {
	mu        sync.RWMutex
	balances  map[domain.Address]*uint256.Int
	rejecting map[domain.Address]bool // receivers that refuse transfers
	broken    bool                    // balance queries fail when set
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:  make(map[domain.Address]*uint256.Int),
		rejecting: make(map[domain.Address]bool),
	}
}

// Compile-time interface checks.
var (
	_ ledger.TokenLedger    = (*Ledger)(nil)
	_ ledger.CurrencyLedger = (*Ledger)(nil)
)

// BalanceOf returns the balance held by addr. Unknown accounts hold zero.
func (l *Ledger) BalanceOf(_ context.Context, addr domain.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.broken {
		return nil, ledger.ErrMalformedBalance
	}

	b, ok := l.balances[addr]
	if !ok {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).Set(b), nil
}

// Transfer moves amount from one account to another. Returns ok=false with
// no effect if the sender's balance is insufficient or the receiver rejects.
func (l *Ledger) Transfer(_ context.Context, from, to domain.Address, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rejecting[to] {
		return false, nil
	}

	src, ok := l.balances[from]
	if !ok {
		src = uint256.NewInt(0)
	}
	if src.Lt(amount) {
		return false, nil
	}

	dst, ok := l.balances[to]
	if !ok {
		dst = uint256.NewInt(0)
	}

	l.balances[from] = new(uint256.Int).Sub(src, amount)
	l.balances[to] = new(uint256.Int).Add(dst, amount)
	return true, nil
}

// SetBalance sets an account balance directly. Test/bootstrap helper.
func (l *Ledger) SetBalance(addr domain.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(uint256.Int).Set(amount)
}

// RejectReceiver marks an account as refusing inbound transfers.
func (l *Ledger) RejectReceiver(addr domain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejecting[addr] = true
}

// BreakBalanceQueries makes subsequent BalanceOf calls fail with
// ErrMalformedBalance. Models a collaborator returning a response that is
// not one 32-byte word.
func (l *Ledger) BreakBalanceQueries(broken bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broken = broken
}

// TotalSupply returns the sum of all balances. Conservation check helper.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := uint256.NewInt(0)
	for _, b := range l.balances {
		total.Add(total, b)
	}
	return total
}

// snapshot captures a deep copy of all balances.
func (l *Ledger) snapshot() map[domain.Address]*uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := make(map[domain.Address]*uint256.Int, len(l.balances))
	for addr, b := range l.balances {
		snap[addr] = new(uint256.Int).Set(b)
	}
	return snap
}

// restore replaces all balances with a previously captured snapshot.
func (l *Ledger) restore(snap map[domain.Address]*uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[domain.Address]*uint256.Int, len(snap))
	for addr, b := range snap {
		l.balances[addr] = new(uint256.Int).Set(b)
	}
}
