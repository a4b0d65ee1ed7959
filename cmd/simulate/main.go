// Package main runs a scripted end-to-end sale against the in-memory
// ledger environment: seed supply, purchase through the deadline, sweep the
// remainder, and print a summary. Useful for verifying conservation and
// rollback behavior without any external services.
package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"token-sale-lab/internal/domain"
	ledgermem "token-sale-lab/internal/ledger/memory"
	"token-sale-lab/internal/sale"
	"token-sale-lab/internal/storage/memory"
)

func main() {
	// Parse flags
	rate := flag.Uint64("rate", 20, "Token units per currency unit")
	supply := flag.String("supply", "1000", "Tokens seeded to the contract")
	buyerFunds := flag.String("buyer-funds", "100", "Currency seeded to each buyer")
	buyers := flag.Int("buyers", 3, "Number of buyers")
	purchaseAmount := flag.String("purchase-amount", "10", "Currency spent per purchase")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	supplyAmt, err := domain.ParseAmount(*supply)
	if err != nil {
		logger.Fatalf("--supply: %v", err)
	}
	fundsAmt, err := domain.ParseAmount(*buyerFunds)
	if err != nil {
		logger.Fatalf("--buyer-funds: %v", err)
	}
	purchaseAmt, err := domain.ParseAmount(*purchaseAmount)
	if err != nil {
		logger.Fatalf("--purchase-amount: %v", err)
	}

	ctx := context.Background()

	// Fixed clock: the sale is active at t=1000, ends at t=2000.
	const endTimestamp = 2000
	clock := sale.NewFixedClock(1000)

	contract := randomAddress(logger)
	treasury := randomAddress(logger)
	token := randomAddress(logger)

	tokens := ledgermem.NewLedger()
	currency := ledgermem.NewLedger()
	tokens.SetBalance(contract, supplyAmt)

	buyerAddrs := make([]domain.Address, *buyers)
	for i := range buyerAddrs {
		buyerAddrs[i] = randomAddress(logger)
		currency.SetBalance(buyerAddrs[i], fundsAmt)
	}

	purchaseStore := memory.NewPurchaseStore()
	sweepStore := memory.NewSweepStore()

	engine, err := sale.NewEngine(sale.EngineOptions{
		Config: domain.SaleConfig{
			EndTimestamp: endTimestamp,
			Rate:         *rate,
			Treasury:     treasury,
			Token:        token,
		},
		Contract:      contract,
		Tokens:        tokens,
		Currency:      currency,
		Env:           ledgermem.NewEnvironment(tokens, currency, contract),
		Clock:         clock,
		PurchaseStore: purchaseStore,
		SweepStore:    sweepStore,
	})
	if err != nil {
		logger.Fatalf("create engine: %v", err)
	}

	// Phase 1: purchases while the sale is active.
	committed := 0
	for _, buyer := range buyerAddrs {
		quote, err := engine.Quote(ctx, purchaseAmt)
		if err != nil {
			logger.Printf("quote for %s failed: %v", buyer, err)
			continue
		}
		receipt, err := engine.Purchase(ctx, buyer, purchaseAmt)
		if err != nil {
			logger.Printf("purchase by %s failed: %v", buyer, err)
			continue
		}
		if !receipt.AmountOut.Eq(quote) {
			logger.Fatalf("receipt output %s does not match quote %s", receipt.AmountOut.Dec(), quote.Dec())
		}
		committed++
	}

	// Phase 2: sweeping while active must fail.
	if _, err := engine.SweepExcess(ctx, buyerAddrs[0]); !errors.Is(err, sale.ErrSaleActive) {
		logger.Fatalf("expected ErrSaleActive before deadline, got %v", err)
	}

	// Phase 3: cross the deadline and sweep the remainder.
	clock.Set(endTimestamp + 1)
	record, err := engine.SweepExcess(ctx, buyerAddrs[0])
	if err != nil {
		logger.Fatalf("sweep failed: %v", err)
	}

	remaining, err := engine.RemainingSupply(ctx)
	if err != nil {
		logger.Fatalf("remaining supply: %v", err)
	}

	summary := map[string]interface{}{
		"rate":               *rate,
		"seeded_supply":      supplyAmt.Dec(),
		"purchases":          committed,
		"swept":              record.Amount.Dec(),
		"remaining_supply":   remaining.Dec(),
		"treasury_tokens":    balanceString(ctx, logger, tokens, treasury),
		"treasury_currency":  balanceString(ctx, logger, currency, treasury),
		"token_conservation": tokens.TotalSupply().Dec(),
	}

	if *outputJSON {
		json.NewEncoder(os.Stdout).Encode(summary)
		return
	}

	fmt.Println("=== Sale simulation ===")
	fmt.Printf("rate:               %d\n", *rate)
	fmt.Printf("seeded supply:      %s\n", supplyAmt.Dec())
	fmt.Printf("committed buys:     %d\n", committed)
	fmt.Printf("swept to treasury:  %s\n", record.Amount.Dec())
	fmt.Printf("remaining supply:   %s\n", remaining.Dec())
	fmt.Printf("treasury tokens:    %s\n", summary["treasury_tokens"])
	fmt.Printf("treasury currency:  %s\n", summary["treasury_currency"])
	fmt.Printf("total token supply: %s\n", tokens.TotalSupply().Dec())
}

// randomAddress generates a fresh 32-byte base58 address.
func randomAddress(logger *log.Logger) domain.Address {
	var b [domain.AddressLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		logger.Fatalf("generate address: %v", err)
	}
	addr, err := domain.AddressFromBytes(b[:])
	if err != nil {
		logger.Fatalf("encode address: %v", err)
	}
	return addr
}

func balanceString(ctx context.Context, logger *log.Logger, l *ledgermem.Ledger, addr domain.Address) string {
	b, err := l.BalanceOf(ctx, addr)
	if err != nil {
		logger.Fatalf("balance of %s: %v", addr, err)
	}
	return b.Dec()
}
