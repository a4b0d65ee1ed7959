// Package main queries a remote token ledger over JSON-RPC and prints the
// sale contract's remaining supply, optionally with a quote for a given
// currency input at a fixed rate.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/ledger/remote"
)

func main() {
	// Parse flags
	endpoint := flag.String("endpoint", "", "Remote ledger JSON-RPC endpoint (required)")
	contractStr := flag.String("contract", "", "Sale contract address, base58 (required)")
	rate := flag.Uint64("rate", 0, "Token units per currency unit (required with --input)")
	input := flag.String("input", "", "Currency input to quote (optional)")
	timeout := flag.Duration("timeout", 10*time.Second, "RPC timeout")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[quote] ", log.LstdFlags)

	if *endpoint == "" {
		logger.Fatal("--endpoint is required")
	}
	contract, err := domain.ParseAddress(*contractStr)
	if err != nil {
		logger.Fatalf("--contract: %v", err)
	}

	client := remote.NewClient(*endpoint, remote.WithTimeout(*timeout))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	balance, err := client.BalanceOf(ctx, contract)
	if err != nil {
		logger.Fatalf("query balance: %v", err)
	}

	result := map[string]interface{}{
		"contract":         contract.String(),
		"remaining_supply": balance.Dec(),
	}

	if *input != "" {
		if *rate == 0 {
			logger.Fatal("--rate is required with --input")
		}
		inputAmt, err := domain.ParseAmount(*input)
		if err != nil {
			logger.Fatalf("--input: %v", err)
		}
		out := new(uint256.Int)
		if _, overflow := out.MulOverflow(inputAmt, uint256.NewInt(*rate)); overflow {
			logger.Fatal("quote overflows 256 bits")
		}
		result["input"] = inputAmt.Dec()
		result["output"] = out.Dec()
		result["fillable"] = !out.Gt(balance)
	}

	if *outputJSON {
		json.NewEncoder(os.Stdout).Encode(result)
		return
	}

	fmt.Printf("contract:         %s\n", result["contract"])
	fmt.Printf("remaining supply: %s\n", result["remaining_supply"])
	if *input != "" {
		fmt.Printf("input:            %s\n", result["input"])
		fmt.Printf("output:           %s\n", result["output"])
		fmt.Printf("fillable:         %v\n", result["fillable"])
	}
}
