// Package main runs the token sale service: the sale engine over an
// in-memory ledger environment, an HTTP API exposing purchase/quote/supply/
// sweep, Prometheus metrics, and a WebSocket event feed. Receipts are
// persisted to PostgreSQL and streamed to ClickHouse when configured.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"token-sale-lab/internal/domain"
	"token-sale-lab/internal/feed"
	ledgermem "token-sale-lab/internal/ledger/memory"
	"token-sale-lab/internal/observability"
	"token-sale-lab/internal/sale"
	"token-sale-lab/internal/storage"
	chstore "token-sale-lab/internal/storage/clickhouse"
	"token-sale-lab/internal/storage/memory"
	"token-sale-lab/internal/storage/migrations"
	pgstore "token-sale-lab/internal/storage/postgres"
)

// Server holds all components of the sale service.
type Server struct {
	engine *sale.Engine
	hub    *feed.Hub
	logger *log.Logger

	purchaseStore  storage.PurchaseStore
	sweepStore     storage.SweepStore
	saleEventStore storage.SaleEventStore

	startedAt time.Time

	mu        sync.Mutex
	purchases int
	sweeps    int
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	endTimestamp := flag.Int64("end-timestamp", envInt64("SALE_END_TIMESTAMP", 0), "Sale deadline, Unix ms")
	rate := flag.Uint64("rate", envUint64("SALE_RATE", 0), "Token units per currency unit")
	treasury := flag.String("treasury", os.Getenv("SALE_TREASURY"), "Treasury address (base58)")
	token := flag.String("token", os.Getenv("SALE_TOKEN"), "Token ledger account (base58)")
	contract := flag.String("contract", os.Getenv("SALE_CONTRACT"), "Sale contract account (base58)")
	initialSupply := flag.String("initial-supply", envDefault("SALE_INITIAL_SUPPLY", "0"), "Tokens seeded to the contract")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	addr := flag.String("addr", envDefault("SALE_ADDR", ":8080"), "HTTP listen address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *endTimestamp == 0 {
		logger.Fatal("--end-timestamp is required")
	}
	if *rate == 0 {
		logger.Fatal("--rate is required")
	}
	treasuryAddr, err := domain.ParseAddress(*treasury)
	if err != nil {
		logger.Fatalf("--treasury: %v", err)
	}
	tokenAddr, err := domain.ParseAddress(*token)
	if err != nil {
		logger.Fatalf("--token: %v", err)
	}
	contractAddr, err := domain.ParseAddress(*contract)
	if err != nil {
		logger.Fatalf("--contract: %v", err)
	}
	supply, err := domain.ParseAmount(*initialSupply)
	if err != nil {
		logger.Fatalf("--initial-supply: %v", err)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Build the in-memory ledger environment and seed the sale supply.
	tokens := ledgermem.NewLedger()
	currency := ledgermem.NewLedger()
	tokens.SetBalance(contractAddr, supply)
	env := ledgermem.NewEnvironment(tokens, currency, contractAddr)

	hub := feed.NewHub(logger)
	defer hub.Close()

	server := &Server{
		hub:            hub,
		logger:         logger,
		purchaseStore:  stores.purchaseStore,
		sweepStore:     stores.sweepStore,
		saleEventStore: stores.saleEventStore,
		startedAt:      time.Now(),
	}

	engine, err := sale.NewEngine(sale.EngineOptions{
		Config: domain.SaleConfig{
			EndTimestamp: *endTimestamp,
			Rate:         *rate,
			Treasury:     treasuryAddr,
			Token:        tokenAddr,
		},
		Contract:      contractAddr,
		Tokens:        tokens,
		Currency:      currency,
		Env:           env,
		PurchaseStore: stores.purchaseStore,
		SweepStore:    stores.sweepStore,
		Hooks:         []sale.Hook{hub, observability.Recorder{}, server.eventStreamHook()},
	})
	if err != nil {
		logger.Fatalf("Failed to create sale engine: %v", err)
	}
	server.engine = engine

	logger.Printf("Sale configured: rate=%d end=%d treasury=%s supply=%s",
		*rate, *endTimestamp, treasuryAddr, supply.Dec())

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := server.serve(ctx, *addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// allStores holds all storage implementations.
type allStores struct {
	purchaseStore  storage.PurchaseStore
	sweepStore     storage.SweepStore
	saleEventStore storage.SaleEventStore
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			purchaseStore:  memory.NewPurchaseStore(),
			sweepStore:     memory.NewSweepStore(),
			saleEventStore: memory.NewSaleEventStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		purchaseStore:  observability.InstrumentPurchaseStore("postgres", pgstore.NewPurchaseStore(pool)),
		sweepStore:     observability.InstrumentSweepStore("postgres", pgstore.NewSweepStore(pool)),
		saleEventStore: observability.InstrumentSaleEventStore("clickhouse", chstore.NewSaleEventStore(chConn)),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// serve runs the HTTP API until the context is cancelled.
func (s *Server) serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /purchase", s.handlePurchase)
	mux.HandleFunc("GET /quote", s.handleQuote)
	mux.HandleFunc("GET /supply", s.handleSupply)
	mux.HandleFunc("POST /sweep", s.handleSweep)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("GET /purchases", s.handlePurchases)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /ws", s.hub)
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("Listening on %s", addr)
	return httpServer.ListenAndServe()
}

// eventStreamHook persists committed operations to the analytical stream.
func (s *Server) eventStreamHook() sale.Hook {
	return &eventStreamRecorder{server: s}
}

// eventStreamRecorder implements sale.Hook against the sale event store.
type eventStreamRecorder struct {
	server *Server
}

func (r *eventStreamRecorder) OnPurchase(receipt *domain.PurchaseReceipt) {
	s := r.server
	s.mu.Lock()
	s.purchases++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saleEventStore.InsertBulk(ctx, []*domain.SaleEvent{domain.EventFromReceipt(receipt)}); err != nil {
		s.logger.Printf("event stream insert failed: %v", err)
	}
}

func (r *eventStreamRecorder) OnSweep(record *domain.SweepRecord) {
	s := r.server
	s.mu.Lock()
	s.sweeps++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saleEventStore.InsertBulk(ctx, []*domain.SaleEvent{domain.EventFromSweep(record)}); err != nil {
		s.logger.Printf("event stream insert failed: %v", err)
	}
}

// purchaseRequest is the JSON body for POST /purchase.
type purchaseRequest struct {
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
}

// handlePurchase executes a purchase for the buyer.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	buyer, err := domain.ParseAddress(req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := s.engine.Purchase(r.Context(), buyer, amount)
	observability.RecordOperationDuration("purchase", time.Since(start).Seconds())
	if err != nil {
		s.writeSaleError(w, "purchase", err)
		return
	}

	s.updateSupplyGauges(r.Context())
	writeJSON(w, http.StatusCreated, receiptJSON(receipt))
}

// handleQuote computes the output amount for ?amount=N without side effects.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := domain.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.engine.Quote(r.Context(), amount)
	if err != nil {
		s.writeSaleError(w, "quote", err)
		return
	}
	observability.RecordQuote()

	writeJSON(w, http.StatusOK, map[string]string{
		"input_amount":  amount.Dec(),
		"output_amount": out.Dec(),
	})
}

// handleSupply returns the contract's remaining token balance.
func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.engine.RemainingSupply(r.Context())
	if err != nil {
		s.writeSaleError(w, "supply", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"remaining_supply": supply.Dec()})
}

// sweepRequest is the JSON body for POST /sweep.
type sweepRequest struct {
	Caller string `json:"caller"`
}

// handleSweep transfers unsold tokens to the treasury after the deadline.
// Deliberately unauthenticated: the destination is fixed.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, err := domain.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.engine.SweepExcess(r.Context(), caller)
	observability.RecordOperationDuration("sweep", time.Since(start).Seconds())
	if err != nil {
		s.writeSaleError(w, "sweep", err)
		return
	}

	s.updateSupplyGauges(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sweep_id":     record.SweepID,
		"caller":       record.Caller.String(),
		"amount":       record.Amount.Dec(),
		"timestamp_ms": record.Timestamp,
	})
}

// handleConfig returns the immutable sale constants.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.engine.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"end_timestamp": cfg.EndTimestamp,
		"rate":          cfg.Rate,
		"treasury":      cfg.Treasury.String(),
		"token":         cfg.Token.String(),
	})
}

// handlePurchases lists receipts, optionally filtered by ?buyer=.
func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	var (
		receipts []*domain.PurchaseReceipt
		err      error
	)

	if buyer := r.URL.Query().Get("buyer"); buyer != "" {
		addr, parseErr := domain.ParseAddress(buyer)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		receipts, err = s.purchaseStore.GetByBuyer(r.Context(), addr)
	} else {
		receipts, err = s.purchaseStore.GetByTimeRange(r.Context(), 0, time.Now().UnixMilli())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list purchases")
		return
	}

	out := make([]map[string]interface{}, 0, len(receipts))
	for _, receipt := range receipts {
		out = append(out, receiptJSON(receipt))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": out, "count": len(out)})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	SaleActive  bool   `json:"sale_active"`
	Purchases   int    `json:"purchases"`
	Sweeps      int    `json:"sweeps"`
	Subscribers int    `json:"feed_subscribers"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	purchases, sweeps := s.purchases, s.sweeps
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.startedAt).String(),
		SaleActive:  s.engine.Active(),
		Purchases:   purchases,
		Sweeps:      sweeps,
		Subscribers: s.hub.SubscriberCount(),
	})
}

// writeSaleError maps sale errors to HTTP statuses and records them.
func (s *Server) writeSaleError(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	switch {
	case errors.Is(err, sale.ErrInsufficientInput):
		status, kind = http.StatusBadRequest, "insufficient_input"
	case errors.Is(err, sale.ErrArithmeticOverflow):
		status, kind = http.StatusBadRequest, "arithmetic_overflow"
	case errors.Is(err, sale.ErrSaleEnded):
		status, kind = http.StatusConflict, "sale_ended"
	case errors.Is(err, sale.ErrSaleActive):
		status, kind = http.StatusConflict, "sale_active"
	case errors.Is(err, sale.ErrExceedsRemainingSupply):
		status, kind = http.StatusConflict, "exceeds_remaining_supply"
	case errors.Is(err, sale.ErrBalanceCheckFailed):
		status, kind = http.StatusBadGateway, "balance_check_failed"
	case errors.Is(err, sale.ErrCurrencyTransferFailed):
		status, kind = http.StatusBadGateway, "currency_transfer_failed"
	case errors.Is(err, sale.ErrTokenTransferFailed):
		status, kind = http.StatusBadGateway, "token_transfer_failed"
	case errors.Is(err, ledgermem.ErrInsufficientFunds):
		status, kind = http.StatusConflict, "insufficient_funds"
	}

	observability.RecordOperationError(operation, kind)
	s.logger.Printf("%s failed: %v", operation, err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}

// updateSupplyGauges refreshes the supply and state gauges after a commit.
func (s *Server) updateSupplyGauges(ctx context.Context) {
	if supply, err := s.engine.RemainingSupply(ctx); err == nil {
		if f, err := strconv.ParseFloat(supply.Dec(), 64); err == nil {
			observability.UpdateRemainingSupply(f)
		}
	}
	observability.UpdateSaleActive(s.engine.Active())
}

func receiptJSON(r *domain.PurchaseReceipt) map[string]interface{} {
	return map[string]interface{}{
		"receipt_id":   r.ReceiptID,
		"buyer":        r.Buyer.String(),
		"amount_in":    r.AmountIn.Dec(),
		"amount_out":   r.AmountOut.Dec(),
		"timestamp_ms": r.Timestamp,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envUint64(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
