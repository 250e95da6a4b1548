// Package main runs the ledger service: currency banks, the badge
// store, the transfer engine, a background archiver copying committed
// transactions into ClickHouse, and an HTTP surface for health,
// metrics, and read-only diagnostics.
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
	"strings"
	"sync"
	"syscall"
	"time"

	"pokeyen-ledger/internal/badge"
	"pokeyen-ledger/internal/bank"
	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/observability"
	"pokeyen-ledger/internal/storage"
	chstore "pokeyen-ledger/internal/storage/clickhouse"
	"pokeyen-ledger/internal/storage/memory"
	"pokeyen-ledger/internal/storage/migrations"
	pgstore "pokeyen-ledger/internal/storage/postgres"
)

// Server holds all components of the ledger service.
type Server struct {
	// Configuration
	postgresDSN     string
	clickhouseDSN   string
	useMemory       bool
	archiveInterval time.Duration
	archiveBatch    int

	// Components
	stores       *allStores
	pokeyenBank  *bank.Bank
	tokenBank    *bank.Bank
	badgeService *badge.Service
	transfers    *badge.TransferEngine
	metrics      *observability.Metrics
	logger       *log.Logger

	// State
	mu           sync.Mutex
	started      time.Time
	lastArchive  time.Time
	archiveRuns  int
	archivedRows int64
}

// allStores holds all storage implementations.
type allStores struct {
	userStore    storage.UserStore
	txLogStore   storage.TransactionLogStore
	badgeStore   storage.BadgeStore
	badgeLog     storage.BadgeLogStore
	archiveStore storage.TransactionArchiveStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	archiveInterval := flag.Duration("archive-interval", 1*time.Minute, "Transaction archiver poll interval")
	archiveBatch := flag.Int("archive-batch", 1000, "Max transaction-log entries copied per archiver run")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for metrics and diagnostics")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	server, err := newServer(stores, metrics, serverConfig{
		postgresDSN:     *postgresDSN,
		clickhouseDSN:   *clickhouseDSN,
		useMemory:       *useMemory,
		archiveInterval: *archiveInterval,
		archiveBatch:    *archiveBatch,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*httpAddr)

	// Run the service
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// serverConfig carries flag-derived settings into newServer.
type serverConfig struct {
	postgresDSN     string
	clickhouseDSN   string
	useMemory       bool
	archiveInterval time.Duration
	archiveBatch    int
}

// newServer wires banks, the badge service, and the transfer engine
// over the stores: the token bank holds back open-listing value, and
// species-lost events reset stale displayed-badge selections.
func newServer(stores *allStores, metrics *observability.Metrics, cfg serverConfig, logger *log.Logger) (*Server, error) {
	pokeyenBank, err := bank.New(bank.Options{
		Currency: domain.CurrencyPokeyen,
		Users:    stores.userStore,
		Log:      stores.txLogStore,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create pokeyen bank: %w", err)
	}

	tokenBank, err := bank.New(bank.Options{
		Currency: domain.CurrencyTokens,
		Users:    stores.userStore,
		Log:      stores.txLogStore,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create token bank: %w", err)
	}
	tokenBank.AddReservedChecker(badge.ListingReservedChecker(stores.badgeStore))

	badgeService, err := badge.NewService(badge.ServiceOptions{
		Badges:  stores.badgeStore,
		Log:     stores.badgeLog,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create badge service: %w", err)
	}

	transfers, err := badge.NewTransferEngine(badge.TransferEngineOptions{
		Badges:  stores.badgeStore,
		Logger:  log.New(os.Stdout, "[transfers] ", log.LstdFlags|log.Lshortfile),
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create transfer engine: %w", err)
	}
	transfers.Channel().Subscribe(badge.NewSelectionResetHandler(stores.userStore))

	return &Server{
		postgresDSN:     cfg.postgresDSN,
		clickhouseDSN:   cfg.clickhouseDSN,
		useMemory:       cfg.useMemory,
		archiveInterval: cfg.archiveInterval,
		archiveBatch:    cfg.archiveBatch,
		stores:          stores,
		pokeyenBank:     pokeyenBank,
		tokenBank:       tokenBank,
		badgeService:    badgeService,
		transfers:       transfers,
		metrics:         metrics,
		logger:          logger,
	}, nil
}

// createStores creates all required stores and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		txLog := memory.NewTransactionLogStore()
		badgeLog := memory.NewBadgeLogStore()
		stores := &allStores{
			userStore:    memory.NewUserStore(txLog),
			txLogStore:   txLog,
			badgeStore:   memory.NewBadgeStore(badgeLog),
			badgeLog:     badgeLog,
			archiveStore: memory.NewTransactionArchiveStore(),
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
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		userStore:  pgstore.NewUserStore(pool),
		txLogStore: pgstore.NewTransactionLogStore(pool),
		badgeStore: pgstore.NewBadgeStore(pool),
		badgeLog:   pgstore.NewBadgeLogStore(pool),
	}

	cleanup := func() { pool.Close() }

	// ClickHouse is optional; without it the archiver stays off.
	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.archiveStore = chstore.NewTransactionArchiveStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	} else {
		logger.Println("No ClickHouse DSN configured, transaction archiver disabled")
	}

	return stores, cleanup, nil
}

// Run starts the background archiver and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	s.logger.Println("Ledger service started")

	if s.stores.archiveStore != nil {
		return s.runArchiver(ctx)
	}

	<-ctx.Done()
	return ctx.Err()
}

// runArchiver polls the transaction log and copies new entries into the
// analytics archive. The watermark is the highest archived ID, so a
// crashed run resumes where it left off; re-archiving an entry is
// harmless.
func (s *Server) runArchiver(ctx context.Context) error {
	s.logger.Printf("Starting transaction archiver (interval: %v)...", s.archiveInterval)

	ticker := time.NewTicker(s.archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.archiveOnce(ctx); err != nil {
				s.metrics.ArchiveErrors.Inc()
				s.logger.Printf("Archive run failed: %v", err)
			}
		}
	}
}

// archiveOnce copies one batch of not-yet-archived entries.
func (s *Server) archiveOnce(ctx context.Context) error {
	watermark, err := s.stores.archiveStore.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("read archive watermark: %w", err)
	}

	entries, err := s.stores.txLogStore.GetAfterID(ctx, watermark, s.archiveBatch)
	if err != nil {
		return fmt.Errorf("read transaction log after %d: %w", watermark, err)
	}
	if len(entries) == 0 {
		return nil
	}

	if err := s.stores.archiveStore.InsertBulk(ctx, entries); err != nil {
		return fmt.Errorf("archive %d entries: %w", len(entries), err)
	}

	s.metrics.TransactionsArchived.Add(float64(len(entries)))
	s.mu.Lock()
	s.lastArchive = time.Now()
	s.archiveRuns++
	s.archivedRows += int64(len(entries))
	s.mu.Unlock()

	s.logger.Printf("Archived %d transactions (watermark %d)", len(entries), watermark)
	return nil
}

// startHTTPServer starts the HTTP server for health/metrics/diagnostics.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Read-only diagnostics
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/balance", s.handleBalance)
	mux.HandleFunc("/badges", s.handleBadges)
	mux.HandleFunc("/forsale", s.handleForSale)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	Storage      string    `json:"storage"`
	ArchiveRuns  int       `json:"archive_runs"`
	ArchivedRows int64     `json:"archived_rows"`
	LastArchive  time.Time `json:"last_archive,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storageMode := "postgres"
	if s.useMemory {
		storageMode = "memory"
	}

	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).String(),
		Storage:      storageMode,
		ArchiveRuns:  s.archiveRuns,
		ArchivedRows: s.archivedRows,
		LastArchive:  s.lastArchive,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// BalanceResponse is the JSON response for /balance endpoint.
type BalanceResponse struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
	Reserved int64  `json:"reserved"`
}

// handleBalance returns a user's balance and reserved amount as JSON.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user parameter is required", http.StatusBadRequest)
		return
	}

	b := s.pokeyenBank
	if v := r.URL.Query().Get("currency"); v != "" {
		currency := domain.Currency(v)
		if !currency.IsValid() {
			http.Error(w, "unknown currency", http.StatusBadRequest)
			return
		}
		if currency == domain.CurrencyTokens {
			b = s.tokenBank
		}
	}

	balance, err := b.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, bank.ErrOwnerNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("Balance lookup for %s: %v", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	reserved, err := b.Reserved(r.Context(), userID)
	if err != nil {
		s.logger.Printf("Reserved lookup for %s: %v", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{
		UserID:   userID,
		Currency: b.Currency().String(),
		Balance:  balance,
		Reserved: reserved,
	})
}

// handleBadges returns a user's badges as JSON.
func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user parameter is required", http.StatusBadRequest)
		return
	}

	badges, err := s.badgeService.FindAllByOwner(r.Context(), &userID)
	if err != nil {
		s.logger.Printf("Badge lookup for %s: %v", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(badges)
}

// handleForSale returns listed badges matching the query as JSON.
func (s *Server) handleForSale(w http.ResponseWriter, r *http.Request) {
	var f domain.BadgeFilter
	q := r.URL.Query()
	if v := q.Get("user"); v != "" {
		f.UserID = &v
	}
	if v := q.Get("species"); v != "" {
		f.Species = &v
	}
	if v := q.Get("source"); v != "" {
		source := domain.BadgeSource(v)
		if !source.IsValid() {
			http.Error(w, "unknown source", http.StatusBadRequest)
			return
		}
		f.Source = &source
	}
	if v := q.Get("form"); v != "" {
		f.Form = &v
	}
	if v := q.Get("shiny"); v != "" {
		shiny := v == "true" || v == "1"
		f.Shiny = &shiny
	}

	badges, err := s.badgeService.FindForSale(r.Context(), f)
	if err != nil {
		s.logger.Printf("For-sale lookup: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(badges)
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
