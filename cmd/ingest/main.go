// Package main loads canonical transaction CSV files into the ledger.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crypto-tax-ledger/internal/ingest"
	"crypto-tax-ledger/internal/observability"
	"crypto-tax-ledger/internal/storage"
	"crypto-tax-ledger/internal/storage/memory"
	"crypto-tax-ledger/internal/storage/migrations"
	pgstore "crypto-tax-ledger/internal/storage/postgres"
)

func main() {
	input := flag.String("input", "", "Path to canonical transaction CSV")
	user := flag.String("user", "", "User id to ingest for")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	if *input == "" || *user == "" {
		logger.Fatal("both --input and --user are required")
	}

	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	var txStore storage.TransactionStore
	if *useMemory {
		txStore = memory.NewTransactionStore()
	} else {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required unless --use-memory is set")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Connect postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Run migrations: %v", err)
		}
		txStore = pgstore.NewTransactionStore(pool)
	}

	f, err := os.Open(*input)
	if err != nil {
		logger.Fatalf("Open input: %v", err)
	}
	defer f.Close()

	loader := ingest.NewLoader(txStore)
	result, err := loader.Load(ctx, *user, f)
	if err != nil {
		logger.Fatalf("Ingest failed: %v", err)
	}

	for _, bad := range result.BadRows {
		logger.Printf("Skipped line %d: %v", bad.Line, bad.Err)
	}
	logger.Printf("Ingested %d transactions (%d duplicates skipped, %d bad rows)",
		result.Inserted, result.Duplicates, len(result.BadRows))
}

func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
