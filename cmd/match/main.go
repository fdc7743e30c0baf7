// Package main runs the transfer matcher for a user.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crypto-tax-ledger/internal/storage/migrations"
	pgstore "crypto-tax-ledger/internal/storage/postgres"
	"crypto-tax-ledger/internal/transfer"
	"crypto-tax-ledger/internal/userlock"
)

func main() {
	user := flag.String("user", "", "User id to match transfers for")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	unmatch := flag.String("unmatch", "", "Transfer match id to reverse instead of matching")
	flag.Parse()

	logger := log.New(os.Stdout, "[match] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *user == "" && *unmatch == "" {
		logger.Fatal("either --user or --unmatch is required")
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

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	matcher := transfer.NewMatcher(
		pgstore.NewTransactionStore(pool),
		pgstore.NewMatchStore(pool),
		userlock.New(),
	)

	if *unmatch != "" {
		if err := matcher.Unmatch(ctx, *unmatch); err != nil {
			logger.Fatalf("Unmatch failed: %v", err)
		}
		logger.Printf("Unmatched %s", *unmatch)
		return
	}

	matched, err := matcher.FindAndMatchTransfers(ctx, *user)
	if err != nil {
		logger.Fatalf("Matching failed: %v", err)
	}
	logger.Printf("Matched %d transfer pairs for %s", matched, *user)
}
