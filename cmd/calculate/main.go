// Package main computes capital gains for a user and tax year and renders
// the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/report"
	chstore "crypto-tax-ledger/internal/storage/clickhouse"
	"crypto-tax-ledger/internal/storage/migrations"
	pgstore "crypto-tax-ledger/internal/storage/postgres"
	"crypto-tax-ledger/internal/taxlot"
	"crypto-tax-ledger/internal/userlock"
)

func main() {
	user := flag.String("user", "", "User id to calculate for")
	year := flag.Int("year", 0, "Tax year")
	method := flag.String("method", "FIFO", "Accounting method: FIFO, LIFO, or HIFO")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "Optional ClickHouse DSN for gain item export")
	outputDir := flag.String("output-dir", "", "Directory for rendered reports (empty writes to stdout)")
	format := flag.String("format", "markdown", "Report format: csv or markdown")
	flag.Parse()

	logger := log.New(os.Stdout, "[calculate] ", log.LstdFlags|log.Lshortfile)

	if *user == "" || *year == 0 {
		logger.Fatal("both --user and --year are required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
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

	engine := taxlot.NewEngine(pgstore.NewTransactionStore(pool), userlock.New())

	accountingMethod := domain.Method(*method)
	result, err := engine.Calculate(ctx, *user, *year, accountingMethod)
	if err != nil {
		logger.Fatalf("Calculation failed: %v", err)
	}

	logger.Printf("Computed %d gain items: net %s (short %s/%s, long %s/%s)",
		result.TransactionsIncluded,
		result.NetGainLoss,
		result.ShortTermGains, result.ShortTermLosses,
		result.LongTermGains, result.LongTermLosses,
	)

	if *clickhouseDSN != "" {
		if err := exportGainItems(ctx, *clickhouseDSN, *user, *year, accountingMethod, result); err != nil {
			logger.Fatalf("Export gain items: %v", err)
		}
		logger.Printf("Exported %d gain items to ClickHouse", len(result.Items))
	}

	var rendered, ext string
	switch *format {
	case "csv":
		rendered = report.RenderCSV(result)
		ext = "csv"
	case "markdown":
		rendered = report.RenderMarkdown(*user, *year, accountingMethod, result)
		ext = "md"
	default:
		logger.Fatalf("Unknown format %q", *format)
	}

	if *outputDir == "" {
		fmt.Print(rendered)
		return
	}

	path := filepath.Join(*outputDir, fmt.Sprintf("capital_gains_%s_%d_%s.%s", *user, *year, accountingMethod, ext))
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		logger.Fatalf("Write report: %v", err)
	}
	logger.Printf("Wrote %s", path)
}

func exportGainItems(ctx context.Context, dsn, user string, year int, method domain.Method, result *domain.CapitalGainsResult) error {
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	store := chstore.NewGainItemStore(conn)
	return store.InsertBulk(ctx, user, year, method, result.Items)
}
