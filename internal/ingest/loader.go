package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"crypto-tax-ledger/internal/observability"
	"crypto-tax-ledger/internal/storage"
)

// Result summarizes one ingestion run.
type Result struct {
	Inserted   int
	Duplicates int
	BadRows    []RowError
}

// Loader parses canonical CSV input and loads it into a transaction store.
type Loader struct {
	txs storage.TransactionStore
}

// NewLoader creates a new Loader.
func NewLoader(txs storage.TransactionStore) *Loader {
	return &Loader{txs: txs}
}

// Load parses r and inserts each transaction individually so that
// re-ingesting a file is idempotent: rows already present surface as
// duplicates and are skipped, not errors.
func (l *Loader) Load(ctx context.Context, userID string, r io.Reader) (*Result, error) {
	txs, rowErrs, err := Parse(r, userID)
	if err != nil {
		return nil, err
	}

	result := &Result{BadRows: rowErrs}
	for range rowErrs {
		observability.DefaultMetrics.IngestRowsSkipped.WithLabelValues("parse_error").Inc()
	}

	for _, tx := range txs {
		err := l.txs.Insert(ctx, tx)
		switch {
		case err == nil:
			result.Inserted++
			observability.DefaultMetrics.TransactionsIngested.Inc()
		case errors.Is(err, storage.ErrDuplicateKey):
			result.Duplicates++
			observability.DefaultMetrics.IngestRowsSkipped.WithLabelValues("duplicate").Inc()
		default:
			return result, fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}

	return result, nil
}
