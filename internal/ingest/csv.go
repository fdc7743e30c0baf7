// Package ingest parses canonical transaction CSV files into normalized
// transactions and loads them into a transaction store. It stands in for
// the exchange/blockchain adapters that normally feed the ledger.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/idhash"
)

// Required CSV columns. quote/fee/tx_hash columns may be empty per row.
var requiredColumns = []string{"source", "kind", "base_asset", "base_amount", "timestamp"}

// timeLayouts are the accepted timestamp formats, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// RowError records a rejected input row. Bad rows never abort a file.
type RowError struct {
	Line int // 1-based, counting the header
	Err  error
}

// Parse reads the canonical CSV format and returns one normalized
// transaction per valid row, plus the rejected rows. Transaction ids are
// deterministic hashes of the row content, so re-parsing the same file
// yields the same ids.
func Parse(r io.Reader, userID string) ([]*domain.NormalizedTransaction, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, nil, fmt.Errorf("csv missing required column %q", col)
		}
	}

	var txs []*domain.NormalizedTransaction
	var rowErrs []RowError

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}

		tx, err := parseRow(row, colIdx, userID)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		txs = append(txs, tx)
	}

	return txs, rowErrs, nil
}

func parseRow(row []string, colIdx map[string]int, userID string) (*domain.NormalizedTransaction, error) {
	field := func(name string) string {
		i, ok := colIdx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	source := field("source")
	kind := strings.ToLower(field("kind"))
	baseAsset := strings.ToUpper(field("base_asset"))
	if source == "" || kind == "" || baseAsset == "" {
		return nil, fmt.Errorf("missing source, kind or base_asset")
	}

	baseAmount, err := parseDecimal(field("base_amount"))
	if err != nil {
		return nil, fmt.Errorf("parse base_amount: %w", err)
	}
	if baseAmount.IsNegative() {
		return nil, fmt.Errorf("base_amount must be >= 0, got %s", baseAmount)
	}

	quoteAmount, err := parseOptionalDecimal(field("quote_amount"))
	if err != nil {
		return nil, fmt.Errorf("parse quote_amount: %w", err)
	}
	feeAmount, err := parseOptionalDecimal(field("fee_amount"))
	if err != nil {
		return nil, fmt.Errorf("parse fee_amount: %w", err)
	}

	ts, err := parseTimestamp(field("timestamp"))
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}

	var txHash *string
	if h := field("tx_hash"); h != "" {
		txHash = &h
	}

	return &domain.NormalizedTransaction{
		ID:          idhash.ComputeTransactionID(userID, source, kind, baseAsset, baseAmount.String(), ts, txHash),
		UserID:      userID,
		Source:      source,
		Kind:        kind,
		BaseAsset:   baseAsset,
		BaseAmount:  baseAmount,
		QuoteAsset:  strings.ToUpper(field("quote_asset")),
		QuoteAmount: quoteAmount,
		FeeAsset:    strings.ToUpper(field("fee_asset")),
		FeeAmount:   feeAmount,
		Timestamp:   ts,
		TxHash:      txHash,
	}, nil
}

// parseDecimal parses a required decimal field, tolerating thousands
// separators.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty decimal value")
	}
	return decimal.NewFromString(s)
}

// parseOptionalDecimal treats an empty field as zero.
func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(s)
}

// parseTimestamp accepts Unix milliseconds or any of the time layouts.
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if ms, ok := parseInt(s); ok {
		return ms, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unable to parse timestamp %q", s)
}

func parseInt(s string) (int64, bool) {
	var v int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		v = v*10 + int64(r-'0')
	}
	return v, len(s) > 0
}
