package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/storage"
)

// GainItemStore implements storage.GainItemStore using ClickHouse.
// Gain items are append-only analytics rows; re-running a calculation for
// the same (user, tax year, method) overwrites via ReplacingMergeTree.
type GainItemStore struct {
	conn *Conn
}

// NewGainItemStore creates a new GainItemStore.
func NewGainItemStore(conn *Conn) *GainItemStore {
	return &GainItemStore{conn: conn}
}

// Compile-time interface check.
var _ storage.GainItemStore = (*GainItemStore)(nil)

// InsertBulk appends all items of one calculation run.
func (s *GainItemStore) InsertBulk(ctx context.Context, userID string, taxYear int, method domain.Method, items []domain.CapitalGainItem) error {
	if len(items) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO capital_gain_items (
			user_id, tax_year, method, item_index, asset, amount,
			date_acquired, date_sold, proceeds, cost_basis, gain_or_loss, is_long_term
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, item := range items {
		longTerm := uint8(0)
		if item.IsLongTerm {
			longTerm = 1
		}
		err = batch.Append(
			userID, int32(taxYear), string(method), int32(i),
			item.Asset, item.Amount,
			item.DateAcquired, item.DateSold,
			item.Proceeds, item.CostBasis, item.GainOrLoss, longTerm,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all items for a run, ordered by date_sold ASC.
func (s *GainItemStore) GetByRun(ctx context.Context, userID string, taxYear int, method domain.Method) ([]domain.CapitalGainItem, error) {
	query := `
		SELECT asset, amount, date_acquired, date_sold, proceeds, cost_basis, gain_or_loss, is_long_term
		FROM capital_gain_items FINAL
		WHERE user_id = ? AND tax_year = ? AND method = ?
		ORDER BY date_sold ASC, item_index ASC
	`

	rows, err := s.conn.Query(ctx, query, userID, int32(taxYear), string(method))
	if err != nil {
		return nil, fmt.Errorf("get gain items by run: %w", err)
	}
	defer rows.Close()

	var items []domain.CapitalGainItem
	for rows.Next() {
		var item domain.CapitalGainItem
		var amount, proceeds, costBasis, gainOrLoss decimal.Decimal
		var longTerm uint8

		err := rows.Scan(
			&item.Asset, &amount,
			&item.DateAcquired, &item.DateSold,
			&proceeds, &costBasis, &gainOrLoss, &longTerm,
		)
		if err != nil {
			return nil, fmt.Errorf("scan gain item: %w", err)
		}

		item.Amount = amount
		item.Proceeds = proceeds
		item.CostBasis = costBasis
		item.GainOrLoss = gainOrLoss
		item.IsLongTerm = longTerm == 1
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gain items: %w", err)
	}

	return items, nil
}
