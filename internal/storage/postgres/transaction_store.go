package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
// NUMERIC amount columns are exchanged as canonical decimal strings to
// keep the arithmetic exact end to end.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const insertTransactionQuery = `
	INSERT INTO normalized_transactions (
		id, user_id, source, kind, base_asset, base_amount,
		quote_asset, quote_amount, fee_asset, fee_amount,
		timestamp, tx_hash, is_transfer, transfer_match_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

const selectTransactionColumns = `
	SELECT id, user_id, source, kind, base_asset, base_amount::text,
	       quote_asset, quote_amount::text, fee_asset, fee_amount::text,
	       timestamp, tx_hash, is_transfer, transfer_match_id, created_at
	FROM normalized_transactions
`

// Insert adds a new transaction. Returns ErrDuplicateKey if id exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.NormalizedTransaction) error {
	if err := validateTransaction(tx); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, insertTransactionQuery, insertArgs(tx)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on
// any duplicate.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.NormalizedTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx)

	for _, tx := range txs {
		if err := validateTransaction(tx); err != nil {
			return err
		}
		if _, err := dbTx.Exec(ctx, insertTransactionQuery, insertArgs(tx)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transaction in bulk: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(ctx context.Context, txID string) (*domain.NormalizedTransaction, error) {
	row := s.pool.QueryRow(ctx, selectTransactionColumns+` WHERE id = $1`, txID)

	tx, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return tx, nil
}

// GetByUserUpTo retrieves all of a user's transactions with
// timestamp <= endMs, ordered by timestamp ASC.
func (s *TransactionStore) GetByUserUpTo(ctx context.Context, userID string, endMs int64) ([]*domain.NormalizedTransaction, error) {
	query := selectTransactionColumns + `
		WHERE user_id = $1 AND timestamp <= $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, endMs)
	if err != nil {
		return nil, fmt.Errorf("get transactions by user up to: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetUnmatchedByKind retrieves a user's transactions of the given kind with
// is_transfer = false and no transfer match, ordered by timestamp ASC.
func (s *TransactionStore) GetUnmatchedByKind(ctx context.Context, userID, kind string) ([]*domain.NormalizedTransaction, error) {
	query := selectTransactionColumns + `
		WHERE user_id = $1 AND kind = $2
		  AND is_transfer = FALSE AND transfer_match_id IS NULL
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("get unmatched transactions by kind: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func validateTransaction(tx *domain.NormalizedTransaction) error {
	if tx == nil || tx.ID == "" || tx.UserID == "" {
		return storage.ErrInvalidInput
	}
	if tx.BaseAmount.IsNegative() {
		return fmt.Errorf("%w: base amount must be >= 0", storage.ErrInvalidInput)
	}
	return nil
}

func insertArgs(tx *domain.NormalizedTransaction) []any {
	return []any{
		tx.ID,
		tx.UserID,
		tx.Source,
		tx.Kind,
		tx.BaseAsset,
		tx.BaseAmount.String(),
		tx.QuoteAsset,
		tx.QuoteAmount.String(),
		tx.FeeAsset,
		tx.FeeAmount.String(),
		tx.Timestamp,
		tx.TxHash,
		tx.IsTransfer,
		tx.TransferMatchID,
	}
}

// scanTransaction scans one row into a NormalizedTransaction, parsing the
// text-cast NUMERIC columns back into decimals.
func scanTransaction(row pgx.Row) (*domain.NormalizedTransaction, error) {
	var tx domain.NormalizedTransaction
	var baseAmount, quoteAmount, feeAmount string

	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Source,
		&tx.Kind,
		&tx.BaseAsset,
		&baseAmount,
		&tx.QuoteAsset,
		&quoteAmount,
		&tx.FeeAsset,
		&feeAmount,
		&tx.Timestamp,
		&tx.TxHash,
		&tx.IsTransfer,
		&tx.TransferMatchID,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tx.BaseAmount, err = decimal.NewFromString(baseAmount); err != nil {
		return nil, fmt.Errorf("parse base amount: %w", err)
	}
	if tx.QuoteAmount, err = decimal.NewFromString(quoteAmount); err != nil {
		return nil, fmt.Errorf("parse quote amount: %w", err)
	}
	if tx.FeeAmount, err = decimal.NewFromString(feeAmount); err != nil {
		return nil, fmt.Errorf("parse fee amount: %w", err)
	}

	return &tx, nil
}

// scanTransactions scans multiple rows into a slice of NormalizedTransaction.
func scanTransactions(rows pgx.Rows) ([]*domain.NormalizedTransaction, error) {
	var txs []*domain.NormalizedTransaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}
