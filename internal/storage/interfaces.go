package storage

import (
	"context"

	"crypto-tax-ledger/internal/domain"
)

// TransactionStore provides access to normalized_transactions storage.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, tx *domain.NormalizedTransaction) error

	// InsertBulk adds multiple transactions atomically. Fails entire batch
	// on any duplicate.
	InsertBulk(ctx context.Context, txs []*domain.NormalizedTransaction) error

	// GetByID retrieves a transaction by its ID. Returns ErrNotFound if
	// not exists.
	GetByID(ctx context.Context, txID string) (*domain.NormalizedTransaction, error)

	// GetByUserUpTo retrieves all of a user's transactions with
	// timestamp <= endMs, ordered by timestamp ASC.
	GetByUserUpTo(ctx context.Context, userID string, endMs int64) ([]*domain.NormalizedTransaction, error)

	// GetUnmatchedByKind retrieves a user's transactions of the given kind
	// with is_transfer = false and no transfer match, ordered by
	// timestamp ASC.
	GetUnmatchedByKind(ctx context.Context, userID, kind string) ([]*domain.NormalizedTransaction, error)
}

// TransferMatchStore provides access to transfer_matches storage and the
// two reconciliation fields on transactions.
type TransferMatchStore interface {
	// CreateMatch inserts the match record and sets is_transfer = true and
	// transfer_match_id = m.ID on both legs as a single atomic operation.
	// Returns ErrAlreadyMatched if either leg already belongs to a match.
	CreateMatch(ctx context.Context, m *domain.TransferMatch) error

	// Unmatch deletes the match and clears both legs' reconciliation
	// fields atomically. Calling it with an unknown or already-unmatched
	// id is a no-op, not an error.
	Unmatch(ctx context.Context, matchID string) error

	// GetByID retrieves a match by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, matchID string) (*domain.TransferMatch, error)

	// GetByUser retrieves all matches for a user, ordered by created_at ASC.
	GetByUser(ctx context.Context, userID string) ([]*domain.TransferMatch, error)
}

// GainItemStore provides append-only analytics storage for computed
// capital gain items. Results are keyed by the (user, tax year, method)
// run that produced them.
type GainItemStore interface {
	// InsertBulk appends all items of one calculation run.
	InsertBulk(ctx context.Context, userID string, taxYear int, method domain.Method, items []domain.CapitalGainItem) error

	// GetByRun retrieves all items for a run, ordered by date_sold ASC.
	GetByRun(ctx context.Context, userID string, taxYear int, method domain.Method) ([]domain.CapitalGainItem, error)
}
