package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/storage"
)

// MatchStore implements storage.TransferMatchStore using PostgreSQL.
// Match creation and deletion run inside one SQL transaction so the match
// record and both legs' flags change together or not at all. Leg updates
// are guarded with is_transfer = FALSE, so a concurrent matcher run for
// the same user loses the race cleanly instead of double-matching.
type MatchStore struct {
	pool *Pool
}

// NewMatchStore creates a new MatchStore.
func NewMatchStore(pool *Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferMatchStore = (*MatchStore)(nil)

const claimLegQuery = `
	UPDATE normalized_transactions
	SET is_transfer = TRUE, transfer_match_id = $1
	WHERE id = $2 AND is_transfer = FALSE AND transfer_match_id IS NULL
`

// CreateMatch inserts the match record and flags both legs atomically.
func (s *MatchStore) CreateMatch(ctx context.Context, m *domain.TransferMatch) error {
	if m == nil || m.ID == "" || m.WithdrawalTxID == "" || m.DepositTxID == "" {
		return storage.ErrInvalidInput
	}
	if m.WithdrawalTxID == m.DepositTxID {
		return storage.ErrInvalidInput
	}
	if m.MatchConfidence <= 0 || m.MatchConfidence > 1 {
		return storage.ErrInvalidInput
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx)

	for _, legID := range []string{m.WithdrawalTxID, m.DepositTxID} {
		tag, err := dbTx.Exec(ctx, claimLegQuery, m.ID, legID)
		if err != nil {
			return fmt.Errorf("claim transfer leg %s: %w", legID, err)
		}
		if tag.RowsAffected() == 0 {
			return s.classifyClaimFailure(ctx, legID)
		}
	}

	_, err = dbTx.Exec(ctx, `
		INSERT INTO transfer_matches (
			id, user_id, withdrawal_tx_id, deposit_tx_id, match_confidence, match_method
		) VALUES ($1, $2, $3, $4, $5, $6)
	`,
		m.ID,
		m.UserID,
		m.WithdrawalTxID,
		m.DepositTxID,
		m.MatchConfidence,
		m.MatchMethod,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrAlreadyMatched
		}
		return fmt.Errorf("insert transfer match: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// classifyClaimFailure distinguishes a missing leg from one already
// claimed by another match.
func (s *MatchStore) classifyClaimFailure(ctx context.Context, legID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM normalized_transactions WHERE id = $1)`, legID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("inspect transfer leg %s: %w", legID, err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrAlreadyMatched
}

// Unmatch deletes the match and clears both legs atomically. Unknown or
// already-unmatched ids are a no-op.
func (s *MatchStore) Unmatch(ctx context.Context, matchID string) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx)

	tag, err := dbTx.Exec(ctx, `DELETE FROM transfer_matches WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("delete transfer match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	_, err = dbTx.Exec(ctx, `
		UPDATE normalized_transactions
		SET is_transfer = FALSE, transfer_match_id = NULL
		WHERE transfer_match_id = $1
	`, matchID)
	if err != nil {
		return fmt.Errorf("clear transfer legs: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

const selectMatchColumns = `
	SELECT id, user_id, withdrawal_tx_id, deposit_tx_id, match_confidence, match_method, created_at
	FROM transfer_matches
`

// GetByID retrieves a match by its ID. Returns ErrNotFound if not exists.
func (s *MatchStore) GetByID(ctx context.Context, matchID string) (*domain.TransferMatch, error) {
	row := s.pool.QueryRow(ctx, selectMatchColumns+` WHERE id = $1`, matchID)

	m, err := scanMatch(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transfer match by id: %w", err)
	}
	return m, nil
}

// GetByUser retrieves all matches for a user, ordered by created_at ASC.
func (s *MatchStore) GetByUser(ctx context.Context, userID string) ([]*domain.TransferMatch, error) {
	rows, err := s.pool.Query(ctx, selectMatchColumns+`
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get transfer matches by user: %w", err)
	}
	defer rows.Close()

	var matches []*domain.TransferMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer match: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer matches: %w", err)
	}

	return matches, nil
}

func scanMatch(row pgx.Row) (*domain.TransferMatch, error) {
	var m domain.TransferMatch
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.WithdrawalTxID,
		&m.DepositTxID,
		&m.MatchConfidence,
		&m.MatchMethod,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
