package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/storage"
)

// MatchStore is an in-memory implementation of storage.TransferMatchStore.
// It needs the transaction store of the same dataset so that match
// creation can flip both legs' flags atomically with the match record.
type MatchStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransferMatch // keyed by match id
	txs  *TransactionStore
}

// NewMatchStore creates a new in-memory transfer match store backed by txs.
func NewMatchStore(txs *TransactionStore) *MatchStore {
	return &MatchStore{
		data: make(map[string]*domain.TransferMatch),
		txs:  txs,
	}
}

// Compile-time interface check.
var _ storage.TransferMatchStore = (*MatchStore)(nil)

// CreateMatch inserts the match record and sets both legs' reconciliation
// fields as a single atomic operation.
func (s *MatchStore) CreateMatch(_ context.Context, m *domain.TransferMatch) error {
	if m == nil || m.ID == "" || m.WithdrawalTxID == "" || m.DepositTxID == "" {
		return storage.ErrInvalidInput
	}
	if m.WithdrawalTxID == m.DepositTxID {
		return storage.ErrInvalidInput
	}
	if m.MatchConfidence <= 0 || m.MatchConfidence > 1 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Claiming both legs is itself atomic; on failure nothing was written.
	if err := s.txs.markTransfer(m.WithdrawalTxID, m.DepositTxID, m.ID); err != nil {
		return err
	}

	matchCopy := *m
	s.data[m.ID] = &matchCopy
	return nil
}

// Unmatch deletes the match and clears both legs. Unknown ids are a no-op.
func (s *MatchStore) Unmatch(_ context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[matchID]; !exists {
		return nil
	}

	delete(s.data, matchID)
	s.txs.clearTransfer(matchID)
	return nil
}

// GetByID retrieves a match by its ID. Returns ErrNotFound if not exists.
func (s *MatchStore) GetByID(_ context.Context, matchID string) (*domain.TransferMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[matchID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	matchCopy := *m
	return &matchCopy, nil
}

// GetByUser retrieves all matches for a user, ordered by created_at ASC.
func (s *MatchStore) GetByUser(_ context.Context, userID string) ([]*domain.TransferMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferMatch
	for _, m := range s.data {
		if m.UserID == userID {
			matchCopy := *m
			result = append(result, &matchCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}
