package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.NormalizedTransaction // keyed by transaction id
	seq  map[string]int                           // insertion order, tie-break for equal timestamps
	next int
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.NormalizedTransaction),
		seq:  make(map[string]int),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction. Returns ErrDuplicateKey if id exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.NormalizedTransaction) error {
	if tx == nil || tx.ID == "" || tx.UserID == "" {
		return storage.ErrInvalidInput
	}
	if tx.BaseAmount.IsNegative() {
		return fmt.Errorf("%w: base amount must be >= 0", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(tx)
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on
// any duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.NormalizedTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before mutating anything.
	for _, tx := range txs {
		if tx == nil || tx.ID == "" || tx.UserID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[tx.ID]; exists {
			return storage.ErrDuplicateKey
		}
	}
	for _, tx := range txs {
		if err := s.insertLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *TransactionStore) insertLocked(tx *domain.NormalizedTransaction) error {
	if _, exists := s.data[tx.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	txCopy := *tx
	s.data[tx.ID] = &txCopy
	s.seq[tx.ID] = s.next
	s.next++
	return nil
}

// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(_ context.Context, txID string) (*domain.NormalizedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.data[txID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	txCopy := *tx
	return &txCopy, nil
}

// GetByUserUpTo retrieves all of a user's transactions with
// timestamp <= endMs, ordered by timestamp ASC.
func (s *TransactionStore) GetByUserUpTo(_ context.Context, userID string, endMs int64) ([]*domain.NormalizedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedTransaction
	for _, tx := range s.data {
		if tx.UserID == userID && tx.Timestamp <= endMs {
			txCopy := *tx
			result = append(result, &txCopy)
		}
	}

	s.sortByTimestamp(result)
	return result, nil
}

// GetUnmatchedByKind retrieves a user's transactions of the given kind with
// is_transfer = false and no transfer match, ordered by timestamp ASC.
func (s *TransactionStore) GetUnmatchedByKind(_ context.Context, userID, kind string) ([]*domain.NormalizedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedTransaction
	for _, tx := range s.data {
		if tx.UserID == userID && tx.Kind == kind && !tx.IsTransfer && tx.TransferMatchID == nil {
			txCopy := *tx
			result = append(result, &txCopy)
		}
	}

	s.sortByTimestamp(result)
	return result, nil
}

// sortByTimestamp orders by timestamp ASC with insertion order as the
// tie-break, matching the Postgres ORDER BY timestamp, id semantics.
func (s *TransactionStore) sortByTimestamp(txs []*domain.NormalizedTransaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Timestamp != txs[j].Timestamp {
			return txs[i].Timestamp < txs[j].Timestamp
		}
		return s.seq[txs[i].ID] < s.seq[txs[j].ID]
	})
}

// markTransfer sets both legs' reconciliation fields under one lock.
// Returns ErrAlreadyMatched if either leg is already part of a match.
func (s *TransactionStore) markTransfer(withdrawalTxID, depositTxID, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.data[withdrawalTxID]
	if !ok {
		return storage.ErrNotFound
	}
	d, ok := s.data[depositTxID]
	if !ok {
		return storage.ErrNotFound
	}
	if w.IsTransfer || w.TransferMatchID != nil || d.IsTransfer || d.TransferMatchID != nil {
		return storage.ErrAlreadyMatched
	}

	w.IsTransfer = true
	w.TransferMatchID = &matchID
	d.IsTransfer = true
	d.TransferMatchID = &matchID
	return nil
}

// clearTransfer reverses markTransfer for every leg carrying matchID.
func (s *TransactionStore) clearTransfer(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.data {
		if tx.TransferMatchID != nil && *tx.TransferMatchID == matchID {
			tx.IsTransfer = false
			tx.TransferMatchID = nil
		}
	}
}
