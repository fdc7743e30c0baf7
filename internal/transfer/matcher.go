// Package transfer reconciles withdrawal/deposit pairs across sources into
// self-custody transfer matches, excluding them from taxable disposal
// accounting.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/observability"
	"crypto-tax-ledger/internal/storage"
	"crypto-tax-ledger/internal/userlock"
)

// matchWindowMs is the time window around a withdrawal within which a
// deposit is considered a transfer candidate (±1 hour).
const matchWindowMs int64 = 3_600_000

// maxConfidence caps heuristic match confidence below the 1.0 reserved for
// exact tx-hash matches.
const maxConfidence = 0.99

// feeAdjustedPenalty scales confidence down when the match only holds
// after subtracting the withdrawal fee.
const feeAdjustedPenalty = 0.95

// amountTolerance is the maximum relative amount difference for a
// heuristic match: |a1-a2| / avg(a1,a2) <= 0.0001 (0.01%).
var amountTolerance = decimal.NewFromFloat(0.0001)

// Matcher scans a user's unmatched withdrawals and deposits and links
// same-asset cross-source transfers.
//
// Matching is greedy and order-dependent: withdrawals are processed in
// ascending timestamp order and each claims the first acceptable deposit,
// which immediately leaves the candidate pool. This is not a globally
// optimal pairing when several withdrawals compete for the same deposits;
// the behavior is kept for compatibility with existing reconciliations.
type Matcher struct {
	txs     storage.TransactionStore
	matches storage.TransferMatchStore
	locks   *userlock.Keyed
}

// NewMatcher creates a new transfer matcher.
func NewMatcher(txs storage.TransactionStore, matches storage.TransferMatchStore, locks *userlock.Keyed) *Matcher {
	if locks == nil {
		locks = userlock.New()
	}
	return &Matcher{txs: txs, matches: matches, locks: locks}
}

// candidate is a deposit in the in-memory pool for one run.
type candidate struct {
	tx      *domain.NormalizedTransaction
	claimed bool
}

// FindAndMatchTransfers scans all of the user's unmatched withdrawals and
// deposits and creates one TransferMatch per detected transfer pair.
// Returns the number of pairs matched. Withdrawals with no acceptable
// candidate are left unmatched for a future run.
func (m *Matcher) FindAndMatchTransfers(ctx context.Context, userID string) (int, error) {
	m.locks.Lock(userID)
	defer m.locks.Unlock(userID)

	start := time.Now()
	defer func() {
		observability.DefaultMetrics.MatcherRunDuration.Observe(time.Since(start).Seconds())
	}()

	withdrawals, err := m.txs.GetUnmatchedByKind(ctx, userID, domain.KindWithdrawal)
	if err != nil {
		return 0, fmt.Errorf("load unmatched withdrawals: %w", err)
	}
	deposits, err := m.txs.GetUnmatchedByKind(ctx, userID, domain.KindDeposit)
	if err != nil {
		return 0, fmt.Errorf("load unmatched deposits: %w", err)
	}

	pool := make([]*candidate, len(deposits))
	for i, d := range deposits {
		pool[i] = &candidate{tx: d}
	}

	matched := 0
	for _, w := range withdrawals {
		c, confidence, method := m.findCandidate(w, pool)
		if c == nil {
			observability.RecordWithdrawalUnmatched()
			continue
		}

		match := &domain.TransferMatch{
			ID:              uuid.NewString(),
			UserID:          userID,
			WithdrawalTxID:  w.ID,
			DepositTxID:     c.tx.ID,
			MatchConfidence: confidence,
			MatchMethod:     method,
			CreatedAt:       time.Now().UnixMilli(),
		}
		if err := m.matches.CreateMatch(ctx, match); err != nil {
			return matched, fmt.Errorf("create transfer match: %w", err)
		}

		c.claimed = true
		matched++
		observability.RecordMatchCreated(method)
	}

	return matched, nil
}

// findCandidate returns the deposit claimed by this withdrawal, with its
// confidence and method, or nil when nothing matches.
func (m *Matcher) findCandidate(w *domain.NormalizedTransaction, pool []*candidate) (*candidate, float64, string) {
	// Exact on-chain hash equality beats every heuristic.
	if w.TxHash != nil {
		for _, c := range pool {
			if c.claimed {
				continue
			}
			if c.tx.TxHash != nil && *c.tx.TxHash == *w.TxHash {
				return c, 1.0, domain.MatchMethodTxHash
			}
		}
	}

	// Candidate set: same asset, different source, within ±1h.
	var window []*candidate
	for _, c := range pool {
		if c.claimed {
			continue
		}
		if c.tx.BaseAsset != w.BaseAsset {
			continue
		}
		if c.tx.Source == w.Source {
			// A withdrawal and deposit on the same venue are not a
			// cross-custody transfer.
			continue
		}
		if absInt64(c.tx.Timestamp-w.Timestamp) > matchWindowMs {
			continue
		}
		window = append(window, c)
	}

	for _, c := range window {
		if amountsWithinTolerance(w.BaseAmount, c.tx.BaseAmount) {
			return c, heuristicConfidence(w.Timestamp, c.tx.Timestamp), domain.MatchMethodAmountTime
		}
	}

	// Retry net of the withdrawal fee, but only when the fee was paid in
	// the asset being transferred.
	if !w.FeeAmount.IsZero() && w.FeeAsset == w.BaseAsset {
		adjusted := w.BaseAmount.Sub(w.FeeAmount)
		for _, c := range window {
			if amountsWithinTolerance(adjusted, c.tx.BaseAmount) {
				confidence := heuristicConfidence(w.Timestamp, c.tx.Timestamp) * feeAdjustedPenalty
				return c, confidence, domain.MatchMethodFeeAdjusted
			}
		}
	}

	return nil, 0, ""
}

// Unmatch reverses a transfer match: deletes the record and clears both
// legs' flags. Idempotent; an unknown or already-unmatched id is a no-op.
func (m *Matcher) Unmatch(ctx context.Context, matchID string) error {
	if err := m.matches.Unmatch(ctx, matchID); err != nil {
		return fmt.Errorf("unmatch transfer %s: %w", matchID, err)
	}
	return nil
}

// amountsWithinTolerance reports whether |a-b| / avg(a,b) <= 0.01%.
func amountsWithinTolerance(a, b decimal.Decimal) bool {
	if a.Equal(b) {
		return true
	}
	avg := a.Add(b).Div(decimal.NewFromInt(2))
	if avg.IsZero() {
		return false
	}
	diff := a.Sub(b).Abs()
	return diff.Div(avg.Abs()).Cmp(amountTolerance) <= 0
}

// heuristicConfidence computes the amount/time confidence score:
// 0.5 + 0.3*(1 - timeDiff/window) + 0.2, clamped to maxConfidence.
// The 0.2 asset-equality term is constant because asset equality is a
// filter precondition for the candidate set.
func heuristicConfidence(withdrawalTs, depositTs int64) float64 {
	timeDiff := float64(absInt64(depositTs - withdrawalTs))
	confidence := 0.5 + 0.3*(1-timeDiff/float64(matchWindowMs)) + 0.2
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return confidence
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
