// Package taxlot builds per-asset acquisition lot queues from transaction
// history and allocates disposals against them to produce capital gain
// items under FIFO/LIFO/HIFO accounting.
package taxlot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/observability"
	"crypto-tax-ledger/internal/storage"
	"crypto-tax-ledger/internal/userlock"
)

// longTermThresholdMs is the holding period above which a gain is
// long-term: strictly more than 365 days in milliseconds. Exactly 365 days
// is short-term. Deliberately not calendar-aware; a calendar rule would
// change outcomes at the boundary.
const longTermThresholdMs int64 = 365 * 24 * 60 * 60 * 1000

// Engine computes capital gains for a tax year. Lots are rebuilt from
// transaction history on every call and discarded on return, so two calls
// over unchanged transactions produce identical results.
type Engine struct {
	txs   storage.TransactionStore
	locks *userlock.Keyed
}

// NewEngine creates a new cost-basis engine.
func NewEngine(txs storage.TransactionStore, locks *userlock.Keyed) *Engine {
	if locks == nil {
		locks = userlock.New()
	}
	return &Engine{txs: txs, locks: locks}
}

// Calculate computes the user's capital gains for taxYear under the given
// accounting method. Transactions flagged as transfers are excluded from
// both acquisition and disposal accounting. A disposal that exhausts all
// lots for its asset is surfaced as a zero-basis gain item rather than an
// error.
func (e *Engine) Calculate(ctx context.Context, userID string, taxYear int, method domain.Method) (*domain.CapitalGainsResult, error) {
	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	start := time.Now()
	defer func() {
		observability.DefaultMetrics.CalculationDuration.Observe(time.Since(start).Seconds())
	}()
	observability.RecordCalculation(string(method))

	yearStart := time.Date(taxYear, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	yearEnd := time.Date(taxYear, time.December, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC).UnixMilli()

	txs, err := e.txs.GetByUserUpTo(ctx, userID, yearEnd)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", userID, err)
	}

	acquisitions, disposals := classify(txs, yearStart)
	lots := buildLots(acquisitions, method)

	var items []domain.CapitalGainItem
	for _, d := range disposals {
		items = append(items, allocateDisposal(d, lots[d.BaseAsset])...)
	}

	observability.RecordGainItems(len(items))

	result := Aggregate(items)
	return &result, nil
}

// classify splits transactions into acquisitions (any date up to the year
// end) and disposals (within the tax year), both in the chronological
// order of the input. Transfer legs contribute to neither.
func classify(txs []*domain.NormalizedTransaction, yearStart int64) (acquisitions, disposals []*domain.NormalizedTransaction) {
	for _, tx := range txs {
		if tx.IsTransfer {
			continue
		}
		switch {
		case domain.IsAcquisitionKind(tx.Kind):
			acquisitions = append(acquisitions, tx)
		case domain.IsDisposalKind(tx.Kind) && tx.Timestamp >= yearStart:
			disposals = append(disposals, tx)
		}
	}
	return acquisitions, disposals
}

// buildLots groups acquisitions by asset into lot lists ordered for the
// accounting method. The input is chronological, so FIFO keeps it as-is,
// LIFO reverses it, and HIFO stable-sorts by descending unit cost (equal
// unit costs keep their chronological order). Unrecognized methods keep
// the chronological order, i.e. behave as FIFO.
func buildLots(acquisitions []*domain.NormalizedTransaction, method domain.Method) map[string][]*domain.TaxLot {
	lots := make(map[string][]*domain.TaxLot)
	for _, tx := range acquisitions {
		lots[tx.BaseAsset] = append(lots[tx.BaseAsset], &domain.TaxLot{
			ID:              tx.ID,
			Date:            tx.Timestamp,
			Asset:           tx.BaseAsset,
			Amount:          tx.BaseAmount,
			CostBasisUSD:    tx.QuoteAmount,
			RemainingAmount: tx.BaseAmount,
		})
	}

	switch method {
	case domain.MethodLIFO:
		for _, assetLots := range lots {
			for i, j := 0, len(assetLots)-1; i < j; i, j = i+1, j-1 {
				assetLots[i], assetLots[j] = assetLots[j], assetLots[i]
			}
		}
	case domain.MethodHIFO:
		for _, assetLots := range lots {
			sort.SliceStable(assetLots, func(i, j int) bool {
				return assetLots[i].UnitCost().GreaterThan(assetLots[j].UnitCost())
			})
		}
	}

	return lots
}

// allocateDisposal walks the asset's lots in their method-determined order
// and emits one gain item per consumed (lot, disposal) pairing, plus a
// zero-basis remainder item when the lots cannot cover the full disposal.
func allocateDisposal(d *domain.NormalizedTransaction, assetLots []*domain.TaxLot) []domain.CapitalGainItem {
	proceedsPerUnit := decimal.Zero
	if !d.BaseAmount.IsZero() {
		proceedsPerUnit = d.QuoteAmount.Div(d.BaseAmount)
	}

	var items []domain.CapitalGainItem
	toSell := d.BaseAmount

	for _, lot := range assetLots {
		if !toSell.IsPositive() {
			break
		}
		if !lot.RemainingAmount.IsPositive() {
			continue
		}

		amountFromLot := decimal.Min(lot.RemainingAmount, toSell)
		itemProceeds := proceedsPerUnit.Mul(amountFromLot)
		itemCostBasis := lot.UnitCost().Mul(amountFromLot)

		items = append(items, domain.CapitalGainItem{
			Asset:        d.BaseAsset,
			Amount:       amountFromLot,
			DateAcquired: lot.Date,
			DateSold:     d.Timestamp,
			Proceeds:     itemProceeds,
			CostBasis:    itemCostBasis,
			GainOrLoss:   itemProceeds.Sub(itemCostBasis),
			IsLongTerm:   d.Timestamp-lot.Date > longTermThresholdMs,
		})

		lot.RemainingAmount = lot.RemainingAmount.Sub(amountFromLot)
		toSell = toSell.Sub(amountFromLot)
	}

	// Insufficient acquisition history: surface the shortfall as a
	// zero-basis item instead of dropping it or failing the run.
	if toSell.IsPositive() {
		remainderProceeds := proceedsPerUnit.Mul(toSell)
		items = append(items, domain.CapitalGainItem{
			Asset:        d.BaseAsset,
			Amount:       toSell,
			DateAcquired: domain.UnknownAcquisitionDate,
			DateSold:     d.Timestamp,
			Proceeds:     remainderProceeds,
			CostBasis:    decimal.Zero,
			GainOrLoss:   remainderProceeds,
			IsLongTerm:   true,
		})
		observability.DefaultMetrics.UnknownBasisRemainders.Inc()
	}

	return items
}
