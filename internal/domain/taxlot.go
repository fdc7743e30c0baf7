package domain

import "github.com/shopspring/decimal"

// TaxLot is a discrete quantity of an asset acquired at a specific time and
// cost. Lots are an ephemeral derived view: rebuilt from transaction
// history at the start of every calculation run and discarded at the end,
// never persisted or shared across runs.
type TaxLot struct {
	ID              string          // originating acquisition transaction id
	Date            int64           // acquisition timestamp (ms)
	Asset           string
	Amount          decimal.Decimal // original quantity
	CostBasisUSD    decimal.Decimal // original USD cost
	RemainingAmount decimal.Decimal // non-increasing within a run, never negative
}

// UnitCost returns CostBasisUSD / Amount, or zero when Amount is zero.
// Zero-amount lots degrade to zero cost rather than failing the run.
func (l *TaxLot) UnitCost() decimal.Decimal {
	if l.Amount.IsZero() {
		return decimal.Zero
	}
	return l.CostBasisUSD.Div(l.Amount)
}
