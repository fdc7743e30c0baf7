package taxlot

import (
	"github.com/shopspring/decimal"

	"crypto-tax-ledger/internal/domain"
)

// Aggregate reduces gain items into short/long-term gain/loss totals.
// It is a pure function of the items; report generators consume the
// aggregate fields without re-deriving them.
func Aggregate(items []domain.CapitalGainItem) domain.CapitalGainsResult {
	result := domain.CapitalGainsResult{
		Items:                items,
		ShortTermGains:       decimal.Zero,
		ShortTermLosses:      decimal.Zero,
		LongTermGains:        decimal.Zero,
		LongTermLosses:       decimal.Zero,
		TotalGains:           decimal.Zero,
		TotalLosses:          decimal.Zero,
		NetGainLoss:          decimal.Zero,
		TransactionsIncluded: len(items),
	}

	for _, item := range items {
		switch {
		case item.GainOrLoss.IsNegative() && item.IsLongTerm:
			result.LongTermLosses = result.LongTermLosses.Add(item.GainOrLoss.Abs())
		case item.GainOrLoss.IsNegative():
			result.ShortTermLosses = result.ShortTermLosses.Add(item.GainOrLoss.Abs())
		case item.IsLongTerm:
			result.LongTermGains = result.LongTermGains.Add(item.GainOrLoss)
		default:
			result.ShortTermGains = result.ShortTermGains.Add(item.GainOrLoss)
		}
	}

	result.TotalGains = result.ShortTermGains.Add(result.LongTermGains)
	result.TotalLosses = result.ShortTermLosses.Add(result.LongTermLosses)
	result.NetGainLoss = result.TotalGains.Sub(result.TotalLosses)

	return result
}
