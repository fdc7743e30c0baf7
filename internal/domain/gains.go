package domain

import "github.com/shopspring/decimal"

// UnknownAcquisitionDate is the sentinel DateAcquired for gain items whose
// cost basis could not be established (disposal exceeded acquisition
// history). Report renderers display it as "VARIOUS".
const UnknownAcquisitionDate int64 = 0

// CapitalGainItem is one (lot, disposal) pairing, or the zero-basis
// remainder of a disposal that exhausted all lots for its asset.
type CapitalGainItem struct {
	Asset        string
	Amount       decimal.Decimal
	DateAcquired int64 // ms; UnknownAcquisitionDate when basis is unknown
	DateSold     int64 // ms
	Proceeds     decimal.Decimal
	CostBasis    decimal.Decimal
	GainOrLoss   decimal.Decimal // Proceeds - CostBasis
	IsLongTerm   bool
}

// CapitalGainsResult is the aggregate output of one calculation run.
// All four gain/loss buckets are non-negative; NetGainLoss carries the sign.
type CapitalGainsResult struct {
	Items []CapitalGainItem

	ShortTermGains  decimal.Decimal
	ShortTermLosses decimal.Decimal
	LongTermGains   decimal.Decimal
	LongTermLosses  decimal.Decimal

	TotalGains  decimal.Decimal
	TotalLosses decimal.Decimal
	NetGainLoss decimal.Decimal

	TransactionsIncluded int // == len(Items)
}
