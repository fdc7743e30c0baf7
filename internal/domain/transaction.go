package domain

import "github.com/shopspring/decimal"

// NormalizedTransaction is a transaction already reduced to canonical shape
// by the source adapters. Corresponds to normalized_transactions table in
// PostgreSQL.
//
// Rows are append-only except for the two transfer-reconciliation fields
// (IsTransfer, TransferMatchID), which are flipped by the transfer matcher
// through TransferMatchStore.CreateMatch / Unmatch only.
type NormalizedTransaction struct {
	ID     string // deterministic hash, see idhash
	UserID string
	Source string // source identifier, e.g. "coinbase", "ethereum"
	Kind   string // one of the Kind* constants

	BaseAsset  string          // asset symbol
	BaseAmount decimal.Decimal // unsigned magnitude, >= 0

	QuoteAsset  string          // empty when not applicable
	QuoteAmount decimal.Decimal // proceeds/consideration in USD

	FeeAsset  string
	FeeAmount decimal.Decimal

	Timestamp int64   // Unix timestamp in milliseconds
	TxHash    *string // on-chain transaction hash, nil for exchange-only activity

	IsTransfer      bool    // set by the transfer matcher
	TransferMatchID *string // nil until matched

	CreatedAt int64 // record creation timestamp (ms)
}

// Transaction kind constants. A transaction's kind is fixed at
// normalization time and never changes afterwards.
const (
	KindBuy          = "buy"
	KindSell         = "sell"
	KindTrade        = "trade"
	KindDeposit      = "deposit"
	KindWithdrawal   = "withdrawal"
	KindIncome       = "income"
	KindMining       = "mining"
	KindStaking      = "staking"
	KindAirdrop      = "airdrop"
	KindGiftReceived = "gift-received"
	KindGiftSent     = "gift-sent"
	KindExpense      = "expense"
	KindFee          = "fee"
	KindSelfTransfer = "self-transfer"
)

// acquisitionKinds are the kinds that open tax lots.
var acquisitionKinds = map[string]bool{
	KindBuy:          true,
	KindIncome:       true,
	KindMining:       true,
	KindStaking:      true,
	KindAirdrop:      true,
	KindGiftReceived: true,
}

// disposalKinds are the kinds that consume tax lots and realize gain/loss.
var disposalKinds = map[string]bool{
	KindSell:     true,
	KindExpense:  true,
	KindGiftSent: true,
}

// IsAcquisitionKind reports whether kind adds to an asset position.
func IsAcquisitionKind(kind string) bool {
	return acquisitionKinds[kind]
}

// IsDisposalKind reports whether kind reduces an asset position.
func IsDisposalKind(kind string) bool {
	return disposalKinds[kind]
}
