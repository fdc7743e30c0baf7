package domain

// TransferMatch links a withdrawal and a deposit that represent one
// self-custody movement. Corresponds to transfer_matches table in
// PostgreSQL. A transaction participates in at most one match.
type TransferMatch struct {
	ID              string  // uuid
	UserID          string
	WithdrawalTxID  string  // withdrawal leg transaction id
	DepositTxID     string  // deposit leg transaction id
	MatchConfidence float64 // in (0, 1]
	MatchMethod     string  // one of the MatchMethod* constants
	CreatedAt       int64   // record creation timestamp (ms)
}

// Match method constants.
const (
	MatchMethodTxHash      = "tx_hash"
	MatchMethodAmountTime  = "amount_time"
	MatchMethodFeeAdjusted = "amount_time_fee_adjusted"
)
