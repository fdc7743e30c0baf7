package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTransactionID computes a deterministic transaction id using SHA256.
// Formula: SHA256(user_id|source|kind|base_asset|base_amount|timestamp|tx_hash)
// Returns hex-encoded hash (64 characters).
//
// The amount must already be in canonical decimal string form so that
// re-ingesting the same row always produces the same id.
func ComputeTransactionID(
	userID string,
	source string,
	kind string,
	baseAsset string,
	baseAmount string,
	timestampMs int64,
	txHash *string,
) string {
	hashStr := ""
	if txHash != nil {
		hashStr = *txHash
	}

	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		userID,
		source,
		kind,
		baseAsset,
		baseAmount,
		timestampMs,
		hashStr,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
