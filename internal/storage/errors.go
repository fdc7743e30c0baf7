package storage

import "errors"

// Storage errors for the append-mostly transaction ledger.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. The ledger does not allow updates
	// outside the two transfer-reconciliation fields.
	ErrDuplicateKey = errors.New("duplicate key: ledger does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyMatched is returned by CreateMatch when either leg is
	// already part of a transfer match.
	ErrAlreadyMatched = errors.New("transaction already part of a transfer match")
)
