package database

import "errors"

var (
	// ErrEntryNotFound is returned when a terminal transition targets a
	// (url, timestamp) pair that was never enqueued.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrAssetNotFound is returned when an update targets a Wayback URL
	// that has no asset row.
	ErrAssetNotFound = errors.New("asset not found")
)
