package model

import (
	"errors"
	"time"
)

// Validation errors returned by the record constructors.
var (
	// ErrEmptyURL is returned when a record is built without a URL.
	ErrEmptyURL = errors.New("url must not be empty")

	// ErrInvalidTimestamp is returned when a snapshot timestamp is not 14 digits.
	ErrInvalidTimestamp = errors.New("timestamp must be 14 digits (YYYYMMDDhhmmss)")

	// ErrEmptyDomain is returned when a record is built without a domain.
	ErrEmptyDomain = errors.New("domain must not be empty")

	// ErrEmptyHash is returned when an asset is built without a content hash.
	ErrEmptyHash = errors.New("content hash must not be empty")

	// ErrEmptyLocalPath is returned when an asset is built without a local path.
	ErrEmptyLocalPath = errors.New("local path must not be empty")

	// ErrInvalidDownloadCount is returned when an asset download count is below one.
	ErrInvalidDownloadCount = errors.New("download count must be at least 1")
)

// TimestampLayout is the Go time layout of a 14-digit Wayback timestamp.
const TimestampLayout = "20060102150405"

// QueueEntry is one row of the crawl ledger.
// Its identity is the (URL, Timestamp) pair.
type QueueEntry struct {
	// URL is the original (non-Wayback) URL of the page.
	URL string `json:"url"`

	// Timestamp is the 14-digit snapshot timestamp.
	Timestamp string `json:"timestamp"`

	// Domain is the bare domain the page belongs to (no www. prefix).
	Domain string `json:"domain"`

	// Status is the crawl state.
	Status Status `json:"status"`

	// LocalPath is where the captured page was written. Empty unless completed.
	LocalPath string `json:"local_path,omitempty"`

	// Error holds the failure reason. Empty unless failed.
	Error string `json:"error,omitempty"`

	// DiscoveredAt is when the entry was first enqueued.
	DiscoveredAt time.Time `json:"discovered_at"`

	// FetchedAt is when the entry last reached a terminal state.
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// NewQueueEntry creates a pending entry after validating its key fields.
func NewQueueEntry(url, timestamp, domain string) (*QueueEntry, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	if !ValidTimestamp(timestamp) {
		return nil, ErrInvalidTimestamp
	}
	if domain == "" {
		return nil, ErrEmptyDomain
	}
	return &QueueEntry{
		URL:       url,
		Timestamp: timestamp,
		Domain:    domain,
		Status:    StatusPending,
	}, nil
}

// Key returns the ledger identity of the entry.
func (e *QueueEntry) Key() EntryKey {
	return EntryKey{URL: e.URL, Timestamp: e.Timestamp}
}

// EntryKey is the (url, timestamp) identity of a ledger entry.
type EntryKey struct {
	URL       string
	Timestamp string
}

// ValidTimestamp reports whether ts is a 14-digit Wayback timestamp.
func ValidTimestamp(ts string) bool {
	if len(ts) != len(TimestampLayout) {
		return false
	}
	for _, r := range ts {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseTimestamp converts a 14-digit Wayback timestamp to a UTC time.
func ParseTimestamp(ts string) (time.Time, error) {
	if !ValidTimestamp(ts) {
		return time.Time{}, ErrInvalidTimestamp
	}
	return time.Parse(TimestampLayout, ts)
}
