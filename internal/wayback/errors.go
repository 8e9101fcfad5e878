package wayback

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the archive has no capture (HTTP 404).
	ErrNotFound = errors.New("capture not found")

	// ErrFetchFailed is returned when the retry budget is exhausted.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrBodyTooLarge is returned when a response exceeds the body size cap.
	// Partial content is never returned.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrNotWaybackURL is returned when a URL is not a replay URL.
	ErrNotWaybackURL = errors.New("not a wayback replay URL")
)

// FetchError describes a fetch that failed after every attempt.
// It matches ErrFetchFailed with errors.Is and also unwraps to the last cause.
type FetchError struct {
	// URL is the replay URL that was requested.
	URL string

	// Attempts is the number of requests made.
	Attempts int

	// StatusCode is the last HTTP status seen, or 0 for a network error.
	StatusCode int

	// Err is the last underlying error, if any.
	Err error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s failed after %d attempts: HTTP %d", e.URL, e.Attempts, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s failed after %d attempts", e.URL, e.Attempts)
	}
}

// Unwrap returns ErrFetchFailed and the last cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}
