package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLine is returned for a snapshot list line that is not "timestamp|url".
	ErrMalformedLine = errors.New("malformed snapshot line")

	// ErrNoSeeds is returned when neither the ledger nor the seed source has work.
	ErrNoSeeds = errors.New("nothing to crawl: no pending entries and no snapshots found")
)

// LineError describes a rejected snapshot list line.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
