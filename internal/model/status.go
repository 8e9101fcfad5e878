package model

import "fmt"

// Status is the crawl state of a ledger entry.
//
// The state machine is pending -> completed | failed. Both terminal states
// may be overwritten by re-processing; there is no automatic transition out
// of failed.
type Status string

const (
	// StatusPending marks an entry that has been discovered but not yet fetched.
	StatusPending Status = "pending"

	// StatusCompleted marks an entry whose page was fetched and saved.
	StatusCompleted Status = "completed"

	// StatusFailed marks an entry whose fetch or save failed.
	// The Error field of the entry holds the reason.
	StatusFailed Status = "failed"
)

// AllStatuses lists every status in state-machine order.
// Reports iterate over this so that zero counts are still shown.
var AllStatuses = []Status{StatusPending, StatusCompleted, StatusFailed}

// IsTerminal reports whether s is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// String returns the persisted representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a persisted status string back into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusFailed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}
