package scheduler

import "errors"

var (
	// ErrInvalidClock is returned for a time of day not in HH:MM form.
	ErrInvalidClock = errors.New("invalid time of day (want HH:MM)")

	// ErrInvalidDelayRange is returned when the minimum delay exceeds the maximum.
	ErrInvalidDelayRange = errors.New("min delay must not exceed max delay")
)
