package scheduler

import (
	"fmt"
	"time"
)

// Window is a daily wall-clock range [Start, End).
// Start and End are offsets from midnight. A window whose End is before its
// Start wraps past midnight. A window with Start == End is always open.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// ParseClock parses a time of day in HH:MM form into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ParseWindow builds a Window from two HH:MM strings.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// AlwaysOpen reports whether the window never closes.
func (w Window) AlwaysOpen() bool {
	return w.Start == w.End
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.AlwaysOpen() {
		return true
	}
	tod := sinceMidnight(t)
	if w.Start < w.End {
		return tod >= w.Start && tod < w.End
	}
	return tod >= w.Start || tod < w.End
}

// NextStart returns the instant the window is next open.
// It returns now itself when now is inside the window.
func (w Window) NextStart(now time.Time) time.Time {
	if w.Contains(now) {
		return now
	}
	start := atOffset(now, w.Start)
	if !start.After(now) {
		start = atOffset(now.AddDate(0, 0, 1), w.Start)
	}
	return start
}

// Wait returns how long to wait from now until the window opens.
func (w Window) Wait(now time.Time) time.Duration {
	return w.NextStart(now).Sub(now)
}

// String renders the window as HH:MM-HH:MM.
func (w Window) String() string {
	return formatOffset(w.Start) + "-" + formatOffset(w.End)
}

// sinceMidnight returns the wall-clock offset of t within its day.
func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// atOffset returns the wall-clock instant at offset on the day of t.
func atOffset(t time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, t.Location())
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}
