package scheduler

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Default politeness bounds between page requests.
const (
	DefaultMinDelay = 30 * time.Second
	DefaultMaxDelay = 120 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scheduler decides when the next request may be issued.
type Scheduler struct {
	// window is the off-peak window; nil disables the gate.
	window *Window

	minDelay time.Duration
	maxDelay time.Duration

	now    func() time.Time
	sleep  SleepFunc
	int64N func(n int64) int64

	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWindow enables the off-peak gate.
func WithWindow(w Window) Option {
	return func(s *Scheduler) {
		s.window = &w
	}
}

// WithDelay sets the politeness bounds.
func WithDelay(minDelay, maxDelay time.Duration) Option {
	return func(s *Scheduler) {
		s.minDelay = minDelay
		s.maxDelay = maxDelay
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSleep replaces the sleep function.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Scheduler) {
		s.sleep = sleep
	}
}

// WithRand replaces the random source used for delays.
// fn must return a value in [0, n).
func WithRand(fn func(n int64) int64) Option {
	return func(s *Scheduler) {
		s.int64N = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a Scheduler. Without WithWindow the gate is always open.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		now:      time.Now,
		sleep:    Sleep,
		int64N:   rand.Int64N,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.minDelay < 0 || s.minDelay > s.maxDelay {
		return nil, ErrInvalidDelayRange
	}
	return s, nil
}

// Window returns the off-peak window and whether the gate is enabled.
func (s *Scheduler) Window() (Window, bool) {
	if s.window == nil {
		return Window{}, false
	}
	return *s.window, true
}

// AwaitWindow blocks until the off-peak window is open.
// It returns immediately when the gate is disabled or the window is open.
func (s *Scheduler) AwaitWindow(ctx context.Context) error {
	if s.window == nil {
		return ctx.Err()
	}

	now := s.now()
	wait := s.window.Wait(now)
	if wait <= 0 {
		return ctx.Err()
	}

	s.logger.Info("outside off-peak window, waiting",
		"window", s.window.String(),
		"resume_at", now.Add(wait).Format(time.RFC3339),
		"wait", wait.Round(time.Second).String(),
	)
	return s.sleep(ctx, wait)
}

// Politeness sleeps for a uniformly random duration in [min, max].
// It returns the duration chosen.
func (s *Scheduler) Politeness(ctx context.Context) (time.Duration, error) {
	d := s.NextDelay()
	if d <= 0 {
		return 0, ctx.Err()
	}
	s.logger.Debug("politeness delay", "delay", d.Round(time.Millisecond).String())
	return d, s.sleep(ctx, d)
}

// Pause sleeps for a fixed duration through the scheduler's sleep function.
func (s *Scheduler) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return s.sleep(ctx, d)
}

// NextDelay draws one politeness delay.
func (s *Scheduler) NextDelay() time.Duration {
	span := int64(s.maxDelay - s.minDelay)
	if span <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.int64N(span+1))
}

// Sleep waits for d or until ctx is canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
