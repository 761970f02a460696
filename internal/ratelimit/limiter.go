// Package ratelimit implements the sliding-window limiter that bounds
// outbound Steam API calls across concurrent pipeline workers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlidingWindow admits at most maxCalls operations within any trailing
// window of period, shared by any number of concurrent callers. It keeps an
// ordered log of grant timestamps guarded by a mutex; the whole
// purge/check/append sequence runs under the lock, while waiting for the
// window to open happens outside it so a sleeping caller never blocks one
// that still has quota.
type SlidingWindow struct {
	maxCalls int
	period   time.Duration

	mu    sync.Mutex
	calls []time.Time

	now    func() time.Time
	logger *zap.Logger
	onWait func(time.Duration)
}

// Option customizes a SlidingWindow.
type Option func(*SlidingWindow)

// WithLogger sets the logger used for wait diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *SlidingWindow) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source. Only tests should need this.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindow) {
		if now != nil {
			l.now = now
		}
	}
}

// WithWaitObserver registers a callback invoked with the computed wait
// duration each time a caller has to sit out the window.
func WithWaitObserver(fn func(wait time.Duration)) Option {
	return func(l *SlidingWindow) {
		l.onWait = fn
	}
}

// New validates the quota configuration and returns a ready limiter.
func New(maxCalls int, period time.Duration, opts ...Option) (*SlidingWindow, error) {
	if maxCalls <= 0 {
		return nil, fmt.Errorf("ratelimit: max calls must be > 0, got %d", maxCalls)
	}
	if period <= 0 {
		return nil, fmt.Errorf("ratelimit: period must be > 0, got %s", period)
	}
	l := &SlidingWindow{
		maxCalls: maxCalls,
		period:   period,
		calls:    make([]time.Time, 0, maxCalls),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Acquire blocks until a slot is available within the trailing window, then
// records the grant and returns. The only possible error is the context's
// own error, returned unwrapped, when the caller is canceled while waiting.
// A canceled waiter leaves the call log untouched: the append only happens
// under the lock after a successful re-check.
func (l *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.purge(now)
		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		// Oldest retained grant tells us when a slot opens up.
		waitFor := l.calls[0].Add(l.period).Sub(now)
		l.mu.Unlock()

		if waitFor < 0 {
			waitFor = 0
		}
		l.logger.Warn("api quota reached, waiting for window to slide",
			zap.Duration("wait", waitFor),
			zap.Int("max_calls", l.maxCalls),
			zap.Duration("period", l.period),
		)
		if l.onWait != nil {
			l.onWait(waitFor)
		}
		if err := l.sleep(ctx, waitFor); err != nil {
			return err
		}
		// Woken waiters loop back and re-check under the lock. Two waiters
		// sharing the same deadline would otherwise both append and exceed
		// the quota by one.
	}
}

// InFlight reports how many grants currently fall inside the window.
func (l *SlidingWindow) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purge(l.now())
	return len(l.calls)
}

// purge drops timestamps that have aged out of the trailing window.
// Callers must hold mu.
func (l *SlidingWindow) purge(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= l.period {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

func (l *SlidingWindow) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
