package reconcile

import (
	"context"
	"time"
)

// SetClock replaces the package clock and returns a restore func.
func SetClock(fn func() time.Time) func() {
	prev := timeNow
	timeNow = fn
	return func() { timeNow = prev }
}

// AutoTick runs one auto-sync timer tick.
func (e *Engine) AutoTick(ctx context.Context) bool {
	return e.autoTick(ctx)
}

// FireRetry runs the scheduled retry immediately.
func (e *Engine) FireRetry() {
	e.cancelRetry()
	e.retry()
}

// RetryPending reports whether a retry timer is armed.
func (e *Engine) RetryPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retryTimer != nil
}
