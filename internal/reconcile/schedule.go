package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ─── Retry ──────────────────────────────────────────────────────────────────

// fail moves to the error state and schedules the next backoff retry.
func (e *Engine) fail(err error) {
	e.scheduleRetry(e.markFailed(err))
}

// markFailed moves to the error state and returns the next backoff delay.
func (e *Engine) markFailed(err error) time.Duration {
	e.mu.Lock()
	delay := e.backoff.NextBackOff()
	e.mu.Unlock()

	next := timeNow().Add(delay)
	e.update(func(s *State) {
		s.Status = StatusError
		s.LastError = err.Error()
		s.Failures++
		s.RetryIn = delay
		s.NextRetryAt = next
	})
	e.logger.Info("sync retry scheduled", zap.Duration("in", delay))
	return delay
}

func (e *Engine) scheduleRetry(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	e.retryTimer = nil
	if e.halted {
		return
	}
	e.retryTimer = time.AfterFunc(delay, e.fireRetry)
}

// fireRetry runs retry on the timer goroutine, tracked so Stop can wait
// for it.
func (e *Engine) fireRetry() {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()
	defer e.wg.Done()
	e.retry()
}

func (e *Engine) cancelRetry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

// retry is the scheduled re-attempt after an error. It does nothing if
// the error was cleared in the meantime.
func (e *Engine) retry() {
	e.mu.Lock()
	e.retryTimer = nil
	e.mu.Unlock()

	if e.State().Status != StatusError {
		return
	}
	_, err := e.sync(context.Background(), TriggerRetry)
	if errors.Is(err, ErrCloudUnavailable) {
		// Still offline: count it and back off further.
		e.fail(err)
	}
}

// ─── Auto-sync ──────────────────────────────────────────────────────────────

// Start runs the auto-sync timer until ctx is done or Stop is called.
// Calling Start on a running engine does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.stop != nil {
		return
	}
	e.mu.Lock()
	e.halted = false
	e.mu.Unlock()
	stop := make(chan struct{})
	e.stop = stop
	e.wg.Add(1)
	go e.loop(ctx, stop)
}

// Stop halts the auto-sync timer and any pending retry, and waits for the
// timer goroutine and a retry already in flight to exit.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	e.mu.Lock()
	e.halted = true
	e.mu.Unlock()
	e.cancelRetry()
	e.wg.Wait()
}

func (e *Engine) loop(ctx context.Context, stop <-chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.AutoSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			e.autoTick(ctx)
		}
	}
}

// autoTick attempts a sync when auto-sync is on, local-only mode is off,
// no sync is running and the last success is stale. It reports whether a
// sync was attempted.
func (e *Engine) autoTick(ctx context.Context) bool {
	st := e.State()
	if !st.AutoSync || e.src.LocalOnly() || e.running.Load() {
		return false
	}
	if !st.LastSync.IsZero() && timeNow().Sub(st.LastSync) <= e.cfg.StaleAfter {
		return false
	}
	if _, err := e.sync(ctx, TriggerAuto); err != nil {
		e.logger.Debug("auto-sync did not complete", zap.Error(err))
	}
	return true
}
