// Package reconcile converges the local and remote tool stores.
//
// The Engine is a small state machine: idle → syncing → success, error or
// conflict. One atomic flag guards every reconciliation, so a manual Sync
// made while an automatic one is running is rejected rather than queued.
// Errors schedule an exponential-backoff retry; conflicts (the local copy
// is strictly newer) are reported and left untouched unless a Resolver
// decides otherwise.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/HendryAvila/toolvault/internal/metrics"
	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/repository"
)

var (
	ErrSyncInProgress   = errors.New("sync already in progress")
	ErrLocalOnly        = errors.New("local-only mode is enabled")
	ErrCloudUnavailable = errors.New("cloud store unavailable")
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Setting keys persisted across restarts.
const (
	settingLastSync = "sync.last"
	settingAutoSync = "sync.auto"
)

// ─── Types ──────────────────────────────────────────────────────────────────

// Status is the engine's state-machine position.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSyncing  Status = "syncing"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusConflict Status = "conflict"
)

// Result summarizes one reconciliation.
type Result struct {
	LocalCount  int      `json:"localCount"`
	CloudCount  int      `json:"cloudCount"`
	Merged      int      `json:"merged"`
	Conflicts   int      `json:"conflicts"`
	ConflictIDs []string `json:"conflictIds,omitempty"`
}

// State is an observable snapshot of the engine.
type State struct {
	Status      Status        `json:"status"`
	LastSync    time.Time     `json:"lastSync,omitzero"`
	LastResult  *Result       `json:"lastResult,omitempty"`
	LastError   string        `json:"lastError,omitempty"`
	AutoSync    bool          `json:"autoSync"`
	Failures    int           `json:"consecutiveFailures,omitempty"`
	RetryIn     time.Duration `json:"retryIn,omitempty"`
	NextRetryAt time.Time     `json:"nextRetryAt,omitzero"`
}

// Source is what the engine needs from the composite repository.
// *repository.Repository implements it.
type Source interface {
	LocalOnly() bool
	IsCloudAvailable(ctx context.Context) bool
	Local() repository.Local
	Remote() remote.Store
}

// Settings persists engine state. *localstore.Store implements it.
type Settings interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Config tunes the engine. Zero durations take the defaults.
type Config struct {
	AutoSyncInterval time.Duration
	StaleAfter       time.Duration
	RetryBase        time.Duration
	RetryMax         time.Duration
	Resolver         Resolver
	Logger           *zap.Logger
	Metrics          *metrics.Metrics
}

func (c *Config) defaults() {
	if c.AutoSyncInterval <= 0 {
		c.AutoSyncInterval = 5 * time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = time.Hour
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 30 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine drives reconciliation between the two stores.
type Engine struct {
	src      Source
	settings Settings
	cfg      Config
	logger   *zap.Logger

	// running is the single mutual-exclusion flag for every sync trigger.
	running atomic.Bool

	mu         sync.Mutex
	state      State
	subs       map[int]chan State
	nextSub    int
	backoff    *backoff.ExponentialBackOff
	retryTimer *time.Timer
	// halted is set by Stop; no retry is scheduled or started after it.
	halted bool

	loopMu sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
}

// New builds an engine and restores the persisted lastSync timestamp and
// auto-sync flag. Auto-sync defaults to on.
func New(ctx context.Context, src Source, settings Settings, cfg Config) (*Engine, error) {
	cfg.defaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = cfg.RetryMax
	b.Reset()

	e := &Engine{
		src:      src,
		settings: settings,
		cfg:      cfg,
		logger:   cfg.Logger.Named("reconcile"),
		subs:     make(map[int]chan State),
		backoff:  b,
		state:    State{Status: StatusIdle, AutoSync: true},
	}

	if raw, ok, err := settings.Setting(ctx, settingLastSync); err != nil {
		return nil, err
	} else if ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			e.state.LastSync = ts
		}
	}
	if raw, ok, err := settings.Setting(ctx, settingAutoSync); err != nil {
		return nil, err
	} else if ok {
		e.state.AutoSync = raw == "true"
	}
	return e, nil
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() State {
	s := e.state
	if s.LastResult != nil {
		r := *s.LastResult
		r.ConflictIDs = append([]string(nil), r.ConflictIDs...)
		s.LastResult = &r
	}
	return s
}

// Subscribe returns a channel that receives every state change and a func
// that cancels the subscription. A slow reader only ever sees the latest
// state.
func (e *Engine) Subscribe() (<-chan State, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan State, 1)
	ch <- e.snapshot()
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}
}

// update mutates the state under the lock and publishes the result.
func (e *Engine) update(fn func(*State)) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
	s := e.snapshot()
	for _, ch := range e.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
	return s
}

// SetAutoSync toggles and persists the auto-sync flag.
func (e *Engine) SetAutoSync(ctx context.Context, on bool) error {
	value := "false"
	if on {
		value = "true"
	}
	if err := e.settings.SetSetting(ctx, settingAutoSync, value); err != nil {
		return err
	}
	e.update(func(s *State) { s.AutoSync = on })
	return nil
}

// ClearError returns a terminal state to idle and cancels any pending
// retry. It reports false while a sync is running.
func (e *Engine) ClearError() bool {
	if e.running.Load() {
		return false
	}
	e.cancelRetry()
	e.mu.Lock()
	e.backoff.Reset()
	e.mu.Unlock()
	e.update(func(s *State) {
		s.Status = StatusIdle
		s.LastError = ""
		s.Failures = 0
		s.RetryIn = 0
		s.NextRetryAt = time.Time{}
	})
	return true
}
