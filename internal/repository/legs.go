package repository

import (
	"errors"

	"go.uber.org/zap"

	"github.com/HendryAvila/toolvault/internal/tool"
)

// Leg names used in logs and metrics.
const (
	legLocal  = "local"
	legRemote = "remote"
)

type outcome struct {
	leg     string
	err     error
	skipped bool
}

// legs aggregates the outcome of a best-effort dual write. Every leg is
// attempted; only the local leg's error is ever returned.
type legs struct {
	op      string
	id      string
	logger  *zap.Logger
	failed  func(op string)
	results []outcome
}

func (r *Repository) newLegs(op, id string) *legs {
	return &legs{op: op, id: id, logger: r.logger, failed: r.metrics.RemoteFailed}
}

// remoteFailed logs a failed remote-only call.
func (r *Repository) remoteFailed(op, id string, err error) {
	r.newLegs(op, id).swallow(err)
}

// attempt runs fn for leg and records its outcome.
func (l *legs) attempt(leg string, fn func() error) {
	l.results = append(l.results, outcome{leg: leg, err: fn()})
}

// skip records a leg that was intentionally not attempted.
func (l *legs) skip(leg string) {
	l.results = append(l.results, outcome{leg: leg, skipped: true})
}

// err logs every non-authoritative failure and returns the local error.
func (l *legs) err() error {
	var local error
	for _, o := range l.results {
		if o.skipped || o.err == nil {
			continue
		}
		if o.leg == legLocal {
			local = o.err
			continue
		}
		l.swallow(o.err)
	}
	return local
}

func (l *legs) swallow(err error) {
	if errors.Is(err, tool.ErrNotFound) {
		l.logger.Debug("remote leg missed", zap.String("op", l.op), zap.String("id", l.id))
		return
	}
	l.logger.Warn("remote leg failed",
		zap.String("op", l.op),
		zap.String("id", l.id),
		zap.Error(err),
	)
	if l.failed != nil {
		l.failed(l.op)
	}
}
