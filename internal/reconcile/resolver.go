package reconcile

import (
	"context"

	"github.com/HendryAvila/toolvault/internal/tool"
)

// Decision is a Resolver's answer for one conflict.
type Decision int

const (
	// DecisionReport leaves both copies untouched and counts a conflict.
	DecisionReport Decision = iota
	// DecisionKeepLocal pushes the local copy over the remote one.
	DecisionKeepLocal
	// DecisionTakeRemote overwrites the local copy with the remote one.
	DecisionTakeRemote
)

func (d Decision) String() string {
	switch d {
	case DecisionKeepLocal:
		return "keep-local"
	case DecisionTakeRemote:
		return "take-remote"
	default:
		return "report"
	}
}

// Conflict is a pair sharing content identity (or id) where the local
// copy is strictly newer than the remote one.
type Conflict struct {
	Local  tool.Meta
	Remote tool.Meta
}

// Resolver decides conflicts. The engine uses DecisionReport for every
// conflict when no resolver is configured.
type Resolver interface {
	Resolve(ctx context.Context, c Conflict) Decision
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, c Conflict) Decision

func (f ResolverFunc) Resolve(ctx context.Context, c Conflict) Decision {
	return f(ctx, c)
}
