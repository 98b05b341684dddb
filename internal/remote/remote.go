// Package remote defines the network-backed tool store contract and an
// HTTP client implementation of it.
package remote

import (
	"context"
	"errors"

	"github.com/HendryAvila/toolvault/internal/tool"
)

var (
	// ErrUnavailable covers every transport-level failure: timeouts,
	// refused connections, 5xx responses.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrUnauthorized means the session is missing, expired or rejected.
	ErrUnauthorized = errors.New("remote store unauthorized")
)

// User is the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Authenticator is the credential lifecycle of a remote store.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (User, error)
	SignUp(ctx context.Context, email, password string) (User, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (User, error)
	IsAuthenticated(ctx context.Context) (bool, error)
}

// Store is a tool store reachable over the network.
type Store interface {
	tool.Store
	Authenticator
}

// IsRemoteFailure reports whether err is one of the uniform remote
// failures (as opposed to a plain not-found).
func IsRemoteFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnauthorized)
}
