package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/toolvault/internal/artifact"
	"github.com/HendryAvila/toolvault/internal/localstore"
	"github.com/HendryAvila/toolvault/internal/remote"
)

// ErrNoCache is returned by cache utilities when no artifact cache is
// configured.
var ErrNoCache = errors.New("artifact cache not configured")

// Cache is the slice of the artifact cache the repository exposes.
// *artifact.Cache implements it.
type Cache interface {
	Stats() (artifact.Stats, error)
	Clear() error
}

// LocalUtils groups the device-only utilities: backup and cache
// accounting.
type LocalUtils struct {
	local Local
	cache Cache
}

// LocalUtils returns the device-only utilities.
func (r *Repository) LocalUtils() *LocalUtils {
	return &LocalUtils{local: r.local, cache: r.cache}
}

// Export serializes the whole local store.
func (u *LocalUtils) Export(ctx context.Context) ([]byte, error) {
	return u.local.ExportJSON(ctx)
}

// Import restores text produced by Export.
func (u *LocalUtils) Import(ctx context.Context, text []byte) (*localstore.ImportResult, error) {
	return u.local.ImportJSON(ctx, text)
}

// CacheStats reports artifact cache usage.
func (u *LocalUtils) CacheStats() (artifact.Stats, error) {
	if u.cache == nil {
		return artifact.Stats{}, ErrNoCache
	}
	return u.cache.Stats()
}

// ClearCache wipes the artifact cache.
func (u *LocalUtils) ClearCache() error {
	if u.cache == nil {
		return ErrNoCache
	}
	return u.cache.Clear()
}

// ─── Auth ───────────────────────────────────────────────────────────────────

// Auth returns the remote credential lifecycle unchanged. Without a
// configured remote store every call fails with remote.ErrUnavailable.
func (r *Repository) Auth() remote.Authenticator {
	if r.remote == nil {
		return noRemote{}
	}
	return r.remote
}

type noRemote struct{}

func (noRemote) SignIn(context.Context, string, string) (remote.User, error) {
	return remote.User{}, errNoRemote("sign in")
}

func (noRemote) SignUp(context.Context, string, string) (remote.User, error) {
	return remote.User{}, errNoRemote("sign up")
}

func (noRemote) SignOut(context.Context) error {
	return errNoRemote("sign out")
}

func (noRemote) CurrentUser(context.Context) (remote.User, error) {
	return remote.User{}, errNoRemote("current user")
}

func (noRemote) IsAuthenticated(context.Context) (bool, error) {
	return false, nil
}

func errNoRemote(op string) error {
	return fmt.Errorf("repository: %s: no remote store configured: %w", op, remote.ErrUnavailable)
}
