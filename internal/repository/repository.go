// Package repository is the single tool-store entry point for the rest of
// the application. It hides the local/remote topology: writes land locally
// first, remote legs are best-effort, and listings are merged by content
// hash.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/toolvault/internal/localstore"
	"github.com/HendryAvila/toolvault/internal/metrics"
	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/tool"
)

var _ tool.Store = (*Repository)(nil)

// Local is the on-device store. *localstore.Store implements it.
type Local interface {
	tool.Store
	Peek(ctx context.Context, id string) (tool.Record, error)
	Put(ctx context.Context, rec tool.Record) (tool.Meta, error)
	Replace(ctx context.Context, oldID string, rec tool.Record) (tool.Meta, error)
	Recent(ctx context.Context, limit int) ([]tool.Meta, error)
	ExportJSON(ctx context.Context) ([]byte, error)
	ImportJSON(ctx context.Context, text []byte) (*localstore.ImportResult, error)
}

// Options configure a Repository. A nil Remote means no remote store is
// configured.
type Options struct {
	Remote    remote.Store
	LocalOnly bool
	Cache     Cache
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Repository fans tool operations out to the local and remote stores.
type Repository struct {
	local     Local
	remote    remote.Store
	cache     Cache
	localOnly atomic.Bool
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New builds a repository over local.
func New(local Local, opts Options) *Repository {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Repository{
		local:   local,
		remote:  opts.Remote,
		cache:   opts.Cache,
		logger:  opts.Logger.Named("repository"),
		metrics: opts.Metrics,
	}
	r.localOnly.Store(opts.LocalOnly)
	return r
}

// ─── Flags ──────────────────────────────────────────────────────────────────

// SetLocalOnly toggles local-only mode, which disables every remote leg.
func (r *Repository) SetLocalOnly(on bool) {
	r.localOnly.Store(on)
}

// LocalOnly reports whether local-only mode is on.
func (r *Repository) LocalOnly() bool {
	return r.localOnly.Load()
}

// HasRemote reports whether a remote store is configured.
func (r *Repository) HasRemote() bool {
	return r.remote != nil
}

func (r *Repository) remoteEnabled() bool {
	return r.remote != nil && !r.localOnly.Load()
}

// Local returns the local store.
func (r *Repository) Local() Local {
	return r.local
}

// Remote returns the remote store, or nil when remote legs are disabled.
func (r *Repository) Remote() remote.Store {
	if !r.remoteEnabled() {
		return nil
	}
	return r.remote
}

// IsCloudAvailable probes the remote store. Any failure means "no".
func (r *Repository) IsCloudAvailable(ctx context.Context) bool {
	if !r.remoteEnabled() {
		return false
	}
	ok, err := r.remote.IsAuthenticated(ctx)
	if err != nil {
		r.logger.Debug("cloud probe failed", zap.Error(err))
		return false
	}
	return ok
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Get prefers the remote copy for remote-provenance ids, mirroring a hit
// into the local store. Remote failures fall back to the local store.
func (r *Repository) Get(ctx context.Context, id string) (tool.Record, error) {
	if r.remoteEnabled() && !tool.IsLocalID(id) {
		rec, err := r.remote.Get(ctx, id)
		if err == nil {
			cur, lerr := r.local.Peek(ctx, rec.ID)
			switch {
			case lerr == nil && cur.OwnerMeta.UpdatedAt.After(rec.OwnerMeta.UpdatedAt):
				// A newer local edit waits for sync; never mirror over it.
				r.logger.Debug("local copy newer than remote, mirror skipped", zap.String("id", rec.ID))
				return r.local.Get(ctx, rec.ID)
			case lerr != nil && !errors.Is(lerr, tool.ErrNotFound):
				return tool.Record{}, fmt.Errorf("repository: mirror %s: %w", id, lerr)
			}
			if _, err := r.local.Put(ctx, rec); err != nil {
				return tool.Record{}, fmt.Errorf("repository: mirror %s: %w", id, err)
			}
			// Read back through the local store so remote hits land in
			// the recency index too.
			return r.local.Get(ctx, rec.ID)
		}
		r.remoteFailed("get", id, err)
	}
	return r.local.Get(ctx, id)
}

// List fetches both stores concurrently and merges them by content hash.
// The limit is applied after merging. A failed remote leg contributes
// nothing; a failed local leg is returned only when no listing at all
// could be produced.
func (r *Repository) List(ctx context.Context, params tool.ListParams) ([]tool.Meta, error) {
	fetch := tool.ListParams{Query: params.Query}

	remoteOn := r.remoteEnabled()
	var (
		g                   errgroup.Group
		local, rem          []tool.Meta
		localErr, remoteErr error
	)
	g.Go(func() error {
		local, localErr = r.local.List(ctx, fetch)
		return nil
	})
	if remoteOn {
		g.Go(func() error {
			rem, remoteErr = r.remote.List(ctx, fetch)
			return nil
		})
	}
	_ = g.Wait()

	if remoteErr != nil {
		r.remoteFailed("list", "", remoteErr)
		rem = nil
	}
	if localErr != nil {
		if !remoteOn || remoteErr != nil {
			return nil, fmt.Errorf("repository: list: %w", localErr)
		}
		r.logger.Warn("local listing failed, serving remote only", zap.Error(localErr))
		local = nil
	}

	merged := Merge(local, rem)
	if params.Limit > 0 && len(merged) > params.Limit {
		merged = merged[:params.Limit]
	}
	return merged, nil
}

// Merge collapses metas that share a content hash, keeping the one with
// the later UpdatedAt and the remote one on an exact tie, then sorts the
// result newest first.
func Merge(local, rem []tool.Meta) []tool.Meta {
	byHash := make(map[string]int, len(local)+len(rem))
	out := make([]tool.Meta, 0, len(local)+len(rem))
	add := func(m tool.Meta) {
		i, ok := byHash[m.ContentHash]
		if !ok {
			byHash[m.ContentHash] = len(out)
			out = append(out, m)
			return
		}
		out[i] = pick(out[i], m)
	}
	for _, m := range rem {
		add(m)
	}
	for _, m := range local {
		add(m)
	}
	tool.SortNewestFirst(out)
	return out
}

// pick applies tool.Pick across stores. Two entries from the same store
// keep the later one, and the smaller id on a tie.
func pick(a, b tool.Meta) tool.Meta {
	switch {
	case a.Source == tool.SourceLocal && b.Source == tool.SourceRemote:
		return tool.Pick(a, b)
	case a.Source == tool.SourceRemote && b.Source == tool.SourceLocal:
		return tool.Pick(b, a)
	case b.UpdatedAt.After(a.UpdatedAt):
		return b
	case a.UpdatedAt.Equal(b.UpdatedAt) && b.ID < a.ID:
		return b
	default:
		return a
	}
}

// IsFavorite checks the local store, then the remote store.
func (r *Repository) IsFavorite(ctx context.Context, id string) (bool, error) {
	on, err := r.local.IsFavorite(ctx, id)
	if err != nil {
		return false, err
	}
	if on || !r.remoteEnabled() || tool.IsLocalID(id) {
		return on, nil
	}
	on, err = r.remote.IsFavorite(ctx, id)
	if err != nil {
		r.remoteFailed("is_favorite", id, err)
		return false, nil
	}
	return on, nil
}

// Recent returns the device-local recency list.
func (r *Repository) Recent(ctx context.Context, limit int) ([]tool.Meta, error) {
	return r.local.Recent(ctx, limit)
}

// ─── Writes ─────────────────────────────────────────────────────────────────

// Save writes locally first. When the remote leg succeeds its meta is
// returned and the local record is re-keyed to the remote id; otherwise
// the local meta is returned and sync retries later.
func (r *Repository) Save(ctx context.Context, def tool.Definition, meta tool.SaveMeta) (tool.Meta, error) {
	localMeta, err := r.local.Save(ctx, def, meta)
	if err != nil {
		return tool.Meta{}, err
	}
	if !r.remoteEnabled() {
		return localMeta, nil
	}

	remoteMeta := meta
	if tool.IsLocalID(remoteMeta.ID) {
		remoteMeta.ID = ""
	}
	saved, err := r.remote.Save(ctx, def, remoteMeta)
	if err != nil {
		r.remoteFailed("save", localMeta.ID, err)
		return localMeta, nil
	}

	rec := tool.Record{
		ID:         saved.ID,
		Definition: def,
		Owner:      saved.Owner,
		OwnerMeta: tool.OwnerMeta{
			Name:      saved.Name,
			UpdatedAt: saved.UpdatedAt,
			IsPublic:  saved.IsPublic,
		},
	}
	if _, err := r.local.Replace(ctx, localMeta.ID, rec); err != nil {
		// The local copy under its old id is still durable.
		r.logger.Warn("re-key after remote save failed",
			zap.String("local_id", localMeta.ID),
			zap.String("remote_id", saved.ID),
			zap.Error(err),
		)
	}
	return saved, nil
}

// Delete attempts both legs; only a local failure is returned.
func (r *Repository) Delete(ctx context.Context, id string) error {
	l := r.newLegs("delete", id)
	l.attempt(legLocal, func() error { return r.local.Delete(ctx, id) })
	if r.remoteEnabled() && !tool.IsLocalID(id) {
		l.attempt(legRemote, func() error {
			err := r.remote.Delete(ctx, id)
			if errors.Is(err, tool.ErrNotFound) {
				return nil
			}
			return err
		})
	} else {
		l.skip(legRemote)
	}
	return l.err()
}

// Favorite attempts both legs; only a local failure is returned.
func (r *Repository) Favorite(ctx context.Context, id string, on bool) error {
	l := r.newLegs("favorite", id)
	l.attempt(legLocal, func() error { return r.local.Favorite(ctx, id, on) })
	if r.remoteEnabled() && !tool.IsLocalID(id) {
		l.attempt(legRemote, func() error { return r.remote.Favorite(ctx, id, on) })
	} else {
		l.skip(legRemote)
	}
	return l.err()
}
