package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/toolvault/internal/metrics"
	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/repository"
	"github.com/HendryAvila/toolvault/internal/tool"
)

// Sync trigger names, used in logs and metrics.
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
	TriggerRetry  = "retry"
)

// Sync runs one reconciliation. It is rejected without any state change
// when local-only mode is on, when another sync is running, or when the
// cloud store is unreachable. A started sync is not cancellable: ctx
// values are kept but its cancellation is ignored.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	return e.sync(ctx, TriggerManual)
}

func (e *Engine) sync(ctx context.Context, trigger string) (Result, error) {
	remoteStore, err := e.acquire(ctx)
	if err != nil {
		e.cfg.Metrics.ObserveSync(metrics.OutcomeRejected, trigger, 0, 0, 0)
		return Result{}, err
	}
	// A failed sync arms its retry only after releasing the flag.
	var retryIn time.Duration
	defer func() {
		e.running.Store(false)
		if retryIn > 0 {
			e.scheduleRetry(retryIn)
		}
	}()

	prev := e.State()
	e.update(func(s *State) { s.Status = StatusSyncing })

	start := timeNow()
	res, err := e.reconcile(context.WithoutCancel(ctx), e.src.Local(), remoteStore)
	elapsed := timeNow().Sub(start)

	if err != nil {
		e.logger.Warn("sync failed", zap.String("trigger", trigger), zap.Error(err))
		e.cfg.Metrics.ObserveSync(metrics.OutcomeError, trigger, res.Merged, res.Conflicts, elapsed)
		if trigger == TriggerAuto {
			// Auto-sync failures stay out of the UI.
			e.update(func(s *State) { *s = prev })
			return res, err
		}
		retryIn = e.markFailed(err)
		return res, err
	}

	now := timeNow().UTC()
	if perr := e.settings.SetSetting(context.WithoutCancel(ctx), settingLastSync, now.Format(time.RFC3339Nano)); perr != nil {
		e.logger.Warn("persist last sync failed", zap.Error(perr))
	}
	e.cancelRetry()
	e.mu.Lock()
	e.backoff.Reset()
	e.mu.Unlock()

	status, outcome := StatusSuccess, metrics.OutcomeSuccess
	if res.Conflicts > 0 {
		status, outcome = StatusConflict, metrics.OutcomeConflict
	}
	e.update(func(s *State) {
		s.Status = status
		s.LastSync = now
		s.LastResult = &res
		s.LastError = ""
		s.Failures = 0
		s.RetryIn = 0
		s.NextRetryAt = time.Time{}
	})
	e.cfg.Metrics.ObserveSync(outcome, trigger, res.Merged, res.Conflicts, elapsed)
	e.logger.Info("sync finished",
		zap.String("trigger", trigger),
		zap.Int("local", res.LocalCount),
		zap.Int("cloud", res.CloudCount),
		zap.Int("merged", res.Merged),
		zap.Int("conflicts", res.Conflicts),
	)
	return res, nil
}

// acquire checks the rejection rules and takes the running flag.
func (e *Engine) acquire(ctx context.Context) (remote.Store, error) {
	if e.src.LocalOnly() {
		return nil, ErrLocalOnly
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	remoteStore := e.src.Remote()
	if remoteStore == nil || !e.src.IsCloudAvailable(ctx) {
		e.running.Store(false)
		return nil, ErrCloudUnavailable
	}
	return remoteStore, nil
}

// ─── Reconciliation ─────────────────────────────────────────────────────────

func (e *Engine) reconcile(ctx context.Context, local repository.Local, rem remote.Store) (Result, error) {
	var localMetas, remoteMetas []tool.Meta
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		localMetas, err = local.List(gctx, tool.ListParams{})
		if err != nil {
			return fmt.Errorf("list local: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		remoteMetas, err = rem.List(gctx, tool.ListParams{})
		if err != nil {
			return fmt.Errorf("list remote: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{LocalCount: len(localMetas), CloudCount: len(remoteMetas)}
	localByHash := newestByHash(localMetas)
	localByID := make(map[string]tool.Meta, len(localMetas))
	for _, m := range localMetas {
		localByID[m.ID] = m
	}
	remoteByHash := newestByHash(remoteMetas)

	hashes := make([]string, 0, len(remoteByHash))
	for h := range remoteByHash {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	for _, h := range hashes {
		rm := remoteByHash[h]
		// Downloads land under rm.ID. A local record already there that is
		// newer than rm is an independent edit; never overwrite it.
		if same, exists := localByID[rm.ID]; exists && same.UpdatedAt.After(rm.UpdatedAt) {
			if err := e.conflict(ctx, local, rem, same, rm, &res); err != nil {
				return res, err
			}
			continue
		}
		lm, ok := localByHash[h]
		if !ok {
			if err := e.download(ctx, local, rem, "", rm.ID); err != nil {
				return res, err
			}
			res.Merged++
			continue
		}

		switch {
		case rm.UpdatedAt.After(lm.UpdatedAt):
			if err := e.download(ctx, local, rem, lm.ID, rm.ID); err != nil {
				return res, err
			}
			res.Merged++
		case lm.UpdatedAt.After(rm.UpdatedAt):
			if err := e.conflict(ctx, local, rem, lm, rm, &res); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// download fetches remoteID and stores it locally, replacing localID when
// set.
func (e *Engine) download(ctx context.Context, local repository.Local, rem remote.Store, localID, remoteID string) error {
	rec, err := rem.Get(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("download %s: %w", remoteID, err)
	}
	if localID == "" {
		_, err = local.Put(ctx, rec)
	} else {
		_, err = local.Replace(ctx, localID, rec)
	}
	if err != nil {
		return fmt.Errorf("store %s locally: %w", remoteID, err)
	}
	return nil
}

// conflict handles a pair whose local copy is strictly newer.
func (e *Engine) conflict(ctx context.Context, local repository.Local, rem remote.Store, lm, rm tool.Meta, res *Result) error {
	decision := DecisionReport
	if e.cfg.Resolver != nil {
		decision = e.cfg.Resolver.Resolve(ctx, Conflict{Local: lm, Remote: rm})
	}

	switch decision {
	case DecisionTakeRemote:
		if err := e.download(ctx, local, rem, lm.ID, rm.ID); err != nil {
			return err
		}
		res.Merged++
	case DecisionKeepLocal:
		if err := e.upload(ctx, local, rem, lm.ID, rm.ID); err != nil {
			return err
		}
		res.Merged++
	default:
		e.logger.Info("conflict left for review",
			zap.String("local_id", lm.ID),
			zap.String("remote_id", rm.ID),
			zap.String("hash", lm.ContentHash),
		)
		res.Conflicts++
		res.ConflictIDs = append(res.ConflictIDs, lm.ID)
	}
	return nil
}

// upload pushes the local record over the remote one and re-keys the
// local copy to the remote id with the remote timestamp.
func (e *Engine) upload(ctx context.Context, local repository.Local, rem remote.Store, localID, remoteID string) error {
	rec, err := local.Peek(ctx, localID)
	if err != nil {
		return fmt.Errorf("read %s: %w", localID, err)
	}
	saved, err := rem.Save(ctx, rec.Definition, tool.SaveMeta{
		ID:       remoteID,
		Name:     rec.OwnerMeta.Name,
		IsPublic: rec.OwnerMeta.IsPublic,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", localID, err)
	}
	if _, err := local.Replace(ctx, localID, adopt(rec, saved)); err != nil {
		return fmt.Errorf("re-key %s: %w", localID, err)
	}
	return nil
}

// ImportLocalDrafts pushes every local-provenance record to the remote
// store. A failing record is logged and skipped. It returns how many were
// imported.
func (e *Engine) ImportLocalDrafts(ctx context.Context) (int, error) {
	rem, err := e.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer e.running.Store(false)
	ctx = context.WithoutCancel(ctx)
	local := e.src.Local()

	metas, err := local.List(ctx, tool.ListParams{})
	if err != nil {
		return 0, fmt.Errorf("reconcile: import drafts: %w", err)
	}

	imported := 0
	for _, m := range metas {
		if !tool.IsLocalID(m.ID) {
			continue
		}
		rec, err := local.Peek(ctx, m.ID)
		if err != nil {
			e.logger.Warn("draft unreadable", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		saved, err := rem.Save(ctx, rec.Definition, tool.SaveMeta{Name: rec.OwnerMeta.Name, IsPublic: rec.OwnerMeta.IsPublic})
		if err != nil {
			e.logger.Warn("draft import failed", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		imported++
		if _, err := local.Replace(ctx, m.ID, adopt(rec, saved)); err != nil {
			e.logger.Warn("draft re-key failed",
				zap.String("id", m.ID),
				zap.String("remote_id", saved.ID),
				zap.Error(err),
			)
		}
	}
	e.cfg.Metrics.DraftsImported(imported)
	e.logger.Info("drafts imported", zap.Int("count", imported))
	return imported, nil
}

// adopt returns rec under the identity the remote store assigned.
func adopt(rec tool.Record, saved tool.Meta) tool.Record {
	rec.ID = saved.ID
	rec.Owner = saved.Owner
	rec.OwnerMeta = tool.OwnerMeta{
		Name:      saved.Name,
		UpdatedAt: saved.UpdatedAt,
		IsPublic:  saved.IsPublic,
	}
	return rec
}

// newestByHash keeps one meta per content hash: the latest, and the
// smallest id on a tie.
func newestByHash(metas []tool.Meta) map[string]tool.Meta {
	out := make(map[string]tool.Meta, len(metas))
	for _, m := range metas {
		cur, ok := out[m.ContentHash]
		if !ok || m.UpdatedAt.After(cur.UpdatedAt) ||
			(m.UpdatedAt.Equal(cur.UpdatedAt) && m.ID < cur.ID) {
			out[m.ContentHash] = m
		}
	}
	return out
}
