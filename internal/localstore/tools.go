package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/toolvault/internal/tool"
)

var _ tool.Store = (*Store)(nil)

const toolColumns = `id, name, summary, definition, content_hash, owner, is_public, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Get returns the record with the given id and records the id in the
// recency index. It returns tool.ErrNotFound if no record exists.
func (s *Store) Get(ctx context.Context, id string) (tool.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE id = ?`, id)
	rec, _, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tool.Record{}, fmt.Errorf("localstore: get %s: %w", id, tool.ErrNotFound)
	}
	if err != nil {
		return tool.Record{}, fmt.Errorf("localstore: get %s: %w", id, err)
	}

	if err := s.touchRecent(ctx, id); err != nil {
		return tool.Record{}, err
	}
	return rec, nil
}

// Peek is Get without the recency side effect, for background readers.
func (s *Store) Peek(ctx context.Context, id string) (tool.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE id = ?`, id)
	rec, _, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tool.Record{}, fmt.Errorf("localstore: peek %s: %w", id, tool.ErrNotFound)
	}
	if err != nil {
		return tool.Record{}, fmt.Errorf("localstore: peek %s: %w", id, err)
	}
	return rec, nil
}

// List returns summaries newest first. The query filter is a linear,
// case-insensitive substring match over name and summary.
func (s *Store) List(ctx context.Context, params tool.ListParams) ([]tool.Meta, error) {
	q := strings.ToLower(strings.TrimSpace(params.Query))
	query := `SELECT ` + toolColumns + ` FROM tools ORDER BY updated_at DESC, id`
	var args []any
	// SQLite's lower() folds ASCII only, so queries are matched in Go and
	// the limit can only go to SQL when there is nothing to filter.
	if q == "" && params.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, params.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("localstore: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metas []tool.Meta
	for rows.Next() {
		rec, hash, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("localstore: list: %w", err)
		}
		if q != "" && !matches(rec, q) {
			continue
		}
		metas = append(metas, metaFromRecord(rec, hash))
		if params.Limit > 0 && len(metas) == params.Limit {
			break
		}
	}
	return metas, rows.Err()
}

// matches reports whether the lowercased query q occurs in the record's
// name or summary.
func matches(rec tool.Record, q string) bool {
	return strings.Contains(strings.ToLower(rec.OwnerMeta.Name), q) ||
		strings.Contains(strings.ToLower(rec.Definition.Summary), q)
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// Save stores a definition. If meta.ID names an existing record it is
// overwritten in place with a fresh updatedAt; otherwise a new
// local-provenance id is minted. Identity is by id, not by content hash,
// so equal content under different ids stays as separate records.
func (s *Store) Save(ctx context.Context, def tool.Definition, meta tool.SaveMeta) (tool.Meta, error) {
	return s.save(ctx, def, meta, saveOptions{})
}

// saveOptions are the import-only knobs of save.
type saveOptions struct {
	// keepID keeps an unknown meta.ID instead of minting a new one.
	keepID bool
	// owner replaces the stored owner when set.
	owner string
}

func (s *Store) save(ctx context.Context, def tool.Definition, meta tool.SaveMeta, opts saveOptions) (tool.Meta, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tool.Meta{}, fmt.Errorf("localstore: save: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := meta.ID
	var prev time.Time
	var owner string
	exists := false
	if id != "" {
		var updated string
		err := tx.QueryRowContext(ctx, `SELECT updated_at, owner FROM tools WHERE id = ?`, id).Scan(&updated, &owner)
		switch {
		case err == nil:
			exists = true
			prev, _ = parseTime(updated)
		case errors.Is(err, sql.ErrNoRows):
		default:
			return tool.Meta{}, fmt.Errorf("localstore: save: lookup %s: %w", id, err)
		}
	}
	if !exists && (id == "" || !opts.keepID) {
		id = NewLocalID()
	}
	if opts.owner != "" {
		owner = opts.owner
	}

	name := meta.Name
	if name == "" {
		name = def.Name
	}
	rec := tool.Record{
		ID:         id,
		Definition: def,
		Owner:      owner,
		OwnerMeta: tool.OwnerMeta{
			Name:      name,
			UpdatedAt: nextUpdatedAt(prev),
			IsPublic:  meta.IsPublic,
		},
	}

	m, err := s.upsert(ctx, tx, rec)
	if err != nil {
		return tool.Meta{}, fmt.Errorf("localstore: save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return tool.Meta{}, fmt.Errorf("localstore: save: commit: %w", err)
	}
	return m, nil
}

// Put stores a record verbatim, keeping its id and updatedAt. It is the
// write path for records mirrored from the remote store.
func (s *Store) Put(ctx context.Context, rec tool.Record) (tool.Meta, error) {
	return s.Replace(ctx, rec.ID, rec)
}

// Replace swaps the record stored under oldID for rec in one transaction.
// Favorite and recency entries follow the record to its new id.
func (s *Store) Replace(ctx context.Context, oldID string, rec tool.Record) (tool.Meta, error) {
	if rec.ID == "" {
		return tool.Meta{}, errors.New("localstore: replace: record id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tool.Meta{}, fmt.Errorf("localstore: replace: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if oldID != "" && oldID != rec.ID {
		for _, stmt := range []string{
			`UPDATE OR REPLACE favorites SET id = ? WHERE id = ?`,
			`UPDATE OR REPLACE recents SET id = ? WHERE id = ?`,
		} {
			if _, err := s.execHook(ctx, tx, stmt, rec.ID, oldID); err != nil {
				return tool.Meta{}, fmt.Errorf("localstore: replace %s: %w", oldID, err)
			}
		}
		if _, err := s.execHook(ctx, tx, `DELETE FROM tools WHERE id = ?`, oldID); err != nil {
			return tool.Meta{}, fmt.Errorf("localstore: replace %s: %w", oldID, err)
		}
	}

	m, err := s.upsert(ctx, tx, rec)
	if err != nil {
		return tool.Meta{}, fmt.Errorf("localstore: replace %s: %w", oldID, err)
	}
	if err := tx.Commit(); err != nil {
		return tool.Meta{}, fmt.Errorf("localstore: replace: commit: %w", err)
	}
	return m, nil
}

// Delete removes a record and its favorite and recency entries. Deleting
// a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: delete: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM tools WHERE id = ?`,
		`DELETE FROM favorites WHERE id = ?`,
		`DELETE FROM recents WHERE id = ?`,
	} {
		if _, err := s.execHook(ctx, tx, stmt, id); err != nil {
			return fmt.Errorf("localstore: delete %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("localstore: delete: commit: %w", err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, db execer, rec tool.Record) (tool.Meta, error) {
	hash, err := rec.Definition.Hash()
	if err != nil {
		return tool.Meta{}, err
	}
	raw, err := json.Marshal(rec.Definition)
	if err != nil {
		return tool.Meta{}, fmt.Errorf("marshal definition: %w", err)
	}
	name := rec.OwnerMeta.Name
	if name == "" {
		name = rec.Definition.Name
		rec.OwnerMeta.Name = name
	}

	_, err = s.execHook(ctx, db,
		`INSERT INTO tools (`+toolColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			summary = excluded.summary,
			definition = excluded.definition,
			content_hash = excluded.content_hash,
			owner = excluded.owner,
			is_public = excluded.is_public,
			updated_at = excluded.updated_at`,
		rec.ID, name, rec.Definition.Summary, string(raw), hash,
		rec.Owner, rec.OwnerMeta.IsPublic, formatTime(rec.OwnerMeta.UpdatedAt),
	)
	if err != nil {
		return tool.Meta{}, err
	}
	return metaFromRecord(rec, hash), nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// NewLocalID mints a local-provenance id.
func NewLocalID() string {
	return tool.LocalIDPrefix + uuid.NewString()
}

// nextUpdatedAt returns now, nudged past prev so updatedAt never moves
// backward for an id even if the wall clock does.
func nextUpdatedAt(prev time.Time) time.Time {
	now := timeNow().UTC()
	if !prev.IsZero() && !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func scanRecord(row rowScanner) (tool.Record, string, error) {
	var (
		rec      tool.Record
		summary  string
		rawDef   string
		hash     string
		isPublic bool
		updated  string
	)
	if err := row.Scan(&rec.ID, &rec.OwnerMeta.Name, &summary, &rawDef, &hash, &rec.Owner, &isPublic, &updated); err != nil {
		return tool.Record{}, "", err
	}
	if err := json.Unmarshal([]byte(rawDef), &rec.Definition); err != nil {
		return tool.Record{}, "", fmt.Errorf("decode definition %s: %w", rec.ID, err)
	}
	ts, err := parseTime(updated)
	if err != nil {
		return tool.Record{}, "", fmt.Errorf("decode updated_at %s: %w", rec.ID, err)
	}
	rec.OwnerMeta.UpdatedAt = ts
	rec.OwnerMeta.IsPublic = isPublic
	return rec, hash, nil
}

func metaFromRecord(rec tool.Record, hash string) tool.Meta {
	return tool.Meta{
		ID:          rec.ID,
		Owner:       rec.Owner,
		Name:        rec.OwnerMeta.Name,
		ContentHash: hash,
		IsPublic:    rec.OwnerMeta.IsPublic,
		UpdatedAt:   rec.OwnerMeta.UpdatedAt,
		Source:      tool.SourceLocal,
	}
}
