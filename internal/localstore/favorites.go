package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HendryAvila/toolvault/internal/tool"
)

// ─── Favorites ───────────────────────────────────────────────────────────────

// Favorite sets or clears favorite membership for id. It does not require
// the record to exist, so remote ids can be favorited offline.
func (s *Store) Favorite(ctx context.Context, id string, on bool) error {
	var err error
	if on {
		_, err = s.execHook(ctx, s.db,
			`INSERT OR IGNORE INTO favorites (id, created_at) VALUES (?, ?)`,
			id, formatTime(timeNow()),
		)
	} else {
		_, err = s.execHook(ctx, s.db, `DELETE FROM favorites WHERE id = ?`, id)
	}
	if err != nil {
		return fmt.Errorf("localstore: favorite %s: %w", id, err)
	}
	return nil
}

// IsFavorite reports whether id is a favorite.
func (s *Store) IsFavorite(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM favorites WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("localstore: is favorite %s: %w", id, err)
	}
	return true, nil
}

// Favorites returns every favorite id, oldest first.
func (s *Store) Favorites(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT id FROM favorites ORDER BY created_at, id`)
}

// ─── Recency ─────────────────────────────────────────────────────────────────

// touchRecent records id as just opened and prunes entries beyond the
// configured limit.
func (s *Store) touchRecent(ctx context.Context, id string) error {
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO recents (id, opened_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET opened_at = excluded.opened_at`,
		id, formatTime(timeNow()),
	); err != nil {
		return fmt.Errorf("localstore: record recent %s: %w", id, err)
	}
	if _, err := s.execHook(ctx, s.db,
		`DELETE FROM recents WHERE id NOT IN (
			SELECT id FROM recents ORDER BY opened_at DESC, id LIMIT ?
		 )`,
		s.cfg.RecentLimit,
	); err != nil {
		return fmt.Errorf("localstore: prune recents: %w", err)
	}
	return nil
}

// Recent returns summaries of the most recently opened tools, newest
// first. Recency entries whose record is gone are skipped.
func (s *Store) Recent(ctx context.Context, limit int) ([]tool.Meta, error) {
	if limit <= 0 || limit > s.cfg.RecentLimit {
		limit = s.cfg.RecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.summary, t.definition, t.content_hash, t.owner, t.is_public, t.updated_at
		 FROM recents r JOIN tools t ON t.id = r.id
		 ORDER BY r.opened_at DESC, r.id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("localstore: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metas []tool.Meta
	for rows.Next() {
		rec, hash, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("localstore: recent: %w", err)
		}
		metas = append(metas, metaFromRecord(rec, hash))
	}
	return metas, rows.Err()
}

// ─── Settings ────────────────────────────────────────────────────────────────

// Setting returns a persisted setting and whether it was present.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting persists a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("localstore: set setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("localstore: query ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
