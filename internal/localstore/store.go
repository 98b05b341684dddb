// Package localstore implements the on-device tool store.
//
// It is the sole source of truth while offline and a cache of remote truth
// while online. Records, favorites, the recency index and a small settings
// table live in one SQLite database opened in WAL mode.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds local store configuration.
type Config struct {
	DataDir     string
	RecentLimit int
}

// DefaultConfig returns the default configuration for the local store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:     filepath.Join(home, ".toolvault"),
		RecentLimit: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed local tool store.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// storeHooks let tests inject storage failures such as a full disk.
type storeHooks struct {
	exec func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

// New creates a Store, creating the data directory if needed, opening
// SQLite with WAL mode and running migrations.
func New(cfg Config) (*Store, error) {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultConfig().RecentLimit
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("localstore: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "tools.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("localstore: open database: %w", err)
	}
	// One writer per device.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("localstore: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localstore: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tools (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			summary      TEXT NOT NULL DEFAULT '',
			definition   TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			owner        TEXT NOT NULL DEFAULT '',
			is_public    INTEGER NOT NULL DEFAULT 0,
			updated_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tools_hash ON tools(content_hash);
		CREATE INDEX IF NOT EXISTS idx_tools_updated ON tools(updated_at DESC);

		CREATE TABLE IF NOT EXISTS favorites (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recents (
			id        TEXT PRIMARY KEY,
			opened_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_recents_opened ON recents(opened_at DESC);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Time ────────────────────────────────────────────────────────────────────

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// timeLayout is fixed-width so that string order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}
