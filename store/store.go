// Package store persists the last-seen snapshot per tracked page in SQLite.
//
// One row per page, keyed by a stable hash of the canonical URL so state
// survives restarts without filesystem-unsafe characters leaking into keys.
// Single process, sequential access, single writer: no locking. If checks
// are ever parallelized, per-key serialization must be added first.
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	st, err := store.Open("dropwatch.db")
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS page_state (
	page_key    TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	available   INTEGER NOT NULL,
	fingerprint TEXT NOT NULL,
	items       TEXT NOT NULL DEFAULT '[]',
	checked_at  INTEGER NOT NULL
);
`

// State is the persisted snapshot for one tracked page.
type State struct {
	URL         string
	Available   bool
	Fingerprint string
	Items       []string
	CheckedAt   time.Time
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the state database at path with the
// production-safe pragmas, applies the schema, and returns the Store.
// The caller must blank-import modernc.org/sqlite.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("store: open memory: %w", err)
	}
	// Single connection so the in-memory database is shared by all callers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// KeyForURL derives the stable page key for a canonical URL.
func KeyForURL(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h)
}

// Load returns the persisted state for pageKey, or (nil, nil) when the page
// has never been seen — the caller treats absence as "previously
// unavailable, no fingerprint".
func (s *Store) Load(ctx context.Context, pageKey string) (*State, error) {
	var (
		st        State
		available int
		items     string
		checkedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT url, available, fingerprint, items, checked_at
		FROM page_state WHERE page_key = ?`, pageKey).
		Scan(&st.URL, &available, &st.Fingerprint, &items, &checkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", pageKey, err)
	}

	st.Available = available != 0
	st.CheckedAt = time.Unix(checkedAt, 0)
	if err := json.Unmarshal([]byte(items), &st.Items); err != nil {
		return nil, fmt.Errorf("store: decode items for %s: %w", pageKey, err)
	}
	return &st, nil
}

// Save overwrites the state for pageKey unconditionally. Called after every
// successful check, changed or not.
func (s *Store) Save(ctx context.Context, pageKey string, st State) error {
	items := st.Items
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: encode items: %w", err)
	}

	checkedAt := st.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO page_state (page_key, url, available, fingerprint, items, checked_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(page_key) DO UPDATE SET
			url = excluded.url,
			available = excluded.available,
			fingerprint = excluded.fingerprint,
			items = excluded.items,
			checked_at = excluded.checked_at`,
		pageKey, st.URL, boolInt(st.Available), st.Fingerprint, string(data), checkedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", pageKey, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
