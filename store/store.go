// Package store persists the state that survives between runs: the content
// fingerprint of the last fetched page and the last resolved snapshot, in a
// single sqlite database. Keeping whole events (not just identifiers) is
// what makes end-only time changes detectable across runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rockcal/rockcal/schema"
)

const ddl = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	pos INTEGER NOT NULL,
	name TEXT NOT NULL,
	start_at TEXT NOT NULL, -- RFC 3339, schedule timezone offset
	end_at TEXT NOT NULL,
	venue TEXT NOT NULL DEFAULT '',
	theme TEXT NOT NULL DEFAULT ''
);
`

const (
	keyContentHash = "content_hash"
	keyFetchedAt   = "fetched_at"
)

// Store is the between-runs state database. The design assumes at most one
// run at a time against the same file.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

func setupConn(c *sqlite3.Conn) error {
	return c.Exec(`PRAGMA journal_mode = WAL`)
}

// Open opens (creating if needed) the state database at path. Loaded event
// times are returned in loc.
func Open(path string, loc *time.Location) (*Store, error) {
	db, err := driver.Open(path, setupConn)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize state db: %w", err)
	}
	return &Store{db: db, loc: loc}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only tooling (the exporter).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) meta(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// ContentHash returns the persisted page fingerprint, empty on first run.
func (s *Store) ContentHash() (string, error) {
	return s.meta(keyContentHash)
}

// Snapshot loads the previously persisted snapshot. It returns nil (and no
// error) when no snapshot has ever been saved, which callers treat as the
// first run.
func (s *Store) Snapshot() (*schema.Snapshot, error) {
	fetchedAt, err := s.meta(keyFetchedAt)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if fetchedAt == "" {
		return nil, nil
	}

	snap := &schema.Snapshot{}
	if snap.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt); err != nil {
		return nil, fmt.Errorf("load snapshot: parse fetched_at: %w", err)
	}
	snap.FetchedAt = snap.FetchedAt.In(s.loc)
	if snap.ContentHash, err = s.meta(keyContentHash); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	rows, err := s.db.Query(`SELECT id, name, start_at, end_at, venue, theme FROM events ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e schema.Event
		var start, end string
		if err := rows.Scan(&e.ID, &e.Name, &start, &end, &e.Venue, &e.Theme); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if e.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("load snapshot: event %s: %w", e.ID, err)
		}
		if e.End, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("load snapshot: event %s: %w", e.ID, err)
		}
		e.Start = e.Start.In(s.loc)
		e.End = e.End.In(s.loc)
		snap.Events = append(snap.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// Save replaces the persisted snapshot and fingerprint in one transaction.
func (s *Store) Save(snap *schema.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	for i, e := range snap.Events {
		if _, err := tx.Exec(
			`INSERT INTO events (id, pos, name, start_at, end_at, venue, theme) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, i, e.Name,
			e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339),
			e.Venue, e.Theme,
		); err != nil {
			return fmt.Errorf("save snapshot: event %s: %w", e.ID, err)
		}
	}
	for _, kv := range [][2]string{
		{keyContentHash, snap.ContentHash},
		{keyFetchedAt, snap.FetchedAt.Format(time.RFC3339)},
	} {
		if _, err := tx.Exec(
			`INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			kv[0], kv[1],
		); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	return tx.Commit()
}
