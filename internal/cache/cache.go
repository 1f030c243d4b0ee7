// Package cache persists per-file parse results in SQLite so the index can
// rebuild without re-parsing files that are provably unchanged.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/task"
)

// SchemaVersion gates the whole cache: a stored version that differs from
// this value wipes every entry and forces a full re-parse. The mismatch is
// never surfaced as an error.
const SchemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	path    TEXT PRIMARY KEY,
	mtime   INTEGER NOT NULL,
	hash    TEXT NOT NULL,
	records TEXT NOT NULL DEFAULT '[]',
	errors  TEXT NOT NULL DEFAULT '[]'
);
`

// Entry is the persisted record for one vault file. An entry is
// trustworthy only while its ModTime or Hash still matches the live file.
type Entry struct {
	Path    string
	ModTime time.Time
	Hash    string
	Records []task.Record
	Errors  []task.ParseError
}

// DB wraps a sql.DB with cache-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the cache database, applies the schema, and
// resets the cache transparently when the stored schema version does not
// match SchemaVersion.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}

	var stored int
	err = conn.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stored = -1
	case err != nil:
		conn.Close()
		return nil, fmt.Errorf("cache: read schema version: %w", err)
	}
	if stored != SchemaVersion {
		if _, err := conn.Exec(`DELETE FROM files`); err != nil {
			conn.Close()
			return nil, fmt.Errorf("cache: reset: %w", err)
		}
		if _, err := conn.Exec(`
			INSERT INTO meta (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, SchemaVersion); err != nil {
			conn.Close()
			return nil, fmt.Errorf("cache: write schema version: %w", err)
		}
	}

	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the cached entry for path, or nil when none exists.
func (db *DB) Get(path string) (*Entry, error) {
	var (
		mtime            int64
		hash             string
		recJSON, errJSON string
	)
	err := db.conn.QueryRow(
		`SELECT mtime, hash, records, errors FROM files WHERE path = ?`, path,
	).Scan(&mtime, &hash, &recJSON, &errJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", path, err)
	}
	e := &Entry{Path: path, ModTime: time.Unix(0, mtime), Hash: hash}
	if err := json.Unmarshal([]byte(recJSON), &e.Records); err != nil {
		return nil, fmt.Errorf("cache: decode records %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(errJSON), &e.Errors); err != nil {
		return nil, fmt.Errorf("cache: decode errors %s: %w", path, err)
	}
	return e, nil
}

// Put inserts or replaces the entry for a file.
func (db *DB) Put(e Entry) error {
	recJSON, err := json.Marshal(e.Records)
	if err != nil {
		return fmt.Errorf("cache: encode records %s: %w", e.Path, err)
	}
	errJSON, err := json.Marshal(e.Errors)
	if err != nil {
		return fmt.Errorf("cache: encode errors %s: %w", e.Path, err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO files (path, mtime, hash, records, errors)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime   = excluded.mtime,
			hash    = excluded.hash,
			records = excluded.records,
			errors  = excluded.errors
	`, e.Path, e.ModTime.UnixNano(), e.Hash, string(recJSON), string(errJSON))
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", e.Path, err)
	}
	return nil
}

// Touch refreshes the stored modification time without re-writing records.
// Used for files that were touched on disk but whose content is unchanged.
func (db *DB) Touch(path string, mtime time.Time) error {
	_, err := db.conn.Exec(`UPDATE files SET mtime = ? WHERE path = ?`, mtime.UnixNano(), path)
	if err != nil {
		return fmt.Errorf("cache: touch %s: %w", path, err)
	}
	return nil
}

// Delete removes the entry for a file.
func (db *DB) Delete(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("cache: delete %s: %w", path, err)
	}
	return nil
}

// Rename relocates an entry to a new path, replacing any entry already
// stored there.
func (db *DB) Rename(oldPath, newPath string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin rename tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, newPath); err != nil {
		return fmt.Errorf("cache: rename clear %s: %w", newPath, err)
	}
	if _, err := tx.Exec(`UPDATE files SET path = ? WHERE path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("cache: rename %s -> %s: %w", oldPath, newPath, err)
	}
	return tx.Commit()
}

// AllPaths returns every cached file path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM files`)
	if err != nil {
		return nil, fmt.Errorf("cache: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}
