// Package index provides the SQLite-backed note index and vocabulary dataset
// store, with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path         TEXT PRIMARY KEY,
	subject_type TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL DEFAULT '',
	checksum     TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	group_count  INTEGER NOT NULL DEFAULT 0,
	entry_count  INTEGER NOT NULL DEFAULT 0,
	needs_update INTEGER NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entries (
	path         TEXT NOT NULL,
	line_index   INTEGER NOT NULL,
	slug         TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '',
	meanings     TEXT NOT NULL DEFAULT '',
	not_included INTEGER NOT NULL DEFAULT 0,
	override     INTEGER NOT NULL DEFAULT 0,
	UNIQUE(path, line_index)
);

CREATE INDEX IF NOT EXISTS idx_entries_path ON entries(path);
CREATE INDEX IF NOT EXISTS idx_entries_slug ON entries(slug);

CREATE TABLE IF NOT EXISTS vocabulary (
	slug       TEXT PRIMARY KEY,
	readings   TEXT NOT NULL DEFAULT '[]',
	meanings   TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
