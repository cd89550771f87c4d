// Package store provides the sqlite-backed post/link state store.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS posts (
	id              INTEGER PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	creator         TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	post_type       TEXT NOT NULL,
	like_count      INTEGER NOT NULL DEFAULT 0,
	generated_title TEXT,
	created_at      TEXT
);

CREATE TABLE IF NOT EXISTS post_links (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	url               TEXT NOT NULL,
	content_type      TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL,
	post_id           INTEGER NOT NULL REFERENCES posts(id),
	status            TEXT NOT NULL DEFAULT 'pending',
	error             TEXT,
	file_path         TEXT,
	file_path_pattern TEXT
);

CREATE INDEX IF NOT EXISTS idx_post_links_post ON post_links(post_id);
`

// DB wraps a sql.DB with archive-specific operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the sqlite database at path and applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Backup writes a consistent snapshot of the database to dst using
// sqlite's VACUUM INTO, which is safe against concurrent writers.
func (db *DB) Backup(dst string) error {
	if _, err := db.conn.Exec(`VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("store: backup to %s: %w", dst, err)
	}
	return nil
}
