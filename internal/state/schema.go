// Package state provides the SQLite-backed sync state store: one record per
// synced item, the selected courses and a small settings table.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/coursevault/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_state (
	kind               TEXT NOT NULL,
	item_id            TEXT NOT NULL,
	course_id          TEXT NOT NULL DEFAULT '',
	file_path          TEXT NOT NULL UNIQUE,
	content_hash       TEXT NOT NULL,
	pending_hash       TEXT NOT NULL DEFAULT '',
	source_modified_at TEXT NOT NULL DEFAULT '',
	synced_at          TEXT NOT NULL,
	PRIMARY KEY (kind, item_id)
);

CREATE INDEX IF NOT EXISTS idx_sync_course ON sync_state(course_id);

CREATE TABLE IF NOT EXISTS selected_courses (
	course_id   TEXT PRIMARY KEY,
	course_name TEXT NOT NULL,
	course_code TEXT NOT NULL DEFAULT '',
	selected_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB wraps a sql.DB with state-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Every failure wraps apperr.ErrStoreUnavailable.
func Open(dsn string) (*DB, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("state: create db dir: %w: %w", apperr.ErrStoreUnavailable, err)
		}
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("state: open db: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	// A single connection serialises every get/put pair issued by the engine.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: ping: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: apply schema: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
