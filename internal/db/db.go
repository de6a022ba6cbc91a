// Package db provides the field agent's local durable storage: the write
// queue, the visible day log, and small key-value preferences. Everything
// here survives a process restart but not a device reset.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps sql.DB with doorlog-specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the agent database under dataDir, creating it on first run.
// WAL mode and a single writer: the queue is mutated only by the sync
// engine and the cancel-in-place path, never concurrently.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "doorlog.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// schema is idempotent; applied on every open.
const schema = `
CREATE TABLE IF NOT EXISTS queue_ops (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	kind            TEXT NOT NULL,
	event_timestamp TEXT NOT NULL,
	payload         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	event_timestamp TEXT PRIMARY KEY,
	date            TEXT NOT NULL,
	street          TEXT NOT NULL,
	door            TEXT NOT NULL,
	is_first_entry  INTEGER NOT NULL DEFAULT 0,
	payload         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_date ON history(date);

CREATE TABLE IF NOT EXISTS prefs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`
