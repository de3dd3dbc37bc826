package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

// ConnectDB opens (or creates) the SQLite database at dbPath and runs
// migrations. A single connection avoids SQLITE_BUSY churn under the
// write patterns this app has.
func ConnectDB(dbPath string) (*sqlx.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

// ConnectMemory creates an in-memory database for testing.
func ConnectMemory() (*sqlx.DB, error) {
	return ConnectDB(":memory:")
}

func migrate(conn *sqlx.DB) error {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := migrateV1(conn); err != nil {
			return err
		}
	}

	_, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func migrateV1(conn *sqlx.DB) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS items (
		id                 TEXT PRIMARY KEY,
		owner              TEXT NOT NULL,
		kind               TEXT NOT NULL,
		description        TEXT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'pending',
		project            TEXT,
		estimated_minutes  INTEGER,
		due_date           TEXT,
		date               TEXT,
		time_of_day        TEXT,
		event_id           TEXT,
		synced_to_calendar INTEGER NOT NULL DEFAULT 0,
		sessions_planned   INTEGER NOT NULL DEFAULT 0,
		sessions_completed INTEGER NOT NULL DEFAULT 0,
		completed_at       TEXT,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_owner_status ON items(owner, status);
	CREATE INDEX IF NOT EXISTS idx_items_owner_due    ON items(owner, due_date);

	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL REFERENCES items(id),
		owner      TEXT NOT NULL,
		start_at   TEXT NOT NULL,
		end_at     TEXT NOT NULL,
		event_id   TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_owner_start ON sessions(owner, start_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_task        ON sessions(task_id);

	CREATE TABLE IF NOT EXISTS preferences (
		owner                TEXT PRIMARY KEY,
		timezone             TEXT NOT NULL,
		working_days         TEXT NOT NULL,
		work_start_minutes   INTEGER NOT NULL,
		work_end_minutes     INTEGER NOT NULL,
		session_minutes      INTEGER NOT NULL,
		language             TEXT NOT NULL,
		calendar_status      TEXT NOT NULL,
		morning_summary_time TEXT NOT NULL DEFAULT '',
		evening_summary_time TEXT NOT NULL DEFAULT '',
		last_morning_trigger TEXT NOT NULL DEFAULT '',
		last_evening_trigger TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := conn.Exec(ddl); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	return nil
}
