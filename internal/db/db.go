package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"osrs-flipper/internal/logger"
	_ "modernc.org/sqlite"
)

// DefaultFile is the database file name used when no path is configured.
const DefaultFile = "osrs-flipper.db"

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

func defaultPath() string {
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, DefaultFile)
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), DefaultFile)
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// An empty path selects DefaultFile next to the working directory.
func Open(path string) (*DB, error) {
	if path == "" {
		path = defaultPath()
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS prefs (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS cycle_history (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				cycle_id    TEXT NOT NULL,
				timestamp   TEXT NOT NULL,
				mode        TEXT NOT NULL,
				considered  INTEGER NOT NULL,
				built       INTEGER NOT NULL,
				count       INTEGER NOT NULL,
				top_profit  INTEGER NOT NULL,
				duration_ms INTEGER NOT NULL,
				fallback    INTEGER NOT NULL DEFAULT 0,
				diagnostic  TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_cycle_history_ts ON cycle_history(timestamp);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS alert_history (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id   INTEGER NOT NULL,
				item_name TEXT NOT NULL,
				signal    TEXT NOT NULL,
				roi       REAL NOT NULL,
				message   TEXT NOT NULL,
				channel   TEXT NOT NULL,
				error     TEXT NOT NULL DEFAULT '',
				cycle_id  TEXT NOT NULL DEFAULT '',
				sent_at   TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_alert_history_item ON alert_history(item_id, sent_at);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (alert history)")
	}

	return nil
}
