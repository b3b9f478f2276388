// Package db opens the canvass SQLite file and keeps its schema current.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// BusyTimeoutMillis is how long a writer waits on a locked database
// before failing with SQLITE_BUSY. Import, key management and the server
// can touch the same file at once.
const BusyTimeoutMillis = 5000

// DefaultPath returns ~/.canvass/canvass.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory for the canvass database: %w", err)
	}
	return filepath.Join(home, ".canvass", "canvass.db"), nil
}

// dsn puts the pragmas in the connection string so the driver applies them
// to every pooled connection, not just the first one.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(BusyTimeoutMillis))
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	q.Set("_synchronous", "NORMAL")
	return path + "?" + q.Encode()
}

// Open creates the parent directory if needed, opens the database and
// applies pending migrations.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening canvass database %s: %w", path, err)
	}

	if err := checkWAL(db); err != nil {
		return nil, closeAfter(db, err)
	}
	if err := migrate(db); err != nil {
		return nil, closeAfter(db, fmt.Errorf("migrating %s: %w", path, err))
	}
	return db, nil
}

// checkWAL fails when the file could not be switched to WAL, which happens
// on filesystems without shared memory support.
func checkWAL(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("reading journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("journal mode is %q, canvass needs wal", mode)
	}
	return nil
}

func closeAfter(db *sql.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w (closing: %v)", err, closeErr)
	}
	return err
}
