package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver (cgo-free)
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// Driver names returned by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the database named by dataSourceURL and returns the
// connection together with the resolved driver name. `postgres://` (or
// `postgresql://`) selects PostgreSQL; `sqlite://path` or a bare file path
// selects SQLite.
func Open(dataSourceURL string) (*sql.DB, string, error) {
	switch {
	case strings.HasPrefix(dataSourceURL, "postgres://"), strings.HasPrefix(dataSourceURL, "postgresql://"):
		db, err := newPostgresConnection(dataSourceURL)
		return db, DriverPostgres, err
	case strings.HasPrefix(dataSourceURL, "sqlite://"):
		db, err := newSQLiteConnection(strings.TrimPrefix(dataSourceURL, "sqlite://"))
		return db, DriverSQLite, err
	case dataSourceURL != "":
		db, err := newSQLiteConnection(dataSourceURL)
		return db, DriverSQLite, err
	default:
		return nil, "", fmt.Errorf("DATABASE_URL is empty")
	}
}

func newPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func newSQLiteConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite prefers a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set sqlite journal mode: %w", err)
	}
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}
