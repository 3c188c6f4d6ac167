package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Schema bootstrap. Tables are created on startup when missing; there is no
// migration history because the schema is additive-only so far.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT PRIMARY KEY,
		username      TEXT,
		first_name    TEXT,
		is_superadmin BOOLEAN NOT NULL DEFAULT FALSE,
		timezone      TEXT NOT NULL DEFAULT 'UTC',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_deleted    BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS birthdays (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id),
		name        TEXT NOT NULL,
		birth_year  INTEGER,
		birth_month INTEGER NOT NULL,
		birth_day   INTEGER NOT NULL,
		category    TEXT NOT NULL DEFAULT 'other',
		image_url   TEXT,
		notes       TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_deleted  BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_birthdays_owner_active ON birthdays (user_id, is_deleted)`,
	`CREATE TABLE IF NOT EXISTS delivery_markers (
		id          BIGSERIAL PRIMARY KEY,
		birthday_id BIGINT NOT NULL REFERENCES birthdays(id),
		job_type    TEXT NOT NULL,
		period_key  TEXT NOT NULL,
		sent_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT delivery_marker_unique UNIQUE (birthday_id, job_type, period_key)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY,
		username      TEXT,
		first_name    TEXT,
		is_superadmin INTEGER NOT NULL DEFAULT 0,
		timezone      TEXT NOT NULL DEFAULT 'UTC',
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_deleted    INTEGER NOT NULL DEFAULT 0,
		deleted_at    TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS birthdays (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id),
		name        TEXT NOT NULL,
		birth_year  INTEGER,
		birth_month INTEGER NOT NULL,
		birth_day   INTEGER NOT NULL,
		category    TEXT NOT NULL DEFAULT 'other',
		image_url   TEXT,
		notes       TEXT,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_deleted  INTEGER NOT NULL DEFAULT 0,
		deleted_at  TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_birthdays_owner_active ON birthdays (user_id, is_deleted)`,
	`CREATE TABLE IF NOT EXISTS delivery_markers (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		birthday_id INTEGER NOT NULL REFERENCES birthdays(id),
		job_type    TEXT NOT NULL,
		period_key  TEXT NOT NULL,
		sent_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (birthday_id, job_type, period_key)
	)`,
}

// Migrate creates missing tables and seeds the superadmin user row.
func Migrate(db *sql.DB, driver string, superadminID int64) error {
	var stmts []string
	switch driver {
	case DriverPostgres:
		stmts = postgresSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unknown database driver: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}

	if superadminID != 0 {
		var err error
		if driver == DriverPostgres {
			_, err = db.Exec(`INSERT INTO users (id, is_superadmin) VALUES ($1, TRUE) ON CONFLICT (id) DO NOTHING`, superadminID)
		} else {
			_, err = db.Exec(`INSERT OR IGNORE INTO users (id, is_superadmin, created_at) VALUES (?, 1, ?)`, superadminID, time.Now().UTC())
		}
		if err != nil {
			return fmt.Errorf("failed to seed superadmin user: %w", err)
		}
	}
	return nil
}
