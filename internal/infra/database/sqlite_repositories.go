package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
	"birthday_notification_bot/internal/domain/user"
)

// SQLite implementations of the three repositories. Query shape mirrors the
// postgres repositories; timestamps are always written from Go because
// SQLite's CURRENT_TIMESTAMP yields bare strings that don't scan as time.Time.

type SQLiteUserRepository struct {
	db              *sql.DB
	defaultTimezone string
}

func NewSQLiteUserRepository(db *sql.DB, defaultTimezone string) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db, defaultTimezone: defaultTimezone}
}

func (r *SQLiteUserRepository) Ensure(ctx context.Context, id int64, username, firstName string) (*user.User, error) {
	query := `INSERT INTO users (id, username, first_name, timezone, created_at)
               VALUES (?, ?, ?, ?, ?)
               ON CONFLICT (id) DO UPDATE
               SET username = COALESCE(excluded.username, users.username),
                   first_name = COALESCE(excluded.first_name, users.first_name)`
	if _, err := r.db.ExecContext(ctx, query, id, nullString(username), nullString(firstName), r.defaultTimezone, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("error ensuring user: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT id, username, first_name, is_superadmin, timezone, created_at, is_deleted, deleted_at
               FROM users WHERE id = ?`
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.FirstName, &u.IsSuperadmin, &u.Timezone, &u.CreatedAt, &u.IsDeleted, &u.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *SQLiteUserRepository) SetTimezone(ctx context.Context, id int64, timezone string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET timezone = ? WHERE id = ?`, timezone, id)
	if err != nil {
		return fmt.Errorf("error setting user timezone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLiteUserRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_deleted = 1, deleted_at = ? WHERE id = ? AND is_deleted = 0`, at, id)
	if err != nil {
		return fmt.Errorf("error soft-deleting user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a repeat delete (no-op) from a missing row.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteUserRepository) ListActive(ctx context.Context) ([]*user.User, error) {
	query := `SELECT id, username, first_name, is_superadmin, timezone, created_at, is_deleted, deleted_at
               FROM users WHERE is_deleted = 0 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active users: %w", err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u := &user.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.IsSuperadmin, &u.Timezone, &u.CreatedAt, &u.IsDeleted, &u.DeletedAt); err != nil {
			return nil, fmt.Errorf("error scanning active user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active users: %w", err)
	}
	return users, nil
}

type SQLiteBirthdayRepository struct {
	db *sql.DB
}

func NewSQLiteBirthdayRepository(db *sql.DB) *SQLiteBirthdayRepository {
	return &SQLiteBirthdayRepository{db: db}
}

func (r *SQLiteBirthdayRepository) Create(ctx context.Context, rec *birthday.Record) error {
	now := time.Now().UTC()
	query := `INSERT INTO birthdays (user_id, name, birth_year, birth_month, birth_day, category, image_url, notes, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		rec.OwnerID, rec.Name, nullYear(rec.Birthdate.Year), int(rec.Birthdate.Month), rec.Birthdate.Day,
		rec.Category, rec.ImageURL, rec.Note, now, now,
	)
	if err != nil {
		return fmt.Errorf("error creating birthday record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading new birthday record id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

func (r *SQLiteBirthdayRepository) GetByID(ctx context.Context, id int64) (*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays WHERE id = ?`
	rec, err := scanBirthdayRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBirthdayNotFound
		}
		return nil, fmt.Errorf("error getting birthday record by ID: %w", err)
	}
	return rec, nil
}

func (r *SQLiteBirthdayRepository) Update(ctx context.Context, rec *birthday.Record) error {
	now := time.Now().UTC()
	query := `UPDATE birthdays
               SET name = ?, birth_year = ?, birth_month = ?, birth_day = ?,
                   category = ?, image_url = ?, notes = ?, updated_at = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		rec.Name, nullYear(rec.Birthdate.Year), int(rec.Birthdate.Month), rec.Birthdate.Day,
		rec.Category, rec.ImageURL, rec.Note, now, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating birthday record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBirthdayNotFound
	}
	rec.UpdatedAt = now
	return nil
}

func (r *SQLiteBirthdayRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE birthdays SET is_deleted = 1, deleted_at = ? WHERE id = ? AND is_deleted = 0`,
		at, id)
	if err != nil {
		return fmt.Errorf("error soft-deleting birthday record: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM birthdays WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking birthday record existence: %w", err)
	}
	if !exists {
		return ErrBirthdayNotFound
	}
	return nil
}

func (r *SQLiteBirthdayRepository) Restore(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE birthdays SET is_deleted = 0, deleted_at = NULL, updated_at = ? WHERE id = ? AND is_deleted = 1`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("error restoring birthday record: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM birthdays WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking birthday record existence: %w", err)
	}
	if !exists {
		return ErrBirthdayNotFound
	}
	return ErrBirthdayNotDeleted
}

func (r *SQLiteBirthdayRepository) ListActive(ctx context.Context, ownerID int64) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE user_id = ? AND is_deleted = 0 ORDER BY birth_month, birth_day, name`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing active birthday records: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

func (r *SQLiteBirthdayRepository) ListAll(ctx context.Context, ownerID int64, includeDeleted bool) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE user_id = ? AND (is_deleted = 0 OR ?) ORDER BY birth_month, birth_day, name`
	rows, err := r.db.QueryContext(ctx, query, ownerID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("error listing birthday records: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

func (r *SQLiteBirthdayRepository) ListAllUsersActive(ctx context.Context) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE is_deleted = 0 ORDER BY user_id, birth_month, birth_day`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing cross-user active birthday records: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

func (r *SQLiteBirthdayRepository) FindByName(ctx context.Context, ownerID int64, name string, deleted bool) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE user_id = ? AND LOWER(name) = LOWER(?) AND is_deleted = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, ownerID, name, deleted)
	if err != nil {
		return nil, fmt.Errorf("error finding birthday records by name: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

type SQLiteDeliveryRepository struct {
	db *sql.DB
}

func NewSQLiteDeliveryRepository(db *sql.DB) *SQLiteDeliveryRepository {
	return &SQLiteDeliveryRepository{db: db}
}

func (r *SQLiteDeliveryRepository) Exists(ctx context.Context, birthdayID int64, job delivery.JobType, periodKey string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM delivery_markers WHERE birthday_id = ? AND job_type = ? AND period_key = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, birthdayID, job, periodKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking delivery marker: %w", err)
	}
	return exists, nil
}

func (r *SQLiteDeliveryRepository) Create(ctx context.Context, m *delivery.Marker) error {
	query := `INSERT INTO delivery_markers (birthday_id, job_type, period_key, sent_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, m.BirthdayID, m.Job, m.PeriodKey, m.SentAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateMarker
		}
		return fmt.Errorf("error creating delivery marker: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

var (
	_ user.Repository     = (*SQLiteUserRepository)(nil)
	_ birthday.Repository = (*SQLiteBirthdayRepository)(nil)
	_ delivery.Repository = (*SQLiteDeliveryRepository)(nil)
)
