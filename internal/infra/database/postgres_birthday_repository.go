package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
)

const birthdayColumns = `id, user_id, name, birth_year, birth_month, birth_day, category,
image_url, notes, created_at, updated_at, is_deleted, deleted_at`

type PostgresBirthdayRepository struct {
	db *sql.DB
}

func NewPostgresBirthdayRepository(db *sql.DB) *PostgresBirthdayRepository {
	return &PostgresBirthdayRepository{db: db}
}

func (r *PostgresBirthdayRepository) Create(ctx context.Context, rec *birthday.Record) error {
	query := `INSERT INTO birthdays (user_id, name, birth_year, birth_month, birth_day, category, image_url, notes)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		rec.OwnerID, rec.Name, nullYear(rec.Birthdate.Year), int(rec.Birthdate.Month), rec.Birthdate.Day,
		rec.Category, rec.ImageURL, rec.Note,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating birthday record: %w", err)
	}
	return nil
}

func (r *PostgresBirthdayRepository) GetByID(ctx context.Context, id int64) (*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays WHERE id = $1`
	rec, err := scanBirthdayRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBirthdayNotFound
		}
		return nil, fmt.Errorf("error getting birthday record by ID: %w", err)
	}
	return rec, nil
}

func (r *PostgresBirthdayRepository) Update(ctx context.Context, rec *birthday.Record) error {
	query := `UPDATE birthdays
               SET name = $1, birth_year = $2, birth_month = $3, birth_day = $4,
                   category = $5, image_url = $6, notes = $7, updated_at = NOW()
               WHERE id = $8
               RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		rec.Name, nullYear(rec.Birthdate.Year), int(rec.Birthdate.Month), rec.Birthdate.Day,
		rec.Category, rec.ImageURL, rec.Note, rec.ID,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrBirthdayNotFound
		}
		return fmt.Errorf("error updating birthday record: %w", err)
	}
	return nil
}

func (r *PostgresBirthdayRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	// Only flips active rows so a repeated delete keeps the original deleted_at.
	res, err := r.db.ExecContext(ctx,
		`UPDATE birthdays SET is_deleted = TRUE, deleted_at = $2 WHERE id = $1 AND is_deleted = FALSE`,
		id, at)
	if err != nil {
		return fmt.Errorf("error soft-deleting birthday record: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM birthdays WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking birthday record existence: %w", err)
	}
	if !exists {
		return ErrBirthdayNotFound
	}
	return nil // already deleted, idempotent no-op
}

func (r *PostgresBirthdayRepository) Restore(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE birthdays SET is_deleted = FALSE, deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND is_deleted = TRUE`,
		id)
	if err != nil {
		return fmt.Errorf("error restoring birthday record: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM birthdays WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking birthday record existence: %w", err)
	}
	if !exists {
		return ErrBirthdayNotFound
	}
	return ErrBirthdayNotDeleted
}

func (r *PostgresBirthdayRepository) ListActive(ctx context.Context, ownerID int64) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE user_id = $1 AND is_deleted = FALSE ORDER BY birth_month, birth_day, name`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing active birthday records: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

func (r *PostgresBirthdayRepository) ListAll(ctx context.Context, ownerID int64, includeDeleted bool) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE user_id = $1 AND (is_deleted = FALSE OR $2) ORDER BY birth_month, birth_day, name`
	rows, err := r.db.QueryContext(ctx, query, ownerID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("error listing birthday records: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

func (r *PostgresBirthdayRepository) ListAllUsersActive(ctx context.Context) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE is_deleted = FALSE ORDER BY user_id, birth_month, birth_day`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing cross-user active birthday records: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

func (r *PostgresBirthdayRepository) FindByName(ctx context.Context, ownerID int64, name string, deleted bool) ([]*birthday.Record, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
               WHERE user_id = $1 AND LOWER(name) = LOWER($2) AND is_deleted = $3 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, ownerID, name, deleted)
	if err != nil {
		return nil, fmt.Errorf("error finding birthday records by name: %w", err)
	}
	defer rows.Close()
	return scanBirthdayRows(rows)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBirthdayRow(row rowScanner) (*birthday.Record, error) {
	rec := &birthday.Record{}
	var year sql.NullInt64
	var month, day int
	if err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Name, &year, &month, &day, &rec.Category,
		&rec.ImageURL, &rec.Note, &rec.CreatedAt, &rec.UpdatedAt, &rec.IsDeleted, &rec.DeletedAt,
	); err != nil {
		return nil, err
	}
	rec.Birthdate = birthday.Date{Year: int(year.Int64), Month: time.Month(month), Day: day}
	return rec, nil
}

func scanBirthdayRows(rows *sql.Rows) ([]*birthday.Record, error) {
	records := make([]*birthday.Record, 0)
	for rows.Next() {
		rec, err := scanBirthdayRow(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning birthday record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating birthday record rows: %w", err)
	}
	return records, nil
}

func nullYear(year int) sql.NullInt64 {
	if year == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(year), Valid: true}
}
