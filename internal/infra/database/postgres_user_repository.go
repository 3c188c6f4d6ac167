package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/user"
)

type PostgresUserRepository struct {
	db              *sql.DB
	defaultTimezone string
}

func NewPostgresUserRepository(db *sql.DB, defaultTimezone string) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, defaultTimezone: defaultTimezone}
}

func (r *PostgresUserRepository) Ensure(ctx context.Context, id int64, username, firstName string) (*user.User, error) {
	query := `INSERT INTO users (id, username, first_name, timezone)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (id) DO UPDATE
               SET username = COALESCE(EXCLUDED.username, users.username),
                   first_name = COALESCE(EXCLUDED.first_name, users.first_name)
               RETURNING id, username, first_name, is_superadmin, timezone, created_at, is_deleted, deleted_at`

	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, id, nullString(username), nullString(firstName), r.defaultTimezone).Scan(
		&u.ID, &u.Username, &u.FirstName, &u.IsSuperadmin, &u.Timezone, &u.CreatedAt, &u.IsDeleted, &u.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error ensuring user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT id, username, first_name, is_superadmin, timezone, created_at, is_deleted, deleted_at
               FROM users WHERE id = $1`
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

func (r *PostgresUserRepository) SetTimezone(ctx context.Context, id int64, timezone string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET timezone = $1 WHERE id = $2`, timezone, id)
	if err != nil {
		return fmt.Errorf("error setting user timezone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_deleted = TRUE, deleted_at = $1 WHERE id = $2 AND is_deleted = FALSE`, at, id)
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

func (r *PostgresUserRepository) ListActive(ctx context.Context) ([]*user.User, error) {
	query := `SELECT id, username, first_name, is_superadmin, timezone, created_at, is_deleted, deleted_at
               FROM users WHERE is_deleted = FALSE ORDER BY id`

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

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
