package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"birthday_notification_bot/internal/domain/delivery"
)

type PostgresDeliveryRepository struct {
	db *sql.DB
}

func NewPostgresDeliveryRepository(db *sql.DB) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{db: db}
}

func (r *PostgresDeliveryRepository) Exists(ctx context.Context, birthdayID int64, job delivery.JobType, periodKey string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM delivery_markers WHERE birthday_id = $1 AND job_type = $2 AND period_key = $3)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, birthdayID, job, periodKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking delivery marker: %w", err)
	}
	return exists, nil
}

func (r *PostgresDeliveryRepository) Create(ctx context.Context, m *delivery.Marker) error {
	query := `INSERT INTO delivery_markers (birthday_id, job_type, period_key, sent_at)
               VALUES ($1, $2, $3, $4)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, m.BirthdayID, m.Job, m.PeriodKey, m.SentAt).Scan(&m.ID)
	if err != nil {
		if strings.Contains(err.Error(), "delivery_marker_unique") {
			return ErrDuplicateMarker
		}
		return fmt.Errorf("error creating delivery marker: %w", err)
	}
	return nil
}

var _ delivery.Repository = (*PostgresDeliveryRepository)(nil)
