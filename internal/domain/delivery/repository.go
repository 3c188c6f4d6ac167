package delivery

import (
	"context"
)

// Repository defines the operations for delivery markers. Implementations
// must enforce uniqueness of (birthday_id, job, period_key) so concurrent
// writers cannot both record the same occurrence.
type Repository interface {
	Exists(ctx context.Context, birthdayID int64, job JobType, periodKey string) (bool, error)
	// Create inserts the marker, returning ErrDuplicateMarker from the
	// database package when the occurrence was already recorded.
	Create(ctx context.Context, m *Marker) error
}
