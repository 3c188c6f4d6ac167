package user

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving User entities.
type Repository interface {
	// Ensure creates the user row if it does not exist yet and returns it.
	// Username and firstName refresh the stored values on every call.
	Ensure(ctx context.Context, id int64, username, firstName string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	SetTimezone(ctx context.Context, id int64, timezone string) error
	// SoftDelete flags the user as deleted; the row is retained for audit and
	// the user drops out of scheduling. Deleting twice is a no-op.
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	// ListActive returns users not marked as deleted; only these are scheduled.
	ListActive(ctx context.Context) ([]*User, error)
}
