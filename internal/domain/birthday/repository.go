package birthday

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving birthday
// records. Soft deletion only: rows are flagged, never destroyed.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id int64) (*Record, error)
	// Update rewrites all mutable fields of the record identified by rec.ID
	// and refreshes UpdatedAt. Partial-patch semantics live in the service.
	Update(ctx context.Context, rec *Record) error
	// SoftDelete is idempotent: deleting an already-deleted record keeps its
	// original deletion timestamp and returns nil. Unknown ids are an error.
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	// Restore clears the deletion flag. Restoring a record that is not
	// currently deleted is an error.
	Restore(ctx context.Context, id int64) error
	// ListActive returns non-deleted records of one owner. Ordering by
	// upcoming occurrence is the caller's concern.
	ListActive(ctx context.Context, ownerID int64) ([]*Record, error)
	ListAll(ctx context.Context, ownerID int64, includeDeleted bool) ([]*Record, error)
	// ListAllUsersActive returns active records across all owners, for the
	// scheduler and privileged reporting.
	ListAllUsersActive(ctx context.Context) ([]*Record, error)
	// FindByName matches an owner's records case-insensitively by exact name,
	// either among deleted rows or among active ones.
	FindByName(ctx context.Context, ownerID int64, name string, deleted bool) ([]*Record, error)
}
