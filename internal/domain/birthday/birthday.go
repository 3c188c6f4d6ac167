package birthday

import (
	"database/sql"
	"time"
)

// Record represents one tracked birthday, owned by exactly one user.
// (Name, owner) is deliberately not unique: a user may track two people
// with the same name.
type Record struct {
	ID        int64
	OwnerID   int64 // users.id
	Name      string
	Birthdate Date
	Category  Category
	ImageURL  sql.NullString
	Note      sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	DeletedAt sql.NullTime
}
