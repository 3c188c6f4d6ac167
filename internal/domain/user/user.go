package user

import (
	"database/sql"
	"time"
)

// User represents a bot user who owns birthday records.
// The ID is the Telegram user ID and is stable for the lifetime of the row.
type User struct {
	ID           int64
	Username     sql.NullString
	FirstName    sql.NullString
	IsSuperadmin bool
	Timezone     string // IANA name, defaults to UTC
	CreatedAt    time.Time
	IsDeleted    bool
	DeletedAt    sql.NullTime
}

// Location resolves the user's timezone, falling back to UTC when the stored
// name is empty or unknown.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidTimezone reports whether name is a loadable IANA timezone.
func ValidTimezone(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}
