package database

import "fmt"

// Sentinel errors shared by all store implementations.
var (
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrBirthdayNotFound   = fmt.Errorf("birthday record not found")
	ErrBirthdayNotDeleted = fmt.Errorf("birthday record is not deleted")
	ErrDuplicateMarker    = fmt.Errorf("delivery marker already exists for this occurrence")
)
