// Package notify defines the boundary to the chat-transport collaborator.
package notify

import (
	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
)

// Payload is one rendered-ready reminder for a single birthday.
type Payload struct {
	Job       delivery.JobType
	Name      string
	Category  birthday.Category
	Age       *int // age turning at the occurrence; nil when birth year unknown
	DaysUntil int  // 0 for the daily job
	ImageURL  string
	Note      string
}

// Dispatcher delivers reminders to a user. Implementations report per-call
// failures as an error value; a failing recipient must never take down the
// calling batch.
type Dispatcher interface {
	Send(recipientID int64, p Payload) error
}
