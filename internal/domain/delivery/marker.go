// Package delivery holds the idempotency state of the reminder scheduler.
// A marker means "this occurrence was already notified for this job type";
// markers are written only after a successful dispatch and never deleted.
package delivery

import (
	"fmt"
	"time"
)

// JobType distinguishes the two recurring reminder jobs.
type JobType string

const (
	JobDaily  JobType = "daily"
	JobWeekly JobType = "weekly"
)

// Marker is one delivery record per (birthday, job, period).
type Marker struct {
	ID         int64
	BirthdayID int64
	Job        JobType
	PeriodKey  string
	SentAt     time.Time
}

// DailyKey keys daily markers by the year of the occurrence itself, so a
// tick that straddles New Year in some timezone cannot double-send.
func DailyKey(occurrence time.Time) string {
	return fmt.Sprintf("%04d", occurrence.Year())
}

// WeeklyKey keys weekly markers by ISO year and week of the user-local tick
// time; a retried Sunday job within the same week becomes a no-op.
func WeeklyKey(localNow time.Time) string {
	year, week := localNow.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
