package app

import "time"

// Clock abstracts wall-clock time so recurrence and scheduling logic can be
// tested deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real-time clock used in production.
func SystemClock() Clock { return systemClock{} }
