package service

import (
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
)

// Clock supplies the current date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Today() time.Time {
	return schedule.Truncate(time.Now().UTC())
}

// FixedClock always reports the same day.
type FixedClock time.Time

func (c FixedClock) Today() time.Time {
	return schedule.Truncate(time.Time(c))
}
