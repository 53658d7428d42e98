// Package schedule resolves recurrence rules and salary paydays into calendar dates.
// Everything here is pure: no I/O, no clock.
package schedule

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds a UTC date, pulling day back to the month's last day when it overflows.
func ClampedDate(year int, month time.Month, day int) time.Time {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MonthIndex maps (month, year) onto a single increasing counter.
func MonthIndex(month, year int) int {
	return year*12 + month - 1
}

// AddMonths shifts (month, year) by n months.
func AddMonths(month, year, n int) (int, int) {
	idx := MonthIndex(month, year) + n
	return idx%12 + 1, idx / 12
}

// MonthBounds returns the first and last day of the month.
func MonthBounds(month, year int) (time.Time, time.Time) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// InMonth reports whether t falls inside (month, year).
func InMonth(t time.Time, month, year int) bool {
	return t.Year() == year && int(t.Month()) == month
}

// Truncate drops the time-of-day part of t.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidMonth reports whether month is 1..12.
func ValidMonth(month int) bool {
	return month >= 1 && month <= 12
}
