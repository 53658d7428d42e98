package schedule

import (
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
)

// ValidateSource checks a recurrence source's shape.
func ValidateSource(src *models.RecurrenceSource) error {
	if !src.Frequency.Valid() {
		return ruleErr("frequency", "unknown frequency %q", src.Frequency)
	}
	if src.Frequency == models.FrequencyCustom {
		if src.CustomIntervalMonths == nil {
			return ruleErr("custom_interval_months", "required for custom frequency")
		}
		if n := *src.CustomIntervalMonths; n < 1 || n > models.MaxCustomIntervalMonths {
			return ruleErr("custom_interval_months", "must be 1-%d, got %d", models.MaxCustomIntervalMonths, n)
		}
	}
	if src.StartMonth != nil && !ValidMonth(*src.StartMonth) {
		return ruleErr("start_month", "must be 1-12, got %d", *src.StartMonth)
	}
	if src.Frequency == models.FrequencyOneTime && (src.StartMonth == nil || src.StartYear == nil) {
		return ruleErr("start_month", "one_time sources need start_month and start_year")
	}
	switch src.DueDateType {
	case models.DueDateFixedDay:
		if src.DueDay == nil {
			return ruleErr("due_date", "required for fixed_day")
		}
		if d := *src.DueDay; d < 1 || d > 31 {
			return ruleErr("due_date", "must be 1-31, got %d", d)
		}
	case models.DueDateSalaryDay:
		if src.DueDay != nil {
			return ruleErr("due_date", "must be absent for salary_day")
		}
	default:
		return ruleErr("due_date_type", "unknown due date type %q", src.DueDateType)
	}
	if src.Amount != nil && !src.Amount.IsPositive() {
		return ruleErr("amount", "must be positive")
	}
	return nil
}

// EmitsIn reports whether the source's frequency schedules anything in (month, year).
func EmitsIn(src *models.RecurrenceSource, month, year int) bool {
	target := MonthIndex(month, year)
	startMonth := 1
	if src.StartMonth != nil {
		startMonth = *src.StartMonth
	}
	anchor := startMonth - 1
	if src.StartYear != nil {
		anchor = MonthIndex(startMonth, *src.StartYear)
		if target < anchor {
			return false
		}
	}

	switch src.Frequency {
	case models.FrequencyOneTime:
		return src.StartYear != nil && target == anchor
	case models.FrequencyMonthly:
		return true
	}

	interval := src.Frequency.IntervalMonths(src.CustomIntervalMonths)
	if interval <= 0 {
		return false
	}
	diff := (target - anchor) % interval
	if diff < 0 {
		diff += interval
	}
	return diff == 0
}

// DueDatesIn returns the source's due dates within (month, year). The result holds at
// most one date. profile is consulted only for salary_day sources; a nil profile
// there yields ErrNoSalaryProfile.
func DueDatesIn(src *models.RecurrenceSource, month, year int, profile *models.SalaryProfile) ([]time.Time, error) {
	if err := ValidateSource(src); err != nil {
		return nil, err
	}
	if !EmitsIn(src, month, year) {
		return nil, nil
	}

	switch src.DueDateType {
	case models.DueDateSalaryDay:
		if profile == nil {
			return nil, ErrNoSalaryProfile
		}
		d, err := Predict(profile, month, year)
		if err != nil {
			return nil, err
		}
		return []time.Time{d}, nil
	default:
		return []time.Time{ClampedDate(year, time.Month(month), *src.DueDay)}, nil
	}
}
