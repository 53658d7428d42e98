package schedule

import (
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
)

// ValidateProfile checks that a salary profile carries the fields its rule needs.
func ValidateProfile(p *models.SalaryProfile) error {
	switch p.PaydayRule {
	case models.PaydayFixedDay:
		if p.FixedDay == nil {
			return ruleErr("fixed_day", "required for fixed_day rule")
		}
		if d := *p.FixedDay; d < 1 || d > 31 {
			return ruleErr("fixed_day", "must be 1-31, got %d", d)
		}
	case models.PaydayLastWorkingDay:
	case models.PaydayNthWeekday:
		if p.WeekdayPreference == nil {
			return ruleErr("weekday_preference", "required for nth_weekday rule")
		}
		if w := *p.WeekdayPreference; w < time.Sunday || w > time.Saturday {
			return ruleErr("weekday_preference", "must be 0-6, got %d", w)
		}
		if p.WeekdayOrdinal != nil && (*p.WeekdayOrdinal < 1 || *p.WeekdayOrdinal > 5) {
			return ruleErr("weekday_ordinal", "must be 1-5, got %d", *p.WeekdayOrdinal)
		}
	default:
		return ruleErr("payday_rule", "unknown rule %q", p.PaydayRule)
	}
	if p.MonthlyAmount.IsNegative() {
		return ruleErr("monthly_amount", "must not be negative")
	}
	return nil
}

// Predict resolves the profile's payday in (month, year).
func Predict(p *models.SalaryProfile, month, year int) (time.Time, error) {
	if err := ValidateProfile(p); err != nil {
		return time.Time{}, err
	}
	m := time.Month(month)
	switch p.PaydayRule {
	case models.PaydayFixedDay:
		return ClampedDate(year, m, *p.FixedDay), nil
	case models.PaydayLastWorkingDay:
		return LastWorkingDay(year, m), nil
	default:
		n := 1
		if p.WeekdayOrdinal != nil {
			n = *p.WeekdayOrdinal
		}
		return NthWeekday(year, m, *p.WeekdayPreference, n), nil
	}
}

// NextPaydays predicts count consecutive paydays starting with from's month.
func NextPaydays(p *models.SalaryProfile, from time.Time, count int) ([]time.Time, error) {
	month, year := int(from.Month()), from.Year()
	out := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		d, err := Predict(p, month, year)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		month, year = AddMonths(month, year, 1)
	}
	return out, nil
}

// LastWorkingDay walks back from the month's last day over weekends. Holidays are not considered.
func LastWorkingDay(year int, month time.Month) time.Time {
	d := ClampedDate(year, month, 31)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NthWeekday returns the n-th given weekday of the month. When the month has fewer than
// n matches the last match is returned.
func NthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	d := first.AddDate(0, 0, offset)
	for i := 1; i < n; i++ {
		next := d.AddDate(0, 0, 7)
		if next.Month() != month {
			break
		}
		d = next
	}
	return d
}
