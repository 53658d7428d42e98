package schedule

import (
	"testing"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
)

func TestPredict(t *testing.T) {
	friday := time.Friday
	tests := []struct {
		name    string
		profile models.SalaryProfile
		month   int
		year    int
		want    string
	}{
		{"fixed day", models.SalaryProfile{PaydayRule: models.PaydayFixedDay, FixedDay: intPtr(25)}, 3, 2025, "2025-03-25"},
		{"fixed day clamped", models.SalaryProfile{PaydayRule: models.PaydayFixedDay, FixedDay: intPtr(30)}, 2, 2025, "2025-02-28"},
		{"last working day on sunday", models.SalaryProfile{PaydayRule: models.PaydayLastWorkingDay}, 8, 2025, "2025-08-29"},
		{"last working day weekday", models.SalaryProfile{PaydayRule: models.PaydayLastWorkingDay}, 3, 2025, "2025-03-31"},
		{"first friday", models.SalaryProfile{PaydayRule: models.PaydayNthWeekday, WeekdayPreference: &friday}, 3, 2025, "2025-03-07"},
		{"third friday", models.SalaryProfile{PaydayRule: models.PaydayNthWeekday, WeekdayPreference: &friday, WeekdayOrdinal: intPtr(3)}, 3, 2025, "2025-03-21"},
		{"fifth friday falls back", models.SalaryProfile{PaydayRule: models.PaydayNthWeekday, WeekdayPreference: &friday, WeekdayOrdinal: intPtr(5)}, 2, 2025, "2025-02-28"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Predict(&tt.profile, tt.month, tt.year)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if s := got.Format("2006-01-02"); s != tt.want {
				t.Errorf("Predict = %s, want %s", s, tt.want)
			}
		})
	}
}

func TestPredictRejectsIncompleteProfile(t *testing.T) {
	if _, err := Predict(&models.SalaryProfile{PaydayRule: models.PaydayFixedDay}, 1, 2025); err == nil {
		t.Error("expected error for fixed_day without day")
	}
	if _, err := Predict(&models.SalaryProfile{PaydayRule: models.PaydayNthWeekday}, 1, 2025); err == nil {
		t.Error("expected error for nth_weekday without weekday")
	}
}

func TestNextPaydays(t *testing.T) {
	p := &models.SalaryProfile{PaydayRule: models.PaydayFixedDay, FixedDay: intPtr(31)}
	from := time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)
	got, err := NextPaydays(p, from, 4)
	if err != nil {
		t.Fatalf("NextPaydays: %v", err)
	}
	want := []string{"2025-11-30", "2025-12-31", "2026-01-31", "2026-02-28"}
	if len(got) != len(want) {
		t.Fatalf("got %d dates, want %d", len(got), len(want))
	}
	for i := range want {
		if s := got[i].Format("2006-01-02"); s != want[i] {
			t.Errorf("payday %d = %s, want %s", i, s, want[i])
		}
	}
}
