package service

import (
	"errors"
	"testing"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/google/uuid"
)

func TestNextPaydays(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 3, 10))
	user := uuid.New()

	if _, err := svc.NextPaydays(ctx, user, 3); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("without profile: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.SaveSalaryProfile(ctx, user, SalaryProfileInput{
		PaydayRule:    models.PaydayLastWorkingDay,
		MonthlyAmount: dec("50000"),
	}); err != nil {
		t.Fatalf("SaveSalaryProfile: %v", err)
	}

	got, err := svc.NextPaydays(ctx, user, 3)
	if err != nil {
		t.Fatalf("NextPaydays: %v", err)
	}
	want := []time.Time{date(2025, 3, 31), date(2025, 4, 30), date(2025, 5, 30)}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("payday %d = %s, want %s", i, got[i].Format("2006-01-02"), want[i].Format("2006-01-02"))
		}
	}

	for _, n := range []int{0, MaxPaydays + 1} {
		_, err := svc.NextPaydays(ctx, user, n)
		assertValidation(t, err, "count")
	}
}

func TestSaveSalaryProfileValidation(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 3, 10))
	friday := time.Friday
	tests := []struct {
		name  string
		in    SalaryProfileInput
		field string
	}{
		{"fixed day missing", SalaryProfileInput{PaydayRule: models.PaydayFixedDay}, "fixed_day"},
		{"fixed day out of range", SalaryProfileInput{PaydayRule: models.PaydayFixedDay, FixedDay: intPtr(0)}, "fixed_day"},
		{"weekday missing", SalaryProfileInput{PaydayRule: models.PaydayNthWeekday}, "weekday_preference"},
		{"ordinal out of range", SalaryProfileInput{PaydayRule: models.PaydayNthWeekday, WeekdayPreference: &friday, WeekdayOrdinal: intPtr(6)}, "weekday_ordinal"},
		{"unknown rule", SalaryProfileInput{PaydayRule: "biweekly"}, "payday_rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveSalaryProfile(ctx, uuid.New(), tt.in)
			assertValidation(t, err, tt.field)
		})
	}
}

func TestSalaryCycleCreditRoundTrip(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 3, 31))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "1000")
	if _, err := svc.SaveSalaryProfile(ctx, user, SalaryProfileInput{
		PaydayRule:    models.PaydayFixedDay,
		FixedDay:      intPtr(31),
		MonthlyAmount: dec("50000"),
		AccountID:     &acct,
	}); err != nil {
		t.Fatalf("SaveSalaryProfile: %v", err)
	}

	cycle, created, err := svc.EnsureSalaryCycle(ctx, user, 4, 2025)
	if err != nil || !created {
		t.Fatalf("EnsureSalaryCycle: created=%v err=%v", created, err)
	}
	if !cycle.ExpectedDate.Equal(date(2025, 4, 30)) {
		t.Errorf("expected date = %s, want 2025-04-30", cycle.ExpectedDate.Format("2006-01-02"))
	}
	again, created, err := svc.EnsureSalaryCycle(ctx, user, 4, 2025)
	if err != nil || created || again.ID != cycle.ID {
		t.Fatalf("second EnsureSalaryCycle: created=%v err=%v", created, err)
	}

	for i := 0; i < 2; i++ {
		res, err := svc.MarkSalaryCredited(ctx, user, cycle.ID, PaymentInput{})
		if err != nil {
			t.Fatalf("MarkSalaryCredited #%d: %v", i+1, err)
		}
		if res.Applied != (i == 0) {
			t.Errorf("credit #%d applied = %v", i+1, res.Applied)
		}
	}
	assertAmount(t, "balance", balanceOf(t, mem, acct), "51000")
	txs := mem.ListTransactions(acct)
	if len(txs) != 1 || txs[0].Type != models.TransactionTypeCredit || txs[0].SalaryCycleID == nil {
		t.Fatalf("transactions = %+v", txs)
	}

	if _, err := svc.UnmarkSalaryCredited(ctx, user, cycle.ID); err != nil {
		t.Fatalf("UnmarkSalaryCredited: %v", err)
	}
	assertAmount(t, "balance after uncredit", balanceOf(t, mem, acct), "1000")
	if n := len(mem.ListTransactions(acct)); n != 0 {
		t.Errorf("transactions after uncredit = %d", n)
	}
}

func TestUncreditWithDeletedTransactionWarns(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 3, 31))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "0")
	if _, err := svc.SaveSalaryProfile(ctx, user, SalaryProfileInput{
		PaydayRule: models.PaydayLastWorkingDay, MonthlyAmount: dec("50000"), AccountID: &acct,
	}); err != nil {
		t.Fatalf("SaveSalaryProfile: %v", err)
	}
	cycle, _, err := svc.EnsureSalaryCycle(ctx, user, 3, 2025)
	if err != nil {
		t.Fatalf("EnsureSalaryCycle: %v", err)
	}
	res, err := svc.MarkSalaryCredited(ctx, user, cycle.ID, PaymentInput{Amount: decPtr("48000")})
	if err != nil {
		t.Fatalf("MarkSalaryCredited: %v", err)
	}
	if err := mem.DeleteTransaction(ctx, res.Transaction.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	un, err := svc.UnmarkSalaryCredited(ctx, user, cycle.ID)
	if err != nil {
		t.Fatalf("UnmarkSalaryCredited: %v", err)
	}
	if len(un.Warnings) != 1 {
		t.Errorf("warnings = %v", un.Warnings)
	}
	assertAmount(t, "balance", balanceOf(t, mem, acct), "48000")
	if un.Cycle.Status != models.SalaryPending {
		t.Errorf("status = %s", un.Cycle.Status)
	}
}
