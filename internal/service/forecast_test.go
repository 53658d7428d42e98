package service

import (
	"testing"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/google/uuid"
)

func TestSummarize(t *testing.T) {
	occs := []models.Occurrence{
		{Kind: models.SourceScheduled, Status: models.OccurrencePaid, Amount: decPtr("1500"), PaidAmount: decPtr("1450")},
		{Kind: models.SourceScheduled, Status: models.OccurrencePending, Amount: decPtr("200")},
		{Kind: models.SourceLoan, Status: models.OccurrencePending, Amount: decPtr("8884.88")},
		{Kind: models.SourceInsurance, Status: models.OccurrenceSkipped, Amount: decPtr("4000")},
	}
	got := Summarize(3, 2025, occs)

	if len(got.Groups) != len(models.SourceKinds) {
		t.Fatalf("groups = %d, want %d", len(got.Groups), len(models.SourceKinds))
	}
	assertAmount(t, "total paid", got.TotalPaid, "1450")
	assertAmount(t, "total pending", got.TotalPending, "9084.88")

	byKind := map[models.SourceKind]models.KindTotals{}
	for _, g := range got.Groups {
		byKind[g.Kind] = g
	}
	if g := byKind[models.SourceScheduled]; g.Count != 2 || g.PaidCount != 1 || g.PendingCount != 1 {
		t.Errorf("scheduled group = %+v", g)
	}
	if g := byKind[models.SourceInsurance]; g.Count != 1 || !g.Paid.IsZero() || !g.Pending.IsZero() {
		t.Errorf("skipped insurance was totalled: %+v", g)
	}
	if g := byKind[models.SourceCreditCard]; g.Count != 0 {
		t.Errorf("credit card group = %+v", g)
	}
}

func TestForecast(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 3, 10))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "10000")
	if _, err := svc.CreateScheduledPayment(ctx, user, rent(acct)); err != nil {
		t.Fatalf("CreateScheduledPayment: %v", err)
	}
	ls, err := svc.CreateLoan(ctx, user, personalLoan(&acct))
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	gen, err := svc.Generate(ctx, user, 3, 2025)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, o := range gen.Occurrences {
		if o.Kind == models.SourceScheduled {
			if _, err := svc.MarkPaid(ctx, user, o.ID, PaymentInput{}); err != nil {
				t.Fatalf("MarkPaid: %v", err)
			}
		}
	}

	f, err := svc.Forecast(ctx, user)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(f.Warnings) != 1 {
		t.Errorf("warnings = %v, want the missing profile warning", f.Warnings)
	}
	assertAmount(t, "this month paid", f.ThisMonth.TotalPaid, "1500")
	assertAmount(t, "this month pending", f.ThisMonth.TotalPending, ls.Loan.EMIAmount.String())
	assertAmount(t, "next month outflow", f.NextMonth.Outflow, "10384.88")
	assertAmount(t, "next month emis", f.NextMonth.LoanEMIs, "8884.88")
	assertAmount(t, "net", f.NextMonth.Net, "-10384.88")
	if f.NextMonth.ExpectedPayday != nil || len(f.UpcomingPaydays) != 0 {
		t.Errorf("paydays predicted without a profile")
	}
	if stored, _ := mem.ListOccurrences(ctx, user, 4, 2025); len(stored) != 0 {
		t.Errorf("forecast persisted %d occurrences", len(stored))
	}

	if _, err := svc.SaveSalaryProfile(ctx, user, SalaryProfileInput{
		PaydayRule: models.PaydayFixedDay, FixedDay: intPtr(25), MonthlyAmount: dec("50000"),
	}); err != nil {
		t.Fatalf("SaveSalaryProfile: %v", err)
	}
	f, err = svc.Forecast(ctx, user)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	assertAmount(t, "income", f.NextMonth.ExpectedIncome, "50000")
	assertAmount(t, "net", f.NextMonth.Net, "39615.12")
	if f.NextMonth.ExpectedPayday == nil || !f.NextMonth.ExpectedPayday.Equal(date(2025, 4, 25)) {
		t.Errorf("expected payday = %v", f.NextMonth.ExpectedPayday)
	}
	want := []time.Time{date(2025, 3, 25), date(2025, 4, 25), date(2025, 5, 25)}
	if len(f.UpcomingPaydays) != len(want) {
		t.Fatalf("upcoming paydays = %v", f.UpcomingPaydays)
	}
	for i := range want {
		if !f.UpcomingPaydays[i].Equal(want[i]) {
			t.Errorf("payday %d = %s", i, f.UpcomingPaydays[i])
		}
	}
}
