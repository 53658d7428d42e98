package service

import (
	"testing"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/google/uuid"
)

func TestExpandPremiums(t *testing.T) {
	end := date(2026, 1, 10)
	tests := []struct {
		name      string
		ins       models.Insurance
		wantDates []time.Time
		wantAmts  []string
	}{
		{
			name: "yearly split in three",
			ins: models.Insurance{
				PremiumAmount: dec("1000"), PremiumFrequency: models.FrequencyYearly,
				TermsPerPeriod: 3, StartDate: date(2025, 1, 10), EndDate: &end,
			},
			wantDates: []time.Time{date(2025, 1, 10), date(2025, 5, 10), date(2025, 9, 10)},
			wantAmts:  []string{"333.33", "333.33", "333.34"},
		},
		{
			name: "half yearly whole",
			ins: models.Insurance{
				PremiumAmount: dec("6000"), PremiumFrequency: models.FrequencyHalfYearly,
				TermsPerPeriod: 1, StartDate: date(2025, 1, 10), EndDate: &end,
			},
			wantDates: []time.Time{date(2025, 1, 10), date(2025, 7, 10)},
			wantAmts:  []string{"6000", "6000"},
		},
		{
			name: "one time",
			ins: models.Insurance{
				PremiumAmount: dec("2500"), PremiumFrequency: models.FrequencyOneTime,
				TermsPerPeriod: 1, StartDate: date(2025, 3, 1),
			},
			wantDates: []time.Time{date(2025, 3, 1)},
			wantAmts:  []string{"2500"},
		},
		{
			name: "month end clamps",
			ins: models.Insurance{
				PremiumAmount: dec("100"), PremiumFrequency: models.FrequencyMonthly,
				TermsPerPeriod: 1, StartDate: date(2025, 1, 31), EndDate: ptr(date(2025, 4, 1)),
			},
			wantDates: []time.Time{date(2025, 1, 31), date(2025, 2, 28), date(2025, 3, 31)},
			wantAmts:  []string{"100", "100", "100"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandPremiums(&tt.ins)
			if len(got) != len(tt.wantDates) {
				t.Fatalf("premiums = %d, want %d", len(got), len(tt.wantDates))
			}
			for i, p := range got {
				if !p.DueDate.Equal(tt.wantDates[i]) {
					t.Errorf("#%d due = %s, want %s", i, p.DueDate.Format("2006-01-02"), tt.wantDates[i].Format("2006-01-02"))
				}
				assertAmount(t, "premium", p.Amount, tt.wantAmts[i])
			}
		})
	}
}

func TestExpandPremiumsDefaultHorizon(t *testing.T) {
	got := ExpandPremiums(&models.Insurance{
		PremiumAmount: dec("12000"), PremiumFrequency: models.FrequencyYearly,
		TermsPerPeriod: 1, StartDate: date(2025, 1, 10),
	})
	if len(got) != PremiumHorizonYears {
		t.Errorf("premiums = %d, want %d", len(got), PremiumHorizonYears)
	}
}

func TestCreateInsuranceValidation(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 1, 1))
	tests := []struct {
		name  string
		in    InsuranceInput
		field string
	}{
		{"terms do not divide", InsuranceInput{Name: "Health", PremiumAmount: dec("100"), PremiumFrequency: models.FrequencyYearly, TermsPerPeriod: 5, StartDate: date(2025, 1, 1)}, "terms_per_period"},
		{"custom frequency", InsuranceInput{Name: "Health", PremiumAmount: dec("100"), PremiumFrequency: models.FrequencyCustom, StartDate: date(2025, 1, 1)}, "premium_frequency"},
		{"end before start", InsuranceInput{Name: "Health", PremiumAmount: dec("100"), PremiumFrequency: models.FrequencyYearly, StartDate: date(2025, 1, 1), EndDate: ptr(date(2024, 1, 1))}, "end_date"},
		{"no premium", InsuranceInput{Name: "Health", PremiumFrequency: models.FrequencyYearly, StartDate: date(2025, 1, 1)}, "premium_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateInsurance(ctx, uuid.New(), tt.in)
			assertValidation(t, err, tt.field)
		})
	}
}

func TestInsurancePremiumReconciles(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 5, 10))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "10000")
	end := date(2026, 1, 10)
	sched, err := svc.CreateInsurance(ctx, user, InsuranceInput{
		AccountID:        &acct,
		Name:             "Health",
		Provider:         "Star",
		PremiumAmount:    dec("12000"),
		PremiumFrequency: models.FrequencyYearly,
		TermsPerPeriod:   3,
		StartDate:        date(2025, 1, 10),
		EndDate:          &end,
	})
	if err != nil {
		t.Fatalf("CreateInsurance: %v", err)
	}
	if len(sched.Premiums) != 3 {
		t.Fatalf("premiums = %d, want 3", len(sched.Premiums))
	}

	gen, err := svc.Generate(ctx, user, 5, 2025)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(gen.Occurrences) != 1 || gen.Occurrences[0].Kind != models.SourceInsurance {
		t.Fatalf("occurrences = %+v", gen.Occurrences)
	}
	occ := gen.Occurrences[0]
	assertAmount(t, "premium", *occ.Amount, "4000")
	if occ.InstallmentID == nil || *occ.InstallmentID != sched.Premiums[1].ID {
		t.Fatalf("occurrence not linked to the May premium")
	}

	if _, err := svc.MarkPaid(ctx, user, occ.ID, PaymentInput{}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	assertAmount(t, "balance", balanceOf(t, mem, acct), "6000")
	view, _ := svc.ListPremiums(ctx, user, sched.Insurance.ID)
	if p := view.Premiums[1]; p.Status != models.InstallmentPaid || p.PaidAmount == nil {
		t.Errorf("premium after pay = %+v", p)
	}

	if _, err := svc.Unmark(ctx, user, occ.ID); err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	view, _ = svc.ListPremiums(ctx, user, sched.Insurance.ID)
	if p := view.Premiums[1]; p.Status != models.InstallmentPending || p.PaidAt != nil {
		t.Errorf("premium after unmark = %+v", p)
	}
}
