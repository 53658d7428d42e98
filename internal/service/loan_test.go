package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func personalLoan(acct *uuid.UUID) LoanInput {
	return LoanInput{
		AccountID:       acct,
		Name:            "Car",
		Lender:          "HDFC",
		PrincipalAmount: dec("100000"),
		InterestRate:    dec("12"),
		TenureMonths:    12,
		EMIDay:          5,
		StartDate:       date(2025, 1, 15),
	}
}

func pendingRows(rows []models.LoanInstallment) []models.LoanInstallment {
	var out []models.LoanInstallment
	for _, r := range rows {
		if r.Status == models.InstallmentPending {
			out = append(out, r)
		}
	}
	return out
}

func loanOccurrence(t *testing.T, svc *Service, user, loanID uuid.UUID, month, year int) models.Occurrence {
	t.Helper()
	res, err := svc.Generate(ctx, user, month, year)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, o := range res.Occurrences {
		if o.Kind == models.SourceLoan && o.SourceID == loanID {
			return o
		}
	}
	t.Fatalf("no loan occurrence in %02d/%d", month, year)
	return models.Occurrence{}
}

func TestCreateLoanBuildsSchedule(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 1, 15))
	user := uuid.New()

	ls, err := svc.CreateLoan(ctx, user, personalLoan(nil))
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	assertAmount(t, "emi", ls.Loan.EMIAmount, "8884.88")
	if len(ls.Installments) != 12 {
		t.Fatalf("installments = %d, want 12", len(ls.Installments))
	}
	first, last := ls.Installments[0], ls.Installments[11]
	if !first.DueDate.Equal(date(2025, 2, 5)) || first.EMINumber != 1 {
		t.Errorf("first row = #%d on %s", first.EMINumber, first.DueDate)
	}
	assertAmount(t, "first interest", first.InterestAmount, "1000")
	assertAmount(t, "first principal", first.PrincipalAmount, "7884.88")
	if !last.OutstandingAfter.IsZero() {
		t.Errorf("last outstanding = %s, want 0", last.OutstandingAfter)
	}
	if len(ls.Terms) != 1 || ls.Terms[0].Reason != ReasonOrigination || ls.Terms[0].EffectiveTo != nil {
		t.Errorf("terms = %+v, want one open origination term", ls.Terms)
	}
}

func TestCreateLoanValidation(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 1, 15))
	tests := []struct {
		name  string
		edit  func(*LoanInput)
		field string
	}{
		{"no principal", func(in *LoanInput) { in.PrincipalAmount = decimal.Zero }, "principal_amount"},
		{"no tenure", func(in *LoanInput) { in.TenureMonths = 0 }, "tenure_months"},
		{"emi below interest", func(in *LoanInput) { in.EMIAmount = decPtr("900") }, "emi_amount"},
		{"too many emis paid", func(in *LoanInput) {
			in.IsExistingLoan = true
			in.EMIsPaid = 12
		}, "emis_paid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := personalLoan(nil)
			tt.edit(&in)
			_, err := svc.CreateLoan(ctx, uuid.New(), in)
			assertValidation(t, err, tt.field)
		})
	}
}

func TestCreateExistingLoanSkipsPaidRows(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 6, 1))
	in := personalLoan(nil)
	in.IsExistingLoan = true
	in.EMIsPaid = 4

	ls, err := svc.CreateLoan(ctx, uuid.New(), in)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if len(ls.Installments) != 8 {
		t.Fatalf("installments = %d, want 8", len(ls.Installments))
	}
	if ls.Installments[0].EMINumber != 5 || !ls.Installments[0].DueDate.Equal(date(2025, 6, 5)) {
		t.Errorf("first row = #%d on %s, want #5 on 2025-06-05", ls.Installments[0].EMINumber, ls.Installments[0].DueDate)
	}
	if ls.Loan.EMIsPaid != 4 || !ls.Loan.OutstandingAmount.LessThan(dec("100000")) {
		t.Errorf("loan = %d paid, outstanding %s", ls.Loan.EMIsPaid, ls.Loan.OutstandingAmount)
	}
	if !ls.Installments[7].OutstandingAfter.IsZero() {
		t.Errorf("schedule does not close")
	}
}

func TestLoanPaymentReducesOutstanding(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 2, 5))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "50000")
	ls, err := svc.CreateLoan(ctx, user, personalLoan(&acct))
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	occ := loanOccurrence(t, svc, user, ls.Loan.ID, 2, 2025)
	assertAmount(t, "occurrence amount", *occ.Amount, "8884.88")
	if occ.InstallmentID == nil || *occ.InstallmentID != ls.Installments[0].ID {
		t.Fatalf("occurrence not linked to installment #1")
	}

	res, err := svc.MarkPaid(ctx, user, occ.ID, PaymentInput{})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}
	after, _ := svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
	assertAmount(t, "outstanding", after.Loan.OutstandingAmount, "92115.12")
	assertAmount(t, "balance", balanceOf(t, mem, acct), "41115.12")
	if after.Loan.EMIsPaid != 1 || after.Installments[0].Status != models.InstallmentPaid {
		t.Errorf("loan paid = %d, row status %s", after.Loan.EMIsPaid, after.Installments[0].Status)
	}
	if len(after.Terms) != 1 {
		t.Errorf("terms = %d, want 1", len(after.Terms))
	}

	if _, err := svc.Unmark(ctx, user, occ.ID); err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	after, _ = svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
	assertAmount(t, "outstanding after unmark", after.Loan.OutstandingAmount, "100000")
	assertAmount(t, "balance after unmark", balanceOf(t, mem, acct), "50000")
	if after.Loan.EMIsPaid != 0 || after.Installments[0].Status != models.InstallmentPending {
		t.Errorf("loan not reverted: paid = %d, row %s", after.Loan.EMIsPaid, after.Installments[0].Status)
	}
}

func TestLoanPaymentVarianceRebuildsSchedule(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 2, 5))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "50000")
	ls, err := svc.CreateLoan(ctx, user, personalLoan(&acct))
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	march := loanOccurrence(t, svc, user, ls.Loan.ID, 3, 2025)
	feb := loanOccurrence(t, svc, user, ls.Loan.ID, 2, 2025)

	res, err := svc.MarkPaid(ctx, user, feb.ID, PaymentInput{Amount: decPtr("10000")})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", res.Warnings)
	}

	after, _ := svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
	assertAmount(t, "outstanding", after.Loan.OutstandingAmount, "91000")
	if len(after.Terms) != 2 || after.Terms[1].Reason != ReasonPaymentVariance || after.Terms[0].EffectiveTo == nil {
		t.Fatalf("terms = %+v", after.Terms)
	}
	pending := pendingRows(after.Installments)
	if len(pending) == 0 || pending[0].EMINumber != 2 {
		t.Fatalf("rebuilt rows start at %v", pending)
	}
	if !pending[len(pending)-1].OutstandingAfter.IsZero() {
		t.Errorf("rebuilt schedule does not close")
	}
	if after.Installments[0].Status != models.InstallmentPaid || after.Installments[0].ID != ls.Installments[0].ID {
		t.Errorf("paid row was replaced")
	}

	relinked, err := mem.GetOccurrence(ctx, march.ID)
	if err != nil {
		t.Fatalf("March occurrence dropped: %v", err)
	}
	if relinked.InstallmentID == nil || *relinked.InstallmentID != pending[0].ID {
		t.Errorf("March occurrence not relinked to the rebuilt row")
	}
}

func pendingPrincipal(rows []models.LoanInstallment) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range pendingRows(rows) {
		sum = sum.Add(r.PrincipalAmount)
	}
	return sum
}

func TestLoanPaymentVarianceUnmarkRebuildsSchedule(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 2, 5))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "50000")
	ls, err := svc.CreateLoan(ctx, user, personalLoan(&acct))
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	march := loanOccurrence(t, svc, user, ls.Loan.ID, 3, 2025)
	feb := loanOccurrence(t, svc, user, ls.Loan.ID, 2, 2025)

	if _, err := svc.MarkPaid(ctx, user, feb.ID, PaymentInput{Amount: decPtr("10000")}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	res, err := svc.Unmark(ctx, user, feb.ID)
	if err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	if !res.Applied || len(res.Warnings) != 1 {
		t.Errorf("unmark result applied=%v warnings=%v", res.Applied, res.Warnings)
	}

	after, _ := svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
	assertAmount(t, "outstanding", after.Loan.OutstandingAmount, "100000")
	assertAmount(t, "pending principal", pendingPrincipal(after.Installments), "100000")
	assertAmount(t, "balance", balanceOf(t, mem, acct), "50000")
	if after.Loan.EMIsPaid != 0 {
		t.Errorf("emis paid = %d", after.Loan.EMIsPaid)
	}
	pending := pendingRows(after.Installments)
	if pending[0].EMINumber != 1 || pending[1].EMINumber != 2 {
		t.Fatalf("pending rows start at #%d, #%d", pending[0].EMINumber, pending[1].EMINumber)
	}
	if !pending[len(pending)-1].OutstandingAfter.IsZero() {
		t.Errorf("rebuilt schedule does not close")
	}
	if n := len(after.Terms); n != 3 || after.Terms[n-1].Reason != ReasonPaymentReversal {
		t.Errorf("terms = %+v", after.Terms)
	}
	assertAmount(t, "emi", after.Loan.EMIAmount, "8884.88")

	relinked, err := mem.GetOccurrence(ctx, march.ID)
	if err != nil {
		t.Fatalf("March occurrence dropped: %v", err)
	}
	if relinked.InstallmentID == nil || *relinked.InstallmentID != pending[1].ID {
		t.Errorf("March occurrence not linked to the rebuilt #2")
	}
}

func TestLoanClosesOnFinalPayment(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 3, 5))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "5000")
	in := personalLoan(&acct)
	in.PrincipalAmount = dec("2000")
	in.InterestRate = decimal.Zero
	in.TenureMonths = 2
	ls, err := svc.CreateLoan(ctx, user, in)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	feb := loanOccurrence(t, svc, user, ls.Loan.ID, 2, 2025)
	mar := loanOccurrence(t, svc, user, ls.Loan.ID, 3, 2025)
	for _, o := range []models.Occurrence{feb, mar} {
		if _, err := svc.MarkPaid(ctx, user, o.ID, PaymentInput{}); err != nil {
			t.Fatalf("MarkPaid %s: %v", o.Name, err)
		}
	}
	closed, _ := svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
	if closed.Loan.Status != models.LoanClosed || !closed.Loan.OutstandingAmount.IsZero() || closed.Loan.ClosedAt == nil {
		t.Fatalf("loan = %s outstanding %s", closed.Loan.Status, closed.Loan.OutstandingAmount)
	}
	if o, _ := mem.GetOccurrence(ctx, mar.ID); o == nil || o.Status != models.OccurrencePaid {
		t.Errorf("final occurrence not kept as paid")
	}

	if _, err := svc.Unmark(ctx, user, mar.ID); err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	reopened, _ := svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
	if reopened.Loan.Status != models.LoanActive || reopened.Loan.ClosedAt != nil {
		t.Errorf("loan not reopened: %s", reopened.Loan.Status)
	}
	assertAmount(t, "outstanding", reopened.Loan.OutstandingAmount, "1000")
	if reopened.Terms[len(reopened.Terms)-1].EffectiveTo != nil {
		t.Error("term not reopened")
	}
}

func TestChangeLoanTerms(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 2, 5))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "50000")
	ls, err := svc.CreateLoan(ctx, user, personalLoan(&acct))
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	feb := loanOccurrence(t, svc, user, ls.Loan.ID, 2, 2025)
	if _, err := svc.MarkPaid(ctx, user, feb.ID, PaymentInput{}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	changed, err := svc.ChangeLoanTerms(ctx, user, ls.Loan.ID, TermChangeInput{TenureMonths: intPtr(23)})
	if err != nil {
		t.Fatalf("ChangeLoanTerms: %v", err)
	}
	if changed.Loan.TenureMonths != 24 {
		t.Errorf("tenure = %d, want 24", changed.Loan.TenureMonths)
	}
	pending := pendingRows(changed.Installments)
	if len(pending) != 23 || pending[0].EMINumber != 2 || pending[22].EMINumber != 24 {
		t.Fatalf("rebuilt %d rows", len(pending))
	}
	if !changed.Loan.EMIAmount.LessThan(ls.Loan.EMIAmount) {
		t.Errorf("emi = %s, want lower than %s", changed.Loan.EMIAmount, ls.Loan.EMIAmount)
	}
	if changed.Installments[0].ID != ls.Installments[0].ID || changed.Installments[0].Status != models.InstallmentPaid {
		t.Error("paid row touched")
	}
	if len(changed.Terms) != 2 || changed.Terms[1].Reason != ReasonRevision {
		t.Errorf("terms = %+v", changed.Terms)
	}

	_, err = svc.ChangeLoanTerms(ctx, user, ls.Loan.ID, TermChangeInput{EMIAmount: decPtr("100")})
	assertValidation(t, err, "emi_amount")
}

func TestPrecloseLoan(t *testing.T) {
	svc, mem := newTestService(t, date(2025, 2, 1))
	user := uuid.New()
	acct := seedAccount(t, mem, user, models.AccountTypeBank, "150000")
	ls, err := svc.CreateLoan(ctx, user, personalLoan(&acct))
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	feb := loanOccurrence(t, svc, user, ls.Loan.ID, 2, 2025)

	loan, err := svc.PrecloseLoan(ctx, user, ls.Loan.ID, PrecloseInput{})
	if err != nil {
		t.Fatalf("PrecloseLoan: %v", err)
	}
	if loan.Status != models.LoanPreclosed || !loan.OutstandingAmount.IsZero() {
		t.Errorf("loan = %s outstanding %s", loan.Status, loan.OutstandingAmount)
	}
	assertAmount(t, "balance", balanceOf(t, mem, acct), "50000")
	after, _ := svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
	if len(pendingRows(after.Installments)) != 0 {
		t.Error("pending installments left")
	}
	if _, err := mem.GetOccurrence(ctx, feb.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("pending occurrence kept: %v", err)
	}
	if _, err := svc.PrecloseLoan(ctx, user, ls.Loan.ID, PrecloseInput{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second preclose: err = %v", err)
	}
}

func TestBalanceTransferClosesTarget(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 3, 1))
	user := uuid.New()
	target := personalLoan(nil)
	target.PrincipalAmount = dec("480000")
	target.TenureMonths = 60
	old, err := svc.CreateLoan(ctx, user, target)
	if err != nil {
		t.Fatalf("CreateLoan target: %v", err)
	}
	bt := personalLoan(nil)
	bt.Name = "BT"
	bt.PrincipalAmount = dec("500000")
	bt.InterestRate = dec("9")
	bt.TenureMonths = 60
	btLoan, err := svc.CreateLoan(ctx, user, bt)
	if err != nil {
		t.Fatalf("CreateLoan bt: %v", err)
	}

	res, err := svc.DisburseBalanceTransfer(ctx, user, btLoan.Loan.ID, BalanceTransferInput{
		Targets: []BtTarget{{LoanID: old.Loan.ID}},
	})
	if err != nil {
		t.Fatalf("DisburseBalanceTransfer: %v", err)
	}
	if len(res.Allocations) != 1 {
		t.Fatalf("allocations = %d", len(res.Allocations))
	}
	a := res.Allocations[0]
	assertAmount(t, "original", a.OriginalOutstandingAmount, "480000")
	assertAmount(t, "transferred", a.TransferredAmount, "500000")
	assertAmount(t, "delta", res.Delta, "20000")

	closed, _ := svc.GetLoanSchedule(ctx, user, old.Loan.ID)
	if closed.Loan.Status != models.LoanClosedBT || !closed.Loan.OutstandingAmount.IsZero() {
		t.Errorf("target = %s outstanding %s", closed.Loan.Status, closed.Loan.OutstandingAmount)
	}
	if len(pendingRows(closed.Installments)) != 0 {
		t.Error("target still has pending installments")
	}
	btView, _ := svc.GetLoanSchedule(ctx, user, btLoan.Loan.ID)
	if len(btView.BtAllocations) != 1 {
		t.Errorf("bt allocations = %d", len(btView.BtAllocations))
	}

	gen, _ := svc.Generate(ctx, user, 4, 2025)
	for _, o := range gen.Occurrences {
		if o.SourceID == old.Loan.ID {
			t.Errorf("closed loan still generates %q", o.Name)
		}
	}

	_, err = svc.DisburseBalanceTransfer(ctx, user, btLoan.Loan.ID, BalanceTransferInput{
		Targets: []BtTarget{{LoanID: old.Loan.ID}},
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("repeat transfer: err = %v", err)
	}
}

func TestUnmarkOnSettledLoanRejected(t *testing.T) {
	tests := []struct {
		name   string
		settle func(t *testing.T, svc *Service, user, loanID uuid.UUID)
		status models.LoanStatus
	}{
		{
			name: "balance transfer",
			settle: func(t *testing.T, svc *Service, user, loanID uuid.UUID) {
				bt := personalLoan(nil)
				bt.Name = "BT"
				bt.PrincipalAmount = dec("95000")
				btLoan, err := svc.CreateLoan(ctx, user, bt)
				if err != nil {
					t.Fatalf("CreateLoan bt: %v", err)
				}
				if _, err := svc.DisburseBalanceTransfer(ctx, user, btLoan.Loan.ID, BalanceTransferInput{
					Targets: []BtTarget{{LoanID: loanID}},
				}); err != nil {
					t.Fatalf("DisburseBalanceTransfer: %v", err)
				}
			},
			status: models.LoanClosedBT,
		},
		{
			name: "preclosure",
			settle: func(t *testing.T, svc *Service, user, loanID uuid.UUID) {
				if _, err := svc.PrecloseLoan(ctx, user, loanID, PrecloseInput{}); err != nil {
					t.Fatalf("PrecloseLoan: %v", err)
				}
			},
			status: models.LoanPreclosed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mem := newTestService(t, date(2025, 2, 5))
			user := uuid.New()
			acct := seedAccount(t, mem, user, models.AccountTypeBank, "200000")
			ls, err := svc.CreateLoan(ctx, user, personalLoan(&acct))
			if err != nil {
				t.Fatalf("CreateLoan: %v", err)
			}
			feb := loanOccurrence(t, svc, user, ls.Loan.ID, 2, 2025)
			if _, err := svc.MarkPaid(ctx, user, feb.ID, PaymentInput{}); err != nil {
				t.Fatalf("MarkPaid: %v", err)
			}
			tt.settle(t, svc, user, ls.Loan.ID)
			before := balanceOf(t, mem, acct)

			if _, err := svc.Unmark(ctx, user, feb.ID); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("Unmark: err = %v, want invalid transition", err)
			}

			after, _ := svc.GetLoanSchedule(ctx, user, ls.Loan.ID)
			if after.Loan.Status != tt.status || !after.Loan.OutstandingAmount.IsZero() {
				t.Errorf("loan = %s outstanding %s", after.Loan.Status, after.Loan.OutstandingAmount)
			}
			if after.Installments[0].Status != models.InstallmentPaid {
				t.Errorf("installment #1 = %s", after.Installments[0].Status)
			}
			o, _ := mem.GetOccurrence(ctx, feb.ID)
			if o.Status != models.OccurrencePaid {
				t.Errorf("occurrence = %s", o.Status)
			}
			if _, err := mem.FindTransactionByLinkRef(ctx, models.OccurrenceLink(feb.ID)); err != nil {
				t.Errorf("payment transaction removed: %v", err)
			}
			if b := balanceOf(t, mem, acct); !b.Equal(before) {
				t.Errorf("balance = %s, want %s", b, before)
			}
		})
	}
}

func TestBalanceTransferRejectsOverAllocation(t *testing.T) {
	svc, _ := newTestService(t, date(2025, 3, 1))
	user := uuid.New()
	a, _ := svc.CreateLoan(ctx, user, personalLoan(nil))
	b, _ := svc.CreateLoan(ctx, user, personalLoan(nil))
	bt := personalLoan(nil)
	bt.PrincipalAmount = dec("150000")
	btLoan, err := svc.CreateLoan(ctx, user, bt)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	_, err = svc.DisburseBalanceTransfer(ctx, user, btLoan.Loan.ID, BalanceTransferInput{
		Targets: []BtTarget{{LoanID: a.Loan.ID}, {LoanID: b.Loan.ID}},
	})
	assertValidation(t, err, "targets")

	first, _ := svc.GetLoanSchedule(ctx, user, a.Loan.ID)
	if first.Loan.Status != models.LoanActive {
		t.Errorf("first target closed by a failed transfer")
	}
}

type stubRates struct{ rate decimal.Decimal }

func (s stubRates) GetKeyRate(context.Context) (decimal.Decimal, error) { return s.rate, nil }

func TestRefreshFloatingRate(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	mem := repository.NewMemory()
	svc := NewService(mem, FixedClock(date(2025, 1, 20)), stubRates{rate: dec("16")}, log)
	user := uuid.New()

	in := personalLoan(nil)
	in.RateSpread = decPtr("2.5")
	ls, err := svc.CreateLoan(ctx, user, in)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	res, err := svc.RefreshFloatingRate(ctx, user, ls.Loan.ID)
	if err != nil {
		t.Fatalf("RefreshFloatingRate: %v", err)
	}
	if !res.Changed {
		t.Fatal("rate not changed")
	}
	assertAmount(t, "new rate", res.NewRate, "18.5")
	assertAmount(t, "loan rate", res.Loan.Loan.InterestRate, "18.5")
	assertAmount(t, "emi kept", res.Loan.Loan.EMIAmount, "8884.88")
	if last := res.Loan.Terms[len(res.Loan.Terms)-1]; last.Reason != ReasonRateRevision {
		t.Errorf("term reason = %q", last.Reason)
	}

	res, err = svc.RefreshFloatingRate(ctx, user, ls.Loan.ID)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if res.Changed {
		t.Error("unchanged key rate produced a revision")
	}

	fixed, _ := svc.CreateLoan(ctx, user, personalLoan(nil))
	_, err = svc.RefreshFloatingRate(ctx, user, fixed.Loan.ID)
	assertValidation(t, err, "rate_spread")
}
