package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/amortization"
	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Term change reasons.
const (
	ReasonOrigination     = "origination"
	ReasonRevision        = "revision"
	ReasonRateRevision    = "rate_revision"
	ReasonPaymentVariance = "payment_variance"
	ReasonPaymentReversal = "payment_reversal"
)

// LoanInput describes a new loan. EMIAmount defaults to the annuity EMI, FirstEMIDate to
// EMIDay of the month after StartDate.
type LoanInput struct {
	AccountID            *uuid.UUID       `json:"account_id"`
	Name                 string           `json:"name"`
	Lender               string           `json:"lender"`
	PrincipalAmount      decimal.Decimal  `json:"principal_amount"`
	InterestRate         decimal.Decimal  `json:"interest_rate"`
	RateSpread           *decimal.Decimal `json:"rate_spread"`
	TenureMonths         int              `json:"tenure_months"`
	EMIAmount            *decimal.Decimal `json:"emi_amount"`
	EMIDay               int              `json:"emi_day"`
	StartDate            time.Time        `json:"start_date"`
	FirstEMIDate         *time.Time       `json:"first_emi_date"`
	IsExistingLoan       bool             `json:"is_existing_loan"`
	EMIsPaid             int              `json:"emis_paid"`
	OutstandingAmount    *decimal.Decimal `json:"outstanding_amount"`
	AffectTransaction    *bool            `json:"affect_transaction"`
	AffectAccountBalance *bool            `json:"affect_account_balance"`
}

// LoanSchedule is the read model of a loan.
type LoanSchedule struct {
	Loan          *models.Loan              `json:"loan"`
	Terms         []models.LoanTerm         `json:"terms"`
	Installments  []models.LoanInstallment  `json:"installments"`
	TotalInterest decimal.Decimal           `json:"total_interest"`
	BtAllocations []models.LoanBtAllocation `json:"bt_allocations,omitempty"`
}

func validateLoanInput(in *LoanInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	if !in.PrincipalAmount.IsPositive() {
		return invalid("principal_amount", "must be positive")
	}
	if in.InterestRate.IsNegative() {
		return invalid("interest_rate", "must not be negative")
	}
	if in.TenureMonths <= 0 {
		return invalid("tenure_months", "must be positive, got %d", in.TenureMonths)
	}
	if in.EMIDay < 0 || in.EMIDay > 31 {
		return invalid("emi_day", "must be 1-31, got %d", in.EMIDay)
	}
	if in.StartDate.IsZero() {
		return invalid("start_date", "required")
	}
	if in.IsExistingLoan && (in.EMIsPaid < 0 || in.EMIsPaid >= in.TenureMonths) {
		return invalid("emis_paid", "must be 0-%d, got %d", in.TenureMonths-1, in.EMIsPaid)
	}
	if in.EMIAmount != nil && !in.EMIAmount.IsPositive() {
		return invalid("emi_amount", "must be positive")
	}
	return nil
}

// CreateLoan stores a loan with its opening term and amortization schedule. Existing
// loans get only their remaining installments.
func (s *Service) CreateLoan(ctx context.Context, userID uuid.UUID, in LoanInput) (*LoanSchedule, error) {
	if err := validateLoanInput(&in); err != nil {
		return nil, err
	}
	if in.AccountID != nil {
		if _, err := ownedAccount(ctx, s.store, userID, *in.AccountID); err != nil {
			return nil, err
		}
	}

	principal := models.RoundMoney(in.PrincipalAmount)
	emi := amortization.EMI(principal, in.InterestRate, in.TenureMonths)
	if in.EMIAmount != nil {
		emi = models.RoundMoney(*in.EMIAmount)
	}
	if !emi.GreaterThan(amortization.FirstPeriodInterest(principal, in.InterestRate)) {
		return nil, invalid("emi_amount", "%s does not cover the first month's interest", emi.StringFixed(2))
	}

	start := schedule.Truncate(in.StartDate)
	emiDay := in.EMIDay
	var firstDue time.Time
	if in.FirstEMIDate != nil {
		firstDue = schedule.Truncate(*in.FirstEMIDate)
		if emiDay == 0 {
			emiDay = firstDue.Day()
		}
	} else {
		if emiDay == 0 {
			emiDay = start.Day()
		}
		m, y := schedule.AddMonths(int(start.Month()), start.Year(), 1)
		firstDue = schedule.ClampedDate(y, time.Month(m), emiDay)
	}

	params := amortization.Params{
		Principal:    principal,
		AnnualRate:   in.InterestRate,
		Tenure:       in.TenureMonths,
		EMI:          emi,
		FirstDueDate: firstDue,
		EMIDay:       emiDay,
	}
	outstanding := principal
	if in.IsExistingLoan && in.EMIsPaid > 0 {
		if in.OutstandingAmount != nil {
			outstanding = models.RoundMoney(*in.OutstandingAmount)
		} else {
			full, err := amortization.BuildSchedule(params)
			if err != nil {
				return nil, s.invariantFailure(err, userID)
			}
			outstanding = full[in.EMIsPaid-1].Outstanding
		}
		m, y := schedule.AddMonths(int(firstDue.Month()), firstDue.Year(), in.EMIsPaid)
		params.Principal = outstanding
		params.Tenure = in.TenureMonths - in.EMIsPaid
		params.FirstDueDate = schedule.ClampedDate(y, time.Month(m), emiDay)
		params.StartNumber = in.EMIsPaid + 1
	} else if in.OutstandingAmount != nil && in.IsExistingLoan {
		outstanding = models.RoundMoney(*in.OutstandingAmount)
		params.Principal = outstanding
	}

	rows, err := amortization.BuildSchedule(params)
	if err != nil {
		return nil, s.invariantFailure(err, userID)
	}

	loan := &models.Loan{
		UserID:               userID,
		AccountID:            in.AccountID,
		Name:                 strings.TrimSpace(in.Name),
		Lender:               in.Lender,
		PrincipalAmount:      principal,
		OutstandingAmount:    outstanding,
		InterestRate:         in.InterestRate,
		RateSpread:           in.RateSpread,
		TenureMonths:         in.TenureMonths,
		EMIAmount:            emi,
		EMIDay:               emiDay,
		StartDate:            start,
		FirstEMIDate:         firstDue,
		IsExistingLoan:       in.IsExistingLoan,
		Status:               models.LoanActive,
		AffectTransaction:    boolOr(in.AffectTransaction, true),
		AffectAccountBalance: boolOr(in.AffectAccountBalance, true),
	}
	if in.IsExistingLoan {
		loan.EMIsPaid = in.EMIsPaid
	}

	err = s.store.InTx(ctx, func(st repository.Store) error {
		if err := st.CreateLoan(ctx, loan); err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		term := &models.LoanTerm{
			LoanID:              loan.ID,
			EffectiveFrom:       start,
			InterestRate:        loan.InterestRate,
			TenureMonths:        loan.TenureMonths,
			EMIAmount:           emi,
			OutstandingAtChange: outstanding,
			Reason:              ReasonOrigination,
		}
		if err := st.CreateLoanTerm(ctx, term); err != nil {
			return fmt.Errorf("failed to create loan term: %w", err)
		}
		if err := st.CreateInstallments(ctx, toInstallments(loan.ID, rows)); err != nil {
			return fmt.Errorf("failed to create installments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"loan_id":      loan.ID,
		"installments": len(rows),
		"emi":          emi.StringFixed(2),
	}).Info("Loan created")
	return s.GetLoanSchedule(ctx, userID, loan.ID)
}

func (s *Service) invariantFailure(err error, userID uuid.UUID) error {
	var inv *amortization.InvariantError
	if errors.As(err, &inv) {
		s.log.WithError(err).WithField("user_id", userID).Error("Amortization schedule does not close")
	}
	return err
}

func toInstallments(loanID uuid.UUID, rows []amortization.Installment) []models.LoanInstallment {
	out := make([]models.LoanInstallment, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.LoanInstallment{
			LoanID:           loanID,
			EMINumber:        r.Number,
			DueDate:          r.DueDate,
			EMIAmount:        r.EMI,
			PrincipalAmount:  r.Principal,
			InterestAmount:   r.Interest,
			OutstandingAfter: r.Outstanding,
			Status:           models.InstallmentPending,
		})
	}
	return out
}

func ownedLoan(ctx context.Context, st repository.Store, userID, loanID uuid.UUID, lock bool) (*models.Loan, error) {
	var (
		l   *models.Loan
		err error
	)
	if lock {
		l, err = st.LockLoan(ctx, loanID)
	} else {
		l, err = st.GetLoan(ctx, loanID)
	}
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("loan %s: %w", loanID, repository.ErrNotFound)
	}
	return l, nil
}

// GetLoanSchedule returns the loan with its terms and installments.
func (s *Service) GetLoanSchedule(ctx context.Context, userID, loanID uuid.UUID) (*LoanSchedule, error) {
	loan, err := ownedLoan(ctx, s.store, userID, loanID, false)
	if err != nil {
		return nil, err
	}
	terms, err := s.store.ListLoanTerms(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan terms: %w", err)
	}
	rows, err := s.store.ListInstallments(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	allocs, err := s.store.ListBtAllocations(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bt allocations: %w", err)
	}
	total := decimal.Zero
	for _, r := range rows {
		if r.Status != models.InstallmentCancelled {
			total = total.Add(r.InterestAmount)
		}
	}
	return &LoanSchedule{Loan: loan, Terms: terms, Installments: rows, TotalInterest: total, BtAllocations: allocs}, nil
}

// TermChangeInput revises a loan. Omitted fields keep their current value; when only one
// of EMIAmount and TenureMonths is given the other is derived, and when neither is the
// EMI is kept and the tenure absorbs the change.
type TermChangeInput struct {
	InterestRate  *decimal.Decimal `json:"interest_rate"`
	EMIAmount     *decimal.Decimal `json:"emi_amount"`
	TenureMonths  *int             `json:"tenure_months"`
	EffectiveFrom *time.Time       `json:"effective_from"`
	Reason        string           `json:"reason"`
}

// ChangeLoanTerms closes the open term and rebuilds the unpaid installments under the
// new one. Paid installments are never touched.
func (s *Service) ChangeLoanTerms(ctx context.Context, userID, loanID uuid.UUID, in TermChangeInput) (*LoanSchedule, error) {
	if in.InterestRate != nil && in.InterestRate.IsNegative() {
		return nil, invalid("interest_rate", "must not be negative")
	}
	if in.TenureMonths != nil && *in.TenureMonths <= 0 {
		return nil, invalid("tenure_months", "must be positive, got %d", *in.TenureMonths)
	}
	if in.EMIAmount != nil && !in.EMIAmount.IsPositive() {
		return nil, invalid("emi_amount", "must be positive")
	}
	reason := in.Reason
	if reason == "" {
		reason = ReasonRevision
	}
	effective := s.clock.Today()
	if in.EffectiveFrom != nil {
		effective = schedule.Truncate(*in.EffectiveFrom)
	}

	err := s.store.InTx(ctx, func(st repository.Store) error {
		loan, err := ownedLoan(ctx, st, userID, loanID, true)
		if err != nil {
			return err
		}
		rate := loan.InterestRate
		if in.InterestRate != nil {
			rate = *in.InterestRate
		}
		return s.reviseTerms(ctx, st, loan, termRevision{
			rate:      rate,
			emi:       in.EMIAmount,
			tenure:    in.TenureMonths,
			effective: effective,
			reason:    reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetLoanSchedule(ctx, userID, loanID)
}

type termRevision struct {
	rate      decimal.Decimal
	emi       *decimal.Decimal
	tenure    *int
	effective time.Time
	reason    string
	// fromNumber is the first installment rebuilt; zero means the first unpaid one.
	fromNumber int
}

// reviseTerms runs inside a transaction with loan locked.
func (s *Service) reviseTerms(ctx context.Context, st repository.Store, loan *models.Loan, rev termRevision) error {
	if loan.Status != models.LoanActive {
		return fmt.Errorf("loan %s is %s: %w", loan.ID, loan.Status, ErrInvalidTransition)
	}
	rows, err := st.ListInstallments(ctx, loan.ID)
	if err != nil {
		return fmt.Errorf("failed to list installments: %w", err)
	}

	from := rev.fromNumber
	var firstDue time.Time
	replaced := map[uuid.UUID]bool{}
	for _, r := range rows {
		if r.Status != models.InstallmentPending {
			continue
		}
		if from == 0 {
			from = r.EMINumber
		}
		if r.EMINumber >= from {
			replaced[r.ID] = true
			if firstDue.IsZero() || r.DueDate.Before(firstDue) {
				firstDue = r.DueDate
			}
		}
	}
	if from == 0 {
		return fmt.Errorf("loan %s has no unpaid installments: %w", loan.ID, ErrInvalidTransition)
	}
	// Settled rows past from would collide with rebuilt numbers.
	for _, r := range rows {
		if r.EMINumber >= from && r.Status == models.InstallmentPaid {
			return fmt.Errorf("loan %s installment #%d is already paid: %w", loan.ID, r.EMINumber, ErrInvalidTransition)
		}
	}
	if firstDue.IsZero() {
		m, y := schedule.AddMonths(int(loan.FirstEMIDate.Month()), loan.FirstEMIDate.Year(), from-1)
		firstDue = schedule.ClampedDate(y, time.Month(m), loan.EMIDay)
	}

	// Unpaid rows before from keep their principal; the rebuilt tail covers the rest.
	outstanding := loan.OutstandingAmount
	for _, r := range rows {
		if r.Status == models.InstallmentPending && r.EMINumber < from {
			outstanding = outstanding.Sub(r.PrincipalAmount)
		}
	}
	if !outstanding.IsPositive() {
		return s.truncateSchedule(ctx, st, loan, from, replaced)
	}
	var emi decimal.Decimal
	var tenure int
	switch {
	case rev.emi != nil && rev.tenure != nil:
		emi, tenure = models.RoundMoney(*rev.emi), *rev.tenure
	case rev.tenure != nil:
		tenure = *rev.tenure
		emi = amortization.EMI(outstanding, rev.rate, tenure)
	default:
		emi = loan.EMIAmount
		if rev.emi != nil {
			emi = models.RoundMoney(*rev.emi)
		}
		tenure = amortization.RemainingTenure(outstanding, rev.rate, emi)
	}
	if tenure <= 0 || !emi.GreaterThan(amortization.FirstPeriodInterest(outstanding, rev.rate)) {
		return invalid("emi_amount", "%s does not cover the monthly interest on %s", emi.StringFixed(2), outstanding.StringFixed(2))
	}

	future, err := amortization.RebuildFuture(amortization.Params{
		Principal:    outstanding,
		AnnualRate:   rev.rate,
		Tenure:       tenure,
		EMI:          emi,
		FirstDueDate: firstDue,
		EMIDay:       loan.EMIDay,
		StartNumber:  from,
	})
	if err != nil {
		return s.invariantFailure(err, loan.UserID)
	}

	open, err := st.GetOpenLoanTerm(ctx, loan.ID)
	switch {
	case err == nil:
		open.EffectiveTo = &rev.effective
		if err := st.UpdateLoanTerm(ctx, open); err != nil {
			return fmt.Errorf("failed to close loan term: %w", err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to load open loan term: %w", err)
	}
	term := &models.LoanTerm{
		LoanID:              loan.ID,
		EffectiveFrom:       rev.effective,
		InterestRate:        rev.rate,
		TenureMonths:        len(future),
		EMIAmount:           emi,
		OutstandingAtChange: outstanding,
		Reason:              rev.reason,
	}
	if err := st.CreateLoanTerm(ctx, term); err != nil {
		return fmt.Errorf("failed to open loan term: %w", err)
	}

	if _, err := st.DeletePendingInstallmentsFrom(ctx, loan.ID, from); err != nil {
		return err
	}
	fresh := toInstallments(loan.ID, future)
	if err := st.CreateInstallments(ctx, fresh); err != nil {
		return fmt.Errorf("failed to create installments: %w", err)
	}
	if err := relinkLoanOccurrences(ctx, st, loan.ID, replaced, fresh); err != nil {
		return err
	}

	loan.InterestRate = rev.rate
	loan.EMIAmount = emi
	loan.TenureMonths = from - 1 + len(future)
	if err := st.UpdateLoan(ctx, loan); err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"reason":      rev.reason,
		"rate":        rev.rate.String(),
		"emi":         emi.StringFixed(2),
		"from_number": from,
		"rebuilt":     len(future),
	}).Info("Loan terms changed")
	return nil
}

// truncateSchedule drops the unpaid installments from number from on when the rows before
// it already repay the outstanding balance.
func (s *Service) truncateSchedule(ctx context.Context, st repository.Store, loan *models.Loan, from int, replaced map[uuid.UUID]bool) error {
	if _, err := st.DeletePendingInstallmentsFrom(ctx, loan.ID, from); err != nil {
		return err
	}
	if err := relinkLoanOccurrences(ctx, st, loan.ID, replaced, nil); err != nil {
		return err
	}
	loan.TenureMonths = from - 1
	if err := st.UpdateLoan(ctx, loan); err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	s.log.WithFields(logrus.Fields{"loan_id": loan.ID, "from_number": from}).Info("Loan schedule truncated")
	return nil
}

// relinkLoanOccurrences points pending occurrences at the rebuilt installment of the same
// month, or drops them when the rebuilt schedule has nothing due that month.
func relinkLoanOccurrences(ctx context.Context, st repository.Store, loanID uuid.UUID, replaced map[uuid.UUID]bool, fresh []models.LoanInstallment) error {
	occs, err := st.ListOccurrencesBySource(ctx, models.SourceLoan, loanID)
	if err != nil {
		return err
	}
	for i := range occs {
		o := &occs[i]
		if o.Status != models.OccurrencePending || o.InstallmentID == nil || !replaced[*o.InstallmentID] {
			continue
		}
		var match *models.LoanInstallment
		for j := range fresh {
			if schedule.InMonth(fresh[j].DueDate, o.Month, o.Year) {
				match = &fresh[j]
				break
			}
		}
		if match == nil {
			if err := st.DeleteOccurrence(ctx, o.ID); err != nil {
				return fmt.Errorf("failed to drop occurrence: %w", err)
			}
			continue
		}
		id := match.ID
		o.InstallmentID = &id
		o.DueDate = match.DueDate
		o.Amount = models.MoneyPtr(match.EMIAmount)
		if err := st.UpdateOccurrence(ctx, o); err != nil {
			return fmt.Errorf("failed to relink occurrence: %w", err)
		}
	}
	return nil
}

// closeLoan cancels every unpaid installment, drops pending occurrences other than keep
// and ends the open term. The caller sets the closing status.
func closeLoan(ctx context.Context, st repository.Store, loan *models.Loan, on time.Time, keep uuid.UUID) error {
	rows, err := st.ListInstallments(ctx, loan.ID)
	if err != nil {
		return fmt.Errorf("failed to list installments: %w", err)
	}
	for i := range rows {
		if rows[i].Status != models.InstallmentPending {
			continue
		}
		rows[i].Status = models.InstallmentCancelled
		if err := st.UpdateInstallment(ctx, &rows[i]); err != nil {
			return fmt.Errorf("failed to cancel installment: %w", err)
		}
	}
	if err := deletePendingOccurrences(ctx, st, models.SourceLoan, loan.ID, keep); err != nil {
		return err
	}
	open, err := st.GetOpenLoanTerm(ctx, loan.ID)
	if err == nil {
		open.EffectiveTo = &on
		if err := st.UpdateLoanTerm(ctx, open); err != nil {
			return fmt.Errorf("failed to close loan term: %w", err)
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	loan.OutstandingAmount = decimal.Zero
	loan.ClosedAt = &on
	return nil
}

// PrecloseInput pays a loan off early. Amount defaults to the outstanding balance and
// AccountID to the loan's account.
type PrecloseInput struct {
	AccountID *uuid.UUID       `json:"account_id"`
	Date      *time.Time       `json:"date"`
	Amount    *decimal.Decimal `json:"amount"`
}

// PrecloseLoan settles the outstanding balance from an account and closes the loan.
func (s *Service) PrecloseLoan(ctx context.Context, userID, loanID uuid.UUID, in PrecloseInput) (*models.Loan, error) {
	on := s.clock.Today()
	if in.Date != nil {
		on = schedule.Truncate(*in.Date)
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be positive")
	}

	var loan *models.Loan
	err := s.store.InTx(ctx, func(st repository.Store) error {
		var err error
		loan, err = ownedLoan(ctx, st, userID, loanID, true)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanActive {
			return fmt.Errorf("loan %s is %s: %w", loan.ID, loan.Status, ErrInvalidTransition)
		}
		amount := loan.OutstandingAmount
		if in.Amount != nil {
			amount = models.RoundMoney(*in.Amount)
		}

		if loan.AffectTransaction || loan.AffectAccountBalance {
			accountID := loan.AccountID
			if in.AccountID != nil {
				accountID = in.AccountID
			}
			if accountID == nil {
				return invalid("account_id", "required to settle the loan")
			}
			if _, err := ownedAccount(ctx, st, userID, *accountID); err != nil {
				return err
			}
			if loan.AffectTransaction {
				tx := &models.Transaction{
					UserID:          userID,
					AccountID:       *accountID,
					Type:            models.TransactionTypeDebit,
					Amount:          amount,
					Description:     fmt.Sprintf("Preclosure: %s", loan.Name),
					TransactionDate: on,
				}
				if err := st.CreateTransaction(ctx, tx); err != nil {
					return fmt.Errorf("failed to record preclosure: %w", err)
				}
			}
			if loan.AffectAccountBalance {
				if err := st.AdjustAccountBalance(ctx, *accountID, amount.Neg()); err != nil {
					return fmt.Errorf("failed to debit account: %w", err)
				}
			}
		}

		if err := closeLoan(ctx, st, loan, on, uuid.Nil); err != nil {
			return err
		}
		loan.Status = models.LoanPreclosed
		if err := st.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("failed to update loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "loan_id": loanID}).Info("Loan preclosed")
	return loan, nil
}

// BtTarget earmarks part of a balance-transfer loan for one target loan. A nil Amount
// transfers the target's outstanding, or the whole BT principal when it is the only target.
type BtTarget struct {
	LoanID uuid.UUID        `json:"loan_id"`
	Amount *decimal.Decimal `json:"amount"`
}

// BalanceTransferInput lists the loans a BT disbursal closes.
type BalanceTransferInput struct {
	Targets []BtTarget `json:"targets"`
	Date    *time.Time `json:"date"`
}

// BalanceTransferResult reports the allocations made. Delta is the transferred amount
// minus the outstanding it closed, summed over the targets.
type BalanceTransferResult struct {
	BtLoan      *models.Loan              `json:"bt_loan"`
	Allocations []models.LoanBtAllocation `json:"allocations"`
	Delta       decimal.Decimal           `json:"delta"`
}

// DisburseBalanceTransfer closes each target loan with the BT loan's disbursal.
func (s *Service) DisburseBalanceTransfer(ctx context.Context, userID, btLoanID uuid.UUID, in BalanceTransferInput) (*BalanceTransferResult, error) {
	if len(in.Targets) == 0 {
		return nil, invalid("targets", "at least one target loan is required")
	}
	on := s.clock.Today()
	if in.Date != nil {
		on = schedule.Truncate(*in.Date)
	}

	res := &BalanceTransferResult{Delta: decimal.Zero}
	err := s.store.InTx(ctx, func(st repository.Store) error {
		bt, err := ownedLoan(ctx, st, userID, btLoanID, true)
		if err != nil {
			return err
		}
		if bt.Status != models.LoanActive {
			return fmt.Errorf("loan %s is %s: %w", bt.ID, bt.Status, ErrInvalidTransition)
		}
		res.BtLoan = bt

		existing, err := st.ListBtAllocations(ctx, bt.ID)
		if err != nil {
			return fmt.Errorf("failed to list bt allocations: %w", err)
		}
		allocated := decimal.Zero
		for _, a := range existing {
			allocated = allocated.Add(a.TransferredAmount)
		}

		seen := map[uuid.UUID]bool{}
		for _, t := range in.Targets {
			if t.LoanID == bt.ID {
				return invalid("targets", "a loan cannot transfer to itself")
			}
			if seen[t.LoanID] {
				return invalid("targets", "loan %s listed twice", t.LoanID)
			}
			seen[t.LoanID] = true

			target, err := ownedLoan(ctx, st, userID, t.LoanID, true)
			if err != nil {
				return err
			}
			if target.Status != models.LoanActive {
				return fmt.Errorf("loan %s is %s: %w", target.ID, target.Status, ErrInvalidTransition)
			}
			original := target.OutstandingAmount
			transferred := original
			switch {
			case t.Amount != nil:
				if !t.Amount.IsPositive() {
					return invalid("amount", "must be positive")
				}
				transferred = models.RoundMoney(*t.Amount)
			case len(in.Targets) == 1 && len(existing) == 0:
				transferred = bt.PrincipalAmount
			}
			allocated = allocated.Add(transferred)
			if allocated.GreaterThan(bt.PrincipalAmount) {
				return invalid("targets", "allocations exceed the BT principal %s", bt.PrincipalAmount.StringFixed(2))
			}

			if err := closeLoan(ctx, st, target, on, uuid.Nil); err != nil {
				return err
			}
			target.Status = models.LoanClosedBT
			if err := st.UpdateLoan(ctx, target); err != nil {
				return fmt.Errorf("failed to close target loan: %w", err)
			}

			alloc := &models.LoanBtAllocation{
				BtLoanID:                  bt.ID,
				TargetLoanID:              target.ID,
				OriginalOutstandingAmount: original,
				TransferredAmount:         transferred,
			}
			if err := st.CreateBtAllocation(ctx, alloc); err != nil {
				return fmt.Errorf("failed to record bt allocation: %w", err)
			}
			res.Allocations = append(res.Allocations, *alloc)
			res.Delta = res.Delta.Add(alloc.Delta())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"bt_loan": btLoanID,
		"targets": len(res.Allocations),
		"delta":   res.Delta.StringFixed(2),
	})
	if !res.Delta.IsZero() {
		entry.Warn("Balance transfer amount differs from closed outstanding")
	} else {
		entry.Info("Balance transfer disbursed")
	}
	return res, nil
}

// RateRefreshResult reports a floating-rate check.
type RateRefreshResult struct {
	KeyRate decimal.Decimal `json:"key_rate"`
	NewRate decimal.Decimal `json:"new_rate"`
	Changed bool            `json:"changed"`
	Loan    *LoanSchedule   `json:"loan"`
}

// RefreshFloatingRate reprices a floating-rate loan at key rate plus its spread. The EMI
// is kept and the tenure absorbs the change.
func (s *Service) RefreshFloatingRate(ctx context.Context, userID, loanID uuid.UUID) (*RateRefreshResult, error) {
	loan, err := ownedLoan(ctx, s.store, userID, loanID, false)
	if err != nil {
		return nil, err
	}
	if loan.RateSpread == nil {
		return nil, invalid("rate_spread", "loan %s has a fixed rate", loanID)
	}
	key, err := s.KeyRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get key rate: %w", err)
	}
	newRate := models.RoundMoney(key.Add(*loan.RateSpread))
	res := &RateRefreshResult{KeyRate: key, NewRate: newRate}

	if !newRate.Equal(loan.InterestRate) {
		rate := newRate
		if _, err := s.ChangeLoanTerms(ctx, userID, loanID, TermChangeInput{InterestRate: &rate, Reason: ReasonRateRevision}); err != nil {
			return nil, err
		}
		res.Changed = true
	}
	res.Loan, err = s.GetLoanSchedule(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	return res, nil
}
