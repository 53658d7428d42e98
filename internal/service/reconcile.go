package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentInput carries the details of a payment or credit. Unset fields fall back to the
// occurrence's account, its expected amount and today.
type PaymentInput struct {
	AccountID *uuid.UUID       `json:"account_id"`
	Date      *time.Time       `json:"date"`
	Amount    *decimal.Decimal `json:"amount"`
}

// ReconcileResult is the outcome of a reconciliation call. Applied is false when the
// call found the occurrence already in the requested state and did nothing.
type ReconcileResult struct {
	Occurrence  *models.Occurrence  `json:"occurrence"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Applied     bool                `json:"applied"`
	Warnings    []string            `json:"warnings,omitempty"`
}

func ownedOccurrence(ctx context.Context, st repository.Store, userID, id uuid.UUID) (*models.Occurrence, error) {
	o, err := st.LockOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("occurrence %s: %w", id, repository.ErrNotFound)
	}
	return o, nil
}

// MarkPaid moves a pending occurrence to paid, recording the ledger transaction and the
// balance change its flags ask for. Everything is applied in one unit; a paid occurrence
// is left untouched so a retried request never debits twice.
func (s *Service) MarkPaid(ctx context.Context, userID, occurrenceID uuid.UUID, in PaymentInput) (*ReconcileResult, error) {
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be positive")
	}
	res := &ReconcileResult{}
	err := s.store.InTx(ctx, func(st repository.Store) error {
		o, err := ownedOccurrence(ctx, st, userID, occurrenceID)
		if err != nil {
			return err
		}
		res.Occurrence = o
		switch o.Status {
		case models.OccurrencePaid:
			return nil
		case models.OccurrenceSkipped:
			return fmt.Errorf("occurrence %s is skipped: %w", o.ID, ErrInvalidTransition)
		}

		amount := in.Amount
		if amount == nil {
			amount = o.Amount
		}
		if amount == nil || !amount.IsPositive() {
			return invalid("amount", "required: occurrence has no expected amount")
		}
		paid := models.RoundMoney(*amount)
		date := s.clock.Today()
		if in.Date != nil {
			date = schedule.Truncate(*in.Date)
		}
		accountID := o.AccountID
		if in.AccountID != nil {
			accountID = in.AccountID
		}

		if o.AffectTransaction || o.AffectAccountBalance {
			if accountID == nil {
				return invalid("account_id", "required to record the payment")
			}
			if _, err := ownedAccount(ctx, st, userID, *accountID); err != nil {
				return err
			}
		}
		if o.AffectTransaction {
			tx := &models.Transaction{
				UserID:              userID,
				AccountID:           *accountID,
				CategoryID:          o.CategoryID,
				Type:                models.TransactionTypeDebit,
				Amount:              paid,
				Description:         o.Name,
				TransactionDate:     date,
				PaymentOccurrenceID: &o.ID,
			}
			if err := st.CreateTransaction(ctx, tx); err != nil {
				return fmt.Errorf("failed to create transaction: %w", err)
			}
			o.TransactionID = &tx.ID
			res.Transaction = tx
		}
		if o.AffectAccountBalance {
			if err := st.AdjustAccountBalance(ctx, *accountID, paid.Neg()); err != nil {
				return fmt.Errorf("failed to debit account: %w", err)
			}
		}

		switch o.Kind {
		case models.SourceLoan:
			w, err := s.applyLoanPayment(ctx, st, o, paid, date)
			if err != nil {
				return err
			}
			res.Warnings = append(res.Warnings, w...)
		case models.SourceInsurance:
			if err := applyPremiumPayment(ctx, st, o, &paid, &date, models.InstallmentPaid); err != nil {
				return err
			}
		}

		o.Status = models.OccurrencePaid
		o.PaidAt = &date
		o.PaidAmount = &paid
		o.PaidFromAccountID = accountID
		if err := st.UpdateOccurrence(ctx, o); err != nil {
			return fmt.Errorf("failed to update occurrence: %w", err)
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logResult(res, "Occurrence marked paid")
	return res, nil
}

// Unmark returns a paid occurrence to pending, deleting its linked transaction and giving
// the amount back to the account. When the transaction was already deleted elsewhere the
// balance is left alone and a warning is returned.
func (s *Service) Unmark(ctx context.Context, userID, occurrenceID uuid.UUID) (*ReconcileResult, error) {
	res := &ReconcileResult{}
	err := s.store.InTx(ctx, func(st repository.Store) error {
		o, err := ownedOccurrence(ctx, st, userID, occurrenceID)
		if err != nil {
			return err
		}
		res.Occurrence = o
		switch o.Status {
		case models.OccurrencePending:
			return nil
		case models.OccurrenceSkipped:
			return fmt.Errorf("occurrence %s is skipped: %w", o.ID, ErrInvalidTransition)
		}

		restore := o.AffectAccountBalance
		if o.AffectTransaction {
			tx, err := st.FindTransactionByLinkRef(ctx, models.OccurrenceLink(o.ID))
			switch {
			case errors.Is(err, repository.ErrNotFound):
				restore = false
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("transaction for %q was already deleted; account balance not restored", o.Name))
			case err != nil:
				return fmt.Errorf("failed to find linked transaction: %w", err)
			default:
				if err := st.DeleteTransaction(ctx, tx.ID); err != nil {
					return fmt.Errorf("failed to delete transaction: %w", err)
				}
				res.Transaction = tx
			}
		}
		if restore && o.PaidFromAccountID != nil && o.PaidAmount != nil {
			if err := st.AdjustAccountBalance(ctx, *o.PaidFromAccountID, *o.PaidAmount); err != nil {
				return fmt.Errorf("failed to restore account balance: %w", err)
			}
		}

		switch o.Kind {
		case models.SourceLoan:
			w, err := s.revertLoanPayment(ctx, st, o)
			if err != nil {
				return err
			}
			res.Warnings = append(res.Warnings, w...)
		case models.SourceInsurance:
			if err := applyPremiumPayment(ctx, st, o, nil, nil, models.InstallmentPending); err != nil {
				return err
			}
		}

		o.ResetToPending()
		if err := st.UpdateOccurrence(ctx, o); err != nil {
			return fmt.Errorf("failed to update occurrence: %w", err)
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logResult(res, "Occurrence unmarked")
	return res, nil
}

// Skip marks a pending occurrence as deliberately not paid.
func (s *Service) Skip(ctx context.Context, userID, occurrenceID uuid.UUID) (*ReconcileResult, error) {
	res := &ReconcileResult{}
	err := s.store.InTx(ctx, func(st repository.Store) error {
		o, err := ownedOccurrence(ctx, st, userID, occurrenceID)
		if err != nil {
			return err
		}
		res.Occurrence = o
		switch o.Status {
		case models.OccurrenceSkipped:
			return nil
		case models.OccurrencePaid:
			return fmt.Errorf("occurrence %s is paid: %w", o.ID, ErrInvalidTransition)
		}
		o.Status = models.OccurrenceSkipped
		if err := st.UpdateOccurrence(ctx, o); err != nil {
			return fmt.Errorf("failed to update occurrence: %w", err)
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logResult(res, "Occurrence skipped")
	return res, nil
}

// Delete removes an occurrence that is not paid. A later Generate for the month recreates it.
func (s *Service) Delete(ctx context.Context, userID, occurrenceID uuid.UUID) error {
	return s.store.InTx(ctx, func(st repository.Store) error {
		o, err := ownedOccurrence(ctx, st, userID, occurrenceID)
		if err != nil {
			return err
		}
		if o.Status == models.OccurrencePaid {
			return fmt.Errorf("occurrence %s is paid, unmark it first: %w", o.ID, ErrInvalidTransition)
		}
		return st.DeleteOccurrence(ctx, o.ID)
	})
}

func (s *Service) logResult(res *ReconcileResult, msg string) {
	o := res.Occurrence
	entry := s.log.WithFields(logrus.Fields{
		"user_id":       o.UserID,
		"occurrence_id": o.ID,
		"kind":          o.Kind,
		"applied":       res.Applied,
	})
	for _, w := range res.Warnings {
		entry.Warn(w)
	}
	entry.Info(msg)
}

// applyLoanPayment settles the installment behind o and reduces the loan's outstanding by
// the principal received. A payment other than the scheduled EMI revises the terms.
func (s *Service) applyLoanPayment(ctx context.Context, st repository.Store, o *models.Occurrence, paid decimal.Decimal, date time.Time) ([]string, error) {
	if o.InstallmentID == nil {
		return []string{fmt.Sprintf("%q has no installment; loan balance not updated", o.Name)}, nil
	}
	loan, err := st.LockLoan(ctx, o.SourceID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanActive {
		return nil, fmt.Errorf("loan %s is %s: %w", loan.ID, loan.Status, ErrInvalidTransition)
	}
	inst, err := st.GetInstallment(ctx, *o.InstallmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.InstallmentPending {
		return nil, fmt.Errorf("installment #%d is %s: %w", inst.EMINumber, inst.Status, ErrInvalidTransition)
	}

	principal := paid.Sub(inst.InterestAmount)
	if principal.IsNegative() {
		principal = decimal.Zero
	}
	if principal.GreaterThan(loan.OutstandingAmount) {
		principal = loan.OutstandingAmount
	}
	inst.Status = models.InstallmentPaid
	inst.PaidAt = &date
	inst.PaidAmount = &paid
	inst.PrincipalReceived = &principal
	if err := st.UpdateInstallment(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to update installment: %w", err)
	}

	loan.OutstandingAmount = loan.OutstandingAmount.Sub(principal)
	loan.EMIsPaid++
	var warnings []string
	switch {
	case !loan.OutstandingAmount.IsPositive():
		if err := closeLoan(ctx, st, loan, date, o.ID); err != nil {
			return nil, err
		}
		loan.Status = models.LoanClosed
	case !paid.Equal(inst.EMIAmount):
		err := s.reviseTerms(ctx, st, loan, termRevision{
			rate:       loan.InterestRate,
			effective:  date,
			reason:     ReasonPaymentVariance,
			fromNumber: inst.EMINumber + 1,
		})
		if errors.Is(err, ErrInvalidTransition) {
			// nothing left to rebuild
			break
		}
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, fmt.Sprintf("payment of %s differs from EMI %s; remaining schedule rebuilt",
			paid.StringFixed(2), inst.EMIAmount.StringFixed(2)))
		return warnings, nil
	}
	if err := st.UpdateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	return warnings, nil
}

// revertLoanPayment undoes applyLoanPayment. When the payment differed from the EMI the
// installments after it are rebuilt from the restored balance.
func (s *Service) revertLoanPayment(ctx context.Context, st repository.Store, o *models.Occurrence) ([]string, error) {
	if o.InstallmentID == nil {
		return nil, nil
	}
	loan, err := st.LockLoan(ctx, o.SourceID)
	if err != nil {
		return nil, err
	}
	switch loan.Status {
	case models.LoanPreclosed, models.LoanClosedBT, models.LoanDefaulted:
		return nil, fmt.Errorf("loan %s is %s: %w", loan.ID, loan.Status, ErrInvalidTransition)
	}
	inst, err := st.GetInstallment(ctx, *o.InstallmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return []string{fmt.Sprintf("installment for %q no longer exists; loan balance not restored", o.Name)}, nil
	}
	if err != nil {
		return nil, err
	}
	if inst.Status != models.InstallmentPaid {
		return nil, nil
	}

	var warnings []string
	principal := models.ValueOrZero(inst.PrincipalReceived)
	variance := inst.PaidAmount != nil && !inst.PaidAmount.Equal(inst.EMIAmount)
	wasClosed := loan.Status == models.LoanClosed
	inst.Status = models.InstallmentPending
	inst.PaidAt = nil
	inst.PaidAmount = nil
	inst.PrincipalReceived = nil
	if err := st.UpdateInstallment(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to update installment: %w", err)
	}

	if wasClosed {
		rows, err := st.ListInstallments(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if rows[i].Status != models.InstallmentCancelled {
				continue
			}
			rows[i].Status = models.InstallmentPending
			if err := st.UpdateInstallment(ctx, &rows[i]); err != nil {
				return nil, fmt.Errorf("failed to reopen installment: %w", err)
			}
		}
		terms, err := st.ListLoanTerms(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		if n := len(terms); n > 0 && terms[n-1].EffectiveTo != nil {
			terms[n-1].EffectiveTo = nil
			if err := st.UpdateLoanTerm(ctx, &terms[n-1]); err != nil {
				return nil, fmt.Errorf("failed to reopen loan term: %w", err)
			}
		}
		loan.Status = models.LoanActive
		loan.ClosedAt = nil
	}
	loan.OutstandingAmount = loan.OutstandingAmount.Add(principal)
	if loan.EMIsPaid > 0 {
		loan.EMIsPaid--
	}
	if err := st.UpdateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	// A closing payment cancelled the original tail, which is reopened above as it was.
	if variance && !wasClosed {
		err := s.reviseTerms(ctx, st, loan, termRevision{
			rate:       loan.InterestRate,
			effective:  s.clock.Today(),
			reason:     ReasonPaymentReversal,
			fromNumber: inst.EMINumber + 1,
		})
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, fmt.Sprintf("schedule after %q rebuilt from the restored balance", o.Name))
	}
	return warnings, nil
}

// applyPremiumPayment moves the premium row behind o to status.
func applyPremiumPayment(ctx context.Context, st repository.Store, o *models.Occurrence, paid *decimal.Decimal, date *time.Time, status models.InstallmentStatus) error {
	if o.InstallmentID == nil {
		return nil
	}
	p, err := st.GetPremium(ctx, *o.InstallmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p.Status = status
	p.PaidAt = date
	p.PaidAmount = paid
	if err := st.UpdatePremium(ctx, p); err != nil {
		return fmt.Errorf("failed to update premium: %w", err)
	}
	return nil
}
