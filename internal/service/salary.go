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

// MaxPaydays caps NextPaydays.
const MaxPaydays = 24

// SalaryProfileInput replaces the user's salary profile.
type SalaryProfileInput struct {
	PaydayRule        models.PaydayRule `json:"payday_rule"`
	FixedDay          *int              `json:"fixed_day"`
	WeekdayPreference *time.Weekday     `json:"weekday_preference"`
	WeekdayOrdinal    *int              `json:"weekday_ordinal"`
	MonthlyAmount     decimal.Decimal   `json:"monthly_amount"`
	AccountID         *uuid.UUID        `json:"account_id"`
	IsActive          *bool             `json:"is_active"`
}

// SaveSalaryProfile validates and stores the user's single salary profile.
func (s *Service) SaveSalaryProfile(ctx context.Context, userID uuid.UUID, in SalaryProfileInput) (*models.SalaryProfile, error) {
	p := &models.SalaryProfile{
		UserID:            userID,
		PaydayRule:        in.PaydayRule,
		FixedDay:          in.FixedDay,
		WeekdayPreference: in.WeekdayPreference,
		WeekdayOrdinal:    in.WeekdayOrdinal,
		MonthlyAmount:     models.RoundMoney(in.MonthlyAmount),
		AccountID:         in.AccountID,
		IsActive:          boolOr(in.IsActive, true),
	}
	if err := schedule.ValidateProfile(p); err != nil {
		return nil, asValidation(err)
	}
	if p.AccountID != nil {
		if _, err := ownedAccount(ctx, s.store, userID, *p.AccountID); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveSalaryProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save salary profile: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "rule": p.PaydayRule}).Info("Salary profile saved")
	return p, nil
}

// NextPaydays predicts count paydays starting with the current month.
func (s *Service) NextPaydays(ctx context.Context, userID uuid.UUID, count int) ([]time.Time, error) {
	if count < 1 || count > MaxPaydays {
		return nil, invalid("count", "must be 1-%d, got %d", MaxPaydays, count)
	}
	p, err := profileFor(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("salary profile for %s: %w", userID, repository.ErrNotFound)
	}
	return schedule.NextPaydays(p, s.clock.Today(), count)
}

// EnsureSalaryCycle returns the month's salary cycle, creating it from the profile's
// prediction when missing.
func (s *Service) EnsureSalaryCycle(ctx context.Context, userID uuid.UUID, month, year int) (*models.SalaryCycle, bool, error) {
	if err := checkMonth(month, year); err != nil {
		return nil, false, err
	}
	p, err := profileFor(ctx, s.store, userID)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, invalid("salary_profile", "no active salary profile")
	}
	expected, err := schedule.Predict(p, month, year)
	if err != nil {
		return nil, false, asValidation(err)
	}
	c := &models.SalaryCycle{
		UserID:         userID,
		ProfileID:      p.ID,
		Month:          month,
		Year:           year,
		ExpectedDate:   expected,
		ExpectedAmount: p.MonthlyAmount,
		AccountID:      p.AccountID,
		Status:         models.SalaryPending,
	}
	created, err := s.store.InsertSalaryCycleIfAbsent(ctx, c)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create salary cycle: %w", err)
	}
	return c, created, nil
}

// SalaryResult is the outcome of a credit or uncredit call.
type SalaryResult struct {
	Cycle       *models.SalaryCycle `json:"cycle"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Applied     bool                `json:"applied"`
	Warnings    []string            `json:"warnings,omitempty"`
}

func ownedCycle(ctx context.Context, st repository.Store, userID, id uuid.UUID) (*models.SalaryCycle, error) {
	c, err := st.LockSalaryCycle(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("salary cycle %s: %w", id, repository.ErrNotFound)
	}
	return c, nil
}

// MarkSalaryCredited records the salary as received: a credit transaction linked to the
// cycle and the matching balance increase. A credited cycle is left untouched.
func (s *Service) MarkSalaryCredited(ctx context.Context, userID, cycleID uuid.UUID, in PaymentInput) (*SalaryResult, error) {
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be positive")
	}
	res := &SalaryResult{}
	err := s.store.InTx(ctx, func(st repository.Store) error {
		c, err := ownedCycle(ctx, st, userID, cycleID)
		if err != nil {
			return err
		}
		res.Cycle = c
		if c.Status == models.SalaryCredited {
			return nil
		}

		amount := c.ExpectedAmount
		if in.Amount != nil {
			amount = *in.Amount
		}
		amount = models.RoundMoney(amount)
		if !amount.IsPositive() {
			return invalid("amount", "required: cycle has no expected amount")
		}
		date := s.clock.Today()
		if in.Date != nil {
			date = schedule.Truncate(*in.Date)
		}
		accountID := c.AccountID
		if in.AccountID != nil {
			accountID = in.AccountID
		}
		if accountID == nil {
			return invalid("account_id", "required to credit salary")
		}
		if _, err := ownedAccount(ctx, st, userID, *accountID); err != nil {
			return err
		}

		tx := &models.Transaction{
			UserID:          userID,
			AccountID:       *accountID,
			Type:            models.TransactionTypeCredit,
			Amount:          amount,
			Description:     fmt.Sprintf("Salary %02d/%d", c.Month, c.Year),
			TransactionDate: date,
			SalaryCycleID:   &c.ID,
		}
		if err := st.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		if err := st.AdjustAccountBalance(ctx, *accountID, amount); err != nil {
			return fmt.Errorf("failed to credit account: %w", err)
		}

		c.Status = models.SalaryCredited
		c.ActualDate = &date
		c.ActualAmount = &amount
		c.AccountID = accountID
		c.TransactionID = &tx.ID
		if err := st.UpdateSalaryCycle(ctx, c); err != nil {
			return fmt.Errorf("failed to update salary cycle: %w", err)
		}
		res.Transaction = tx
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "cycle_id": cycleID, "applied": res.Applied}).Info("Salary credited")
	return res, nil
}

// UnmarkSalaryCredited reverses MarkSalaryCredited. When the credit transaction is gone
// the balance is left alone and a warning is returned.
func (s *Service) UnmarkSalaryCredited(ctx context.Context, userID, cycleID uuid.UUID) (*SalaryResult, error) {
	res := &SalaryResult{}
	err := s.store.InTx(ctx, func(st repository.Store) error {
		c, err := ownedCycle(ctx, st, userID, cycleID)
		if err != nil {
			return err
		}
		res.Cycle = c
		if c.Status != models.SalaryCredited {
			return nil
		}

		tx, err := st.FindTransactionByLinkRef(ctx, models.SalaryCycleLink(c.ID))
		switch {
		case errors.Is(err, repository.ErrNotFound):
			res.Warnings = append(res.Warnings, "salary transaction was already deleted; account balance not restored")
		case err != nil:
			return fmt.Errorf("failed to find salary transaction: %w", err)
		default:
			if err := st.DeleteTransaction(ctx, tx.ID); err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}
			if err := st.AdjustAccountBalance(ctx, tx.AccountID, tx.Amount.Neg()); err != nil {
				return fmt.Errorf("failed to debit account: %w", err)
			}
			res.Transaction = tx
		}

		c.Status = models.SalaryPending
		c.ActualDate = nil
		c.ActualAmount = nil
		c.TransactionID = nil
		if err := st.UpdateSalaryCycle(ctx, c); err != nil {
			return fmt.Errorf("failed to update salary cycle: %w", err)
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{"user_id": userID, "cycle_id": cycleID, "applied": res.Applied})
	for _, w := range res.Warnings {
		entry.Warn(w)
	}
	entry.Info("Salary credit reversed")
	return res, nil
}
