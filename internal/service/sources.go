package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ScheduledPaymentInput is the user-editable part of a scheduled payment.
// Both affect flags default to true.
type ScheduledPaymentInput struct {
	AccountID            *uuid.UUID         `json:"account_id"`
	CategoryID           *uuid.UUID         `json:"category_id"`
	Name                 string             `json:"name"`
	Amount               *decimal.Decimal   `json:"amount"`
	Frequency            models.Frequency   `json:"frequency"`
	CustomIntervalMonths *int               `json:"custom_interval_months"`
	StartMonth           *int               `json:"start_month"`
	StartYear            *int               `json:"start_year"`
	DueDateType          models.DueDateType `json:"due_date_type"`
	DueDay               *int               `json:"due_date"`
	AffectTransaction    *bool              `json:"affect_transaction"`
	AffectAccountBalance *bool              `json:"affect_account_balance"`
	IsActive             *bool              `json:"is_active"`
}

func (in *ScheduledPaymentInput) apply(p *models.ScheduledPayment) {
	p.Kind = models.SourceScheduled
	p.AccountID = in.AccountID
	p.CategoryID = in.CategoryID
	p.Name = strings.TrimSpace(in.Name)
	p.Amount = nil
	if in.Amount != nil {
		p.Amount = models.MoneyPtr(*in.Amount)
	}
	p.Frequency = in.Frequency
	p.CustomIntervalMonths = in.CustomIntervalMonths
	p.StartMonth = in.StartMonth
	p.StartYear = in.StartYear
	p.DueDateType = in.DueDateType
	p.DueDay = in.DueDay
	p.AffectTransaction = boolOr(in.AffectTransaction, true)
	p.AffectAccountBalance = boolOr(in.AffectAccountBalance, true)
	p.IsActive = boolOr(in.IsActive, true)
}

func (s *Service) validateScheduled(ctx context.Context, p *models.ScheduledPayment) error {
	if p.Name == "" {
		return invalid("name", "required")
	}
	if p.Amount == nil {
		return invalid("amount", "required")
	}
	if err := schedule.ValidateSource(p); err != nil {
		return asValidation(err)
	}
	if p.AccountID != nil {
		if _, err := ownedAccount(ctx, s.store, p.UserID, *p.AccountID); err != nil {
			return err
		}
	}
	return nil
}

// CreateScheduledPayment validates and stores a new scheduled payment.
func (s *Service) CreateScheduledPayment(ctx context.Context, userID uuid.UUID, in ScheduledPaymentInput) (*models.ScheduledPayment, error) {
	p := &models.ScheduledPayment{UserID: userID}
	in.apply(p)
	if err := s.validateScheduled(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.CreateScheduledPayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create scheduled payment: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "scheduled_payment_id": p.ID}).Info("Scheduled payment created")
	return p, nil
}

// UpdateScheduledPayment replaces a scheduled payment's rule. Occurrences already
// generated keep the values they were created with.
func (s *Service) UpdateScheduledPayment(ctx context.Context, userID, id uuid.UUID, in ScheduledPaymentInput) (*models.ScheduledPayment, error) {
	p, err := s.ownedScheduled(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.validateScheduled(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.UpdateScheduledPayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update scheduled payment: %w", err)
	}
	return p, nil
}

// DeleteScheduledPayment removes the rule and its pending occurrences. Paid and skipped
// occurrences stay as history.
func (s *Service) DeleteScheduledPayment(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.ownedScheduled(ctx, userID, id); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(st repository.Store) error {
		if err := deletePendingOccurrences(ctx, st, models.SourceScheduled, id, uuid.Nil); err != nil {
			return err
		}
		if err := st.DeleteScheduledPayment(ctx, id); err != nil {
			return fmt.Errorf("failed to delete scheduled payment: %w", err)
		}
		return nil
	})
}

// ListScheduledPayments returns every scheduled payment of the user.
func (s *Service) ListScheduledPayments(ctx context.Context, userID uuid.UUID) ([]models.ScheduledPayment, error) {
	return s.store.ListScheduledPayments(ctx, userID, false)
}

func (s *Service) ownedScheduled(ctx context.Context, userID, id uuid.UUID) (*models.ScheduledPayment, error) {
	p, err := s.store.GetScheduledPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("scheduled payment %s: %w", id, repository.ErrNotFound)
	}
	return p, nil
}

// deletePendingOccurrences drops the source's pending occurrences other than keep.
func deletePendingOccurrences(ctx context.Context, st repository.Store, kind models.SourceKind, sourceID, keep uuid.UUID) error {
	occs, err := st.ListOccurrencesBySource(ctx, kind, sourceID)
	if err != nil {
		return err
	}
	for _, o := range occs {
		if o.Status != models.OccurrencePending || o.ID == keep {
			continue
		}
		if err := st.DeleteOccurrence(ctx, o.ID); err != nil {
			return fmt.Errorf("failed to delete occurrence: %w", err)
		}
	}
	return nil
}

// CreditCardInput describes a card's statement cycle.
type CreditCardInput struct {
	CardAccountID        uuid.UUID  `json:"card_account_id"`
	PayFromAccountID     *uuid.UUID `json:"pay_from_account_id"`
	Name                 string     `json:"name"`
	BillingDay           int        `json:"billing_day"`
	DueDay               int        `json:"due_day"`
	AffectTransaction    *bool      `json:"affect_transaction"`
	AffectAccountBalance *bool      `json:"affect_account_balance"`
}

// CreateCreditCard registers a credit card account's billing cycle.
func (s *Service) CreateCreditCard(ctx context.Context, userID uuid.UUID, in CreditCardInput) (*models.CreditCard, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "required")
	}
	if in.BillingDay < 1 || in.BillingDay > 31 {
		return nil, invalid("billing_day", "must be 1-31, got %d", in.BillingDay)
	}
	if in.DueDay < 1 || in.DueDay > 31 {
		return nil, invalid("due_day", "must be 1-31, got %d", in.DueDay)
	}
	card, err := ownedAccount(ctx, s.store, userID, in.CardAccountID)
	if err != nil {
		return nil, err
	}
	if card.Type != models.AccountTypeCreditCard {
		return nil, invalid("card_account_id", "account %s is not a credit card account", card.ID)
	}
	if in.PayFromAccountID != nil {
		if _, err := ownedAccount(ctx, s.store, userID, *in.PayFromAccountID); err != nil {
			return nil, err
		}
	}

	c := &models.CreditCard{
		UserID:               userID,
		CardAccountID:        in.CardAccountID,
		PayFromAccountID:     in.PayFromAccountID,
		Name:                 strings.TrimSpace(in.Name),
		BillingDay:           in.BillingDay,
		DueDay:               in.DueDay,
		AffectTransaction:    boolOr(in.AffectTransaction, true),
		AffectAccountBalance: boolOr(in.AffectAccountBalance, true),
		IsActive:             true,
	}
	if err := s.store.CreateCreditCard(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create credit card: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "credit_card_id": c.ID}).Info("Credit card registered")
	return c, nil
}
