// Package service holds the scheduling and reconciliation engine: occurrence generation,
// payment reconciliation, loan and insurance lifecycles, salary cycles and forecasting.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RateProvider returns the reference rate floating loans are priced against, in percent.
type RateProvider interface {
	GetKeyRate(ctx context.Context) (decimal.Decimal, error)
}

// Service handles business logic
type Service struct {
	store repository.Store
	clock Clock
	rates RateProvider
	log   *logrus.Logger
}

// NewService initializes a new service. rates may be nil when no rate feed is configured.
func NewService(store repository.Store, clock Clock, rates RateProvider, log *logrus.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{store: store, clock: clock, rates: rates, log: log}
}

// Today exposes the service clock.
func (s *Service) Today() time.Time {
	return s.clock.Today()
}

// KeyRate returns the current reference rate.
func (s *Service) KeyRate(ctx context.Context) (decimal.Decimal, error) {
	if s.rates == nil {
		return decimal.Zero, errors.New("no rate provider configured")
	}
	return s.rates.GetKeyRate(ctx)
}

// profileFor returns the user's active salary profile or nil.
func profileFor(ctx context.Context, st repository.Store, userID uuid.UUID) (*models.SalaryProfile, error) {
	p, err := st.GetSalaryProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, nil
	}
	return p, nil
}

// ownedAccount loads an account and checks it belongs to userID.
func ownedAccount(ctx context.Context, st repository.Store, userID, accountID uuid.UUID) (*models.Account, error) {
	a, err := st.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("account %s: %w", accountID, repository.ErrNotFound)
	}
	return a, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
