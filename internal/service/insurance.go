package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PremiumHorizonYears bounds premium expansion for policies without an end date.
const PremiumHorizonYears = 5

// InsuranceInput describes a new policy. TermsPerPeriod splits each premium period into
// equal installments and defaults to 1.
type InsuranceInput struct {
	AccountID            *uuid.UUID       `json:"account_id"`
	Name                 string           `json:"name"`
	Provider             string           `json:"provider"`
	PolicyNumber         string           `json:"policy_number"`
	PremiumAmount        decimal.Decimal  `json:"premium_amount"`
	PremiumFrequency     models.Frequency `json:"premium_frequency"`
	TermsPerPeriod       int              `json:"terms_per_period"`
	StartDate            time.Time        `json:"start_date"`
	EndDate              *time.Time       `json:"end_date"`
	AffectTransaction    *bool            `json:"affect_transaction"`
	AffectAccountBalance *bool            `json:"affect_account_balance"`
}

// InsuranceSchedule is a policy with its premium rows.
type InsuranceSchedule struct {
	Insurance *models.Insurance         `json:"insurance"`
	Premiums  []models.InsurancePremium `json:"premiums"`
}

func validateInsurance(in *InsuranceInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	if !in.PremiumAmount.IsPositive() {
		return invalid("premium_amount", "must be positive")
	}
	if in.StartDate.IsZero() {
		return invalid("start_date", "required")
	}
	if in.EndDate != nil && !in.EndDate.After(in.StartDate) {
		return invalid("end_date", "must be after start_date")
	}
	switch in.PremiumFrequency {
	case models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyHalfYearly, models.FrequencyYearly:
		interval := in.PremiumFrequency.IntervalMonths(nil)
		if in.TermsPerPeriod < 1 || interval%in.TermsPerPeriod != 0 {
			return invalid("terms_per_period", "must divide the %d-month period, got %d", interval, in.TermsPerPeriod)
		}
	case models.FrequencyOneTime:
		if in.TermsPerPeriod != 1 {
			return invalid("terms_per_period", "single premium policies have one term")
		}
	default:
		return invalid("premium_frequency", "unsupported frequency %q", in.PremiumFrequency)
	}
	return nil
}

// ExpandPremiums lays out the policy's premium terms from its start date until its end
// date, or PremiumHorizonYears when it has none. Each period's premium is split evenly
// across its terms and the last term absorbs the rounding remainder.
func ExpandPremiums(ins *models.Insurance) []models.InsurancePremium {
	start := schedule.Truncate(ins.StartDate)
	end := start.AddDate(PremiumHorizonYears, 0, 0)
	if ins.EndDate != nil {
		end = schedule.Truncate(*ins.EndDate)
	}
	terms := ins.TermsPerPeriod
	if terms < 1 {
		terms = 1
	}
	interval := ins.PremiumFrequency.IntervalMonths(nil)
	step := 0
	if interval > 0 {
		step = interval / terms
	}

	share := ins.PremiumAmount.Div(decimal.NewFromInt(int64(terms))).RoundDown(models.MoneyScale)
	last := ins.PremiumAmount.Sub(share.Mul(decimal.NewFromInt(int64(terms - 1))))

	startMonth, startYear := int(start.Month()), start.Year()
	var out []models.InsurancePremium
	for period := 1; ; period++ {
		for term := 1; term <= terms; term++ {
			offset := (period-1)*interval + (term-1)*step
			m, y := schedule.AddMonths(startMonth, startYear, offset)
			due := schedule.ClampedDate(y, time.Month(m), start.Day())
			if !due.Before(end) {
				return out
			}
			amount := share
			if term == terms {
				amount = last
			}
			out = append(out, models.InsurancePremium{
				InsuranceID:  ins.ID,
				PeriodNumber: period,
				TermNumber:   term,
				DueDate:      due,
				Amount:       amount,
				Status:       models.InstallmentPending,
			})
		}
		if interval == 0 {
			return out
		}
	}
}

// CreateInsurance stores a policy and its pre-expanded premium terms.
func (s *Service) CreateInsurance(ctx context.Context, userID uuid.UUID, in InsuranceInput) (*InsuranceSchedule, error) {
	if in.TermsPerPeriod == 0 {
		in.TermsPerPeriod = 1
	}
	if err := validateInsurance(&in); err != nil {
		return nil, err
	}
	if in.AccountID != nil {
		if _, err := ownedAccount(ctx, s.store, userID, *in.AccountID); err != nil {
			return nil, err
		}
	}

	ins := &models.Insurance{
		UserID:               userID,
		AccountID:            in.AccountID,
		Name:                 strings.TrimSpace(in.Name),
		Provider:             in.Provider,
		PolicyNumber:         in.PolicyNumber,
		PremiumAmount:        models.RoundMoney(in.PremiumAmount),
		PremiumFrequency:     in.PremiumFrequency,
		TermsPerPeriod:       in.TermsPerPeriod,
		StartDate:            schedule.Truncate(in.StartDate),
		EndDate:              in.EndDate,
		Status:               models.InsuranceActive,
		AffectTransaction:    boolOr(in.AffectTransaction, true),
		AffectAccountBalance: boolOr(in.AffectAccountBalance, true),
	}
	var premiums []models.InsurancePremium
	err := s.store.InTx(ctx, func(st repository.Store) error {
		if err := st.CreateInsurance(ctx, ins); err != nil {
			return fmt.Errorf("failed to create insurance: %w", err)
		}
		premiums = ExpandPremiums(ins)
		if err := st.CreatePremiums(ctx, premiums); err != nil {
			return fmt.Errorf("failed to create premiums: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"insurance_id": ins.ID,
		"premiums":     len(premiums),
	}).Info("Insurance created")
	return &InsuranceSchedule{Insurance: ins, Premiums: premiums}, nil
}

// ListPremiums returns a policy's premium terms.
func (s *Service) ListPremiums(ctx context.Context, userID, insuranceID uuid.UUID) (*InsuranceSchedule, error) {
	ins, err := s.store.GetInsurance(ctx, insuranceID)
	if err != nil {
		return nil, err
	}
	if ins.UserID != userID {
		return nil, fmt.Errorf("insurance %s: %w", insuranceID, repository.ErrNotFound)
	}
	premiums, err := s.store.ListPremiums(ctx, insuranceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list premiums: %w", err)
	}
	return &InsuranceSchedule{Insurance: ins, Premiums: premiums}, nil
}
