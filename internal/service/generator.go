package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GenerationResult reports what a generation (or preview) produced for one month.
// Created and Existing are for observability only.
type GenerationResult struct {
	Month       int                 `json:"month"`
	Year        int                 `json:"year"`
	Created     int                 `json:"created"`
	Existing    int                 `json:"existing"`
	Occurrences []models.Occurrence `json:"occurrences"`
	Warnings    []string            `json:"warnings,omitempty"`
}

func checkMonth(month, year int) error {
	if !schedule.ValidMonth(month) {
		return invalid("month", "must be 1-12, got %d", month)
	}
	if year < 1970 || year > 9999 {
		return invalid("year", "out of range: %d", year)
	}
	return nil
}

// Generate materializes the month's occurrences for every active source of the user.
// Existing rows are canonical: calling Generate again creates nothing new.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, month, year int) (*GenerationResult, error) {
	if err := checkMonth(month, year); err != nil {
		return nil, err
	}
	candidates, warnings, err := s.candidates(ctx, s.store, userID, month, year)
	if err != nil {
		return nil, err
	}

	res := &GenerationResult{Month: month, Year: year, Warnings: warnings}
	for i := range candidates {
		o := candidates[i]
		wanted := o.Amount
		created, err := s.store.InsertOccurrenceIfAbsent(ctx, &o)
		if err != nil {
			return nil, fmt.Errorf("failed to insert occurrence: %w", err)
		}
		if created {
			res.Created++
			continue
		}
		res.Existing++
		// Card bills keep accruing until paid.
		if o.Kind == models.SourceCreditCard && o.Status == models.OccurrencePending && !sameAmount(o.Amount, wanted) {
			o.Amount = wanted
			if err := s.store.UpdateOccurrence(ctx, &o); err != nil {
				return nil, fmt.Errorf("failed to refresh card bill: %w", err)
			}
		}
	}

	res.Occurrences, err = s.store.ListOccurrences(ctx, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	for _, w := range res.Warnings {
		s.log.WithFields(logrus.Fields{"user_id": userID, "month": month, "year": year}).Warn(w)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"month":    month,
		"year":     year,
		"created":  res.Created,
		"existing": res.Existing,
	}).Info("Occurrences generated")
	return res, nil
}

// Preview computes the month's occurrences without writing anything. Rows that already
// exist are returned as stored.
func (s *Service) Preview(ctx context.Context, userID uuid.UUID, month, year int) (*GenerationResult, error) {
	if err := checkMonth(month, year); err != nil {
		return nil, err
	}
	candidates, warnings, err := s.candidates(ctx, s.store, userID, month, year)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.ListOccurrences(ctx, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}

	res := &GenerationResult{Month: month, Year: year, Warnings: warnings}
	seen := make(map[models.OccurrenceKey]bool, len(stored))
	for _, o := range stored {
		seen[o.Key()] = true
		res.Occurrences = append(res.Occurrences, o)
		res.Existing++
	}
	for _, o := range candidates {
		if seen[o.Key()] {
			continue
		}
		res.Occurrences = append(res.Occurrences, o)
		res.Created++
	}
	sortByDueDate(res.Occurrences)
	return res, nil
}

// Checklist lists the month's occurrences, generating them first when none exist yet.
func (s *Service) Checklist(ctx context.Context, userID uuid.UUID, month, year int) (*GenerationResult, error) {
	if err := checkMonth(month, year); err != nil {
		return nil, err
	}
	occs, err := s.store.ListOccurrences(ctx, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	if len(occs) > 0 {
		return &GenerationResult{Month: month, Year: year, Existing: len(occs), Occurrences: occs}, nil
	}
	return s.Generate(ctx, userID, month, year)
}

// PregenerateAll runs Generate for every user with a recurrence source. Failures for one
// user are logged and do not stop the others.
func (s *Service) PregenerateAll(ctx context.Context, month, year int) error {
	users, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	var errs []error
	for _, uid := range users {
		if _, err := s.Generate(ctx, uid, month, year); err != nil {
			s.log.WithError(err).WithField("user_id", uid).Error("Pre-generation failed")
			errs = append(errs, fmt.Errorf("user %s: %w", uid, err))
		}
	}
	return errors.Join(errs...)
}

// candidates builds the pending occurrences every source would produce for the month.
func (s *Service) candidates(ctx context.Context, st repository.Store, userID uuid.UUID, month, year int) ([]models.Occurrence, []string, error) {
	var out []models.Occurrence
	var warnings []string

	profile, err := profileFor(ctx, st, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load salary profile: %w", err)
	}

	payments, err := st.ListScheduledPayments(ctx, userID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list scheduled payments: %w", err)
	}
	for i := range payments {
		src := &payments[i]
		dates, err := schedule.DueDatesIn(src, month, year, profile)
		if errors.Is(err, schedule.ErrNoSalaryProfile) {
			warnings = append(warnings, fmt.Sprintf("%q is due on salary day but no salary profile is set; skipped", src.Name))
			continue
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%q has an invalid rule (%v); skipped", src.Name, err))
			continue
		}
		for _, due := range dates {
			out = append(out, fromSource(src, month, year, due, src.Amount))
		}
	}

	loans, err := st.ListActiveLoans(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list loans: %w", err)
	}
	for _, l := range loans {
		rows, err := st.ListInstallments(ctx, l.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list installments: %w", err)
		}
		for _, r := range rows {
			if r.Status == models.InstallmentCancelled || !schedule.InMonth(r.DueDate, month, year) {
				continue
			}
			id := r.ID
			out = append(out, models.Occurrence{
				UserID:               userID,
				Kind:                 models.SourceLoan,
				SourceID:             l.ID,
				InstallmentID:        &id,
				Name:                 fmt.Sprintf("%s EMI #%d", l.Name, r.EMINumber),
				Month:                month,
				Year:                 year,
				DueDate:              r.DueDate,
				Amount:               models.MoneyPtr(r.EMIAmount),
				AccountID:            l.AccountID,
				Status:               models.OccurrencePending,
				AffectTransaction:    l.AffectTransaction,
				AffectAccountBalance: l.AffectAccountBalance,
			})
			break
		}
	}

	policies, err := st.ListActiveInsurance(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list insurance: %w", err)
	}
	for _, ins := range policies {
		premiums, err := st.ListPremiums(ctx, ins.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list premiums: %w", err)
		}
		for _, p := range premiums {
			if p.Status == models.InstallmentCancelled || !schedule.InMonth(p.DueDate, month, year) {
				continue
			}
			id := p.ID
			out = append(out, models.Occurrence{
				UserID:               userID,
				Kind:                 models.SourceInsurance,
				SourceID:             ins.ID,
				InstallmentID:        &id,
				Name:                 premiumName(&ins, &p),
				Month:                month,
				Year:                 year,
				DueDate:              p.DueDate,
				Amount:               models.MoneyPtr(p.Amount),
				AccountID:            ins.AccountID,
				Status:               models.OccurrencePending,
				AffectTransaction:    ins.AffectTransaction,
				AffectAccountBalance: ins.AffectAccountBalance,
			})
			break
		}
	}

	cards, err := st.ListCreditCards(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list credit cards: %w", err)
	}
	for i := range cards {
		card := &cards[i]
		src := card.AsSource()
		dates, err := schedule.DueDatesIn(src, month, year, profile)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("card %q has an invalid cycle (%v); skipped", card.Name, err))
			continue
		}
		for _, due := range dates {
			from, to := StatementCycle(card, due)
			spent, err := st.SumDebits(ctx, card.CardAccountID, from, to)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to total card statement: %w", err)
			}
			o := fromSource(src, month, year, due, models.MoneyPtr(spent))
			o.Name = fmt.Sprintf("%s bill", card.Name)
			out = append(out, o)
		}
	}

	sortByDueDate(out)
	return out, warnings, nil
}

// StatementCycle returns the first and last day of the billing cycle whose bill falls
// due on due. A cycle closes on the billing day; the bill is payable on the next due day.
func StatementCycle(card *models.CreditCard, due time.Time) (time.Time, time.Time) {
	month, year := int(due.Month()), due.Year()
	if card.DueDay <= card.BillingDay {
		month, year = schedule.AddMonths(month, year, -1)
	}
	closes := schedule.ClampedDate(year, time.Month(month), card.BillingDay)
	pm, py := schedule.AddMonths(month, year, -1)
	opens := schedule.ClampedDate(py, time.Month(pm), card.BillingDay).AddDate(0, 0, 1)
	return opens, closes
}

func fromSource(src *models.RecurrenceSource, month, year int, due time.Time, amount *decimal.Decimal) models.Occurrence {
	return models.Occurrence{
		UserID:               src.UserID,
		Kind:                 src.Kind,
		SourceID:             src.ID,
		Name:                 src.Name,
		Month:                month,
		Year:                 year,
		DueDate:              due,
		Amount:               amount,
		AccountID:            src.AccountID,
		CategoryID:           src.CategoryID,
		Status:               models.OccurrencePending,
		AffectTransaction:    src.AffectTransaction,
		AffectAccountBalance: src.AffectAccountBalance,
	}
}

func premiumName(ins *models.Insurance, p *models.InsurancePremium) string {
	if ins.TermsPerPeriod > 1 {
		return fmt.Sprintf("%s premium %d/%d", ins.Name, p.TermNumber, ins.TermsPerPeriod)
	}
	return fmt.Sprintf("%s premium", ins.Name)
}

func sameAmount(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sortByDueDate(occs []models.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].DueDate.Equal(occs[j].DueDate) {
			return occs[i].DueDate.Before(occs[j].DueDate)
		}
		return occs[i].Name < occs[j].Name
	})
}
