package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpcomingPaydays is how many predicted paydays the forecast carries.
const UpcomingPaydays = 3

// Forecast summarizes this month's obligations and projects next month's. It never
// writes: next month is computed with Preview.
func (s *Service) Forecast(ctx context.Context, userID uuid.UUID) (*models.Forecast, error) {
	today := s.clock.Today()
	month, year := int(today.Month()), today.Year()

	current, err := s.store.ListOccurrences(ctx, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	nm, ny := schedule.AddMonths(month, year, 1)
	next, err := s.Preview(ctx, userID, nm, ny)
	if err != nil {
		return nil, err
	}

	f := &models.Forecast{
		ThisMonth: Summarize(month, year, current),
		NextMonth: models.NextMonthForecast{
			MonthSummary:   Summarize(nm, ny, next.Occurrences),
			ExpectedIncome: decimal.Zero,
			Outflow:        decimal.Zero,
			LoanEMIs:       decimal.Zero,
		},
		UpcomingPaydays: []time.Time{},
		Warnings:        next.Warnings,
	}
	for _, o := range next.Occurrences {
		if o.Status == models.OccurrenceSkipped {
			continue
		}
		amount := expected(&o)
		f.NextMonth.Outflow = f.NextMonth.Outflow.Add(amount)
		if o.Kind == models.SourceLoan {
			f.NextMonth.LoanEMIs = f.NextMonth.LoanEMIs.Add(amount)
		}
	}

	profile, err := profileFor(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		payday, err := schedule.Predict(profile, nm, ny)
		if err != nil {
			return nil, asValidation(err)
		}
		f.NextMonth.ExpectedPayday = &payday
		f.NextMonth.ExpectedIncome = profile.MonthlyAmount
		f.UpcomingPaydays, err = schedule.NextPaydays(profile, today, UpcomingPaydays)
		if err != nil {
			return nil, asValidation(err)
		}
	} else {
		f.Warnings = append(f.Warnings, "no salary profile; expected income is zero")
	}
	f.NextMonth.Net = f.NextMonth.ExpectedIncome.Sub(f.NextMonth.Outflow)
	return f, nil
}

// Summarize groups a month's occurrences by source kind. Paid totals use the amount
// actually paid; skipped occurrences are counted but not totalled.
func Summarize(month, year int, occs []models.Occurrence) models.MonthSummary {
	sum := models.MonthSummary{
		Month:        month,
		Year:         year,
		TotalPaid:    decimal.Zero,
		TotalPending: decimal.Zero,
		Occurrences:  occs,
	}
	if sum.Occurrences == nil {
		sum.Occurrences = []models.Occurrence{}
	}
	index := make(map[models.SourceKind]int, len(models.SourceKinds))
	for i, k := range models.SourceKinds {
		index[k] = i
		sum.Groups = append(sum.Groups, models.KindTotals{Kind: k, Paid: decimal.Zero, Pending: decimal.Zero})
	}
	for i := range occs {
		o := &occs[i]
		g := &sum.Groups[index[o.Kind]]
		g.Count++
		switch o.Status {
		case models.OccurrencePaid:
			amount := o.PaidAmount
			if amount == nil {
				amount = o.Amount
			}
			g.PaidCount++
			g.Paid = g.Paid.Add(models.ValueOrZero(amount))
		case models.OccurrencePending:
			g.PendingCount++
			g.Pending = g.Pending.Add(models.ValueOrZero(o.Amount))
		}
	}
	for _, g := range sum.Groups {
		sum.TotalPaid = sum.TotalPaid.Add(g.Paid)
		sum.TotalPending = sum.TotalPending.Add(g.Pending)
	}
	return sum
}

func expected(o *models.Occurrence) decimal.Decimal {
	if o.Status == models.OccurrencePaid && o.PaidAmount != nil {
		return *o.PaidAmount
	}
	return models.ValueOrZero(o.Amount)
}
