package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KindTotals holds paid/pending subtotals for one source kind
type KindTotals struct {
	Kind         SourceKind      `json:"kind"`
	Count        int             `json:"count"`
	PaidCount    int             `json:"paid_count"`
	PendingCount int             `json:"pending_count"`
	Paid         decimal.Decimal `json:"paid"`
	Pending      decimal.Decimal `json:"pending"`
}

// MonthSummary represents one month of obligations grouped by kind
type MonthSummary struct {
	Month        int             `json:"month"`
	Year         int             `json:"year"`
	Groups       []KindTotals    `json:"groups"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalPending decimal.Decimal `json:"total_pending"`
	Occurrences  []Occurrence    `json:"occurrences"`
}

// NextMonthForecast nets expected salary against projected outflow
type NextMonthForecast struct {
	MonthSummary
	ExpectedIncome decimal.Decimal `json:"expected_income"`
	ExpectedPayday *time.Time      `json:"expected_payday,omitempty"`
	Outflow        decimal.Decimal `json:"outflow"`
	LoanEMIs       decimal.Decimal `json:"loan_emis"`
	Net            decimal.Decimal `json:"net"`
}

// Forecast is the dashboard summary
type Forecast struct {
	ThisMonth       MonthSummary      `json:"this_month"`
	NextMonth       NextMonthForecast `json:"next_month"`
	UpcomingPaydays []time.Time       `json:"upcoming_paydays"`
	Warnings        []string          `json:"warnings,omitempty"`
}
