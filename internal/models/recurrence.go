package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyHalfYearly Frequency = "half_yearly"
	FrequencyYearly     Frequency = "yearly"
	FrequencyOneTime    Frequency = "one_time"
	FrequencyCustom     Frequency = "custom"
)

// MaxCustomIntervalMonths bounds customIntervalMonths for the custom frequency.
const MaxCustomIntervalMonths = 60

// IntervalMonths maps a frequency to its period length in months. Custom returns
// the configured interval; one_time returns 0.
func (f Frequency) IntervalMonths(custom *int) int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyHalfYearly:
		return 6
	case FrequencyYearly:
		return 12
	case FrequencyCustom:
		if custom == nil {
			return 0
		}
		return *custom
	}
	return 0
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyHalfYearly, FrequencyYearly, FrequencyOneTime, FrequencyCustom:
		return true
	}
	return false
}

type DueDateType string

const (
	DueDateFixedDay  DueDateType = "fixed_day"
	DueDateSalaryDay DueDateType = "salary_day"
)

// SourceKind tags which recurrence source an occurrence came from
type SourceKind string

const (
	SourceScheduled  SourceKind = "scheduled"
	SourceLoan       SourceKind = "loan"
	SourceInsurance  SourceKind = "insurance"
	SourceCreditCard SourceKind = "credit_card"
)

// SourceKinds lists every kind in display order.
var SourceKinds = []SourceKind{SourceScheduled, SourceLoan, SourceInsurance, SourceCreditCard}

// RecurrenceSource is a user-defined recurring obligation. Scheduled payments are stored
// in this shape; credit cards are projected into it for due date resolution.
type RecurrenceSource struct {
	ID                   uuid.UUID        `json:"id"`
	Kind                 SourceKind       `json:"kind"`
	UserID               uuid.UUID        `json:"user_id"`
	AccountID            *uuid.UUID       `json:"account_id,omitempty"`
	CategoryID           *uuid.UUID       `json:"category_id,omitempty"`
	Name                 string           `json:"name"`
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	Frequency            Frequency        `json:"frequency"`
	CustomIntervalMonths *int             `json:"custom_interval_months,omitempty"`
	StartMonth           *int             `json:"start_month,omitempty"`
	StartYear            *int             `json:"start_year,omitempty"`
	DueDateType          DueDateType      `json:"due_date_type"`
	DueDay               *int             `json:"due_date,omitempty"`
	AffectTransaction    bool             `json:"affect_transaction"`
	AffectAccountBalance bool             `json:"affect_account_balance"`
	IsActive             bool             `json:"is_active"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// ScheduledPayment is the user-managed recurrence source.
type ScheduledPayment = RecurrenceSource
