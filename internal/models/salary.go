package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaydayRule string

const (
	PaydayFixedDay       PaydayRule = "fixed_day"
	PaydayLastWorkingDay PaydayRule = "last_working_day"
	PaydayNthWeekday     PaydayRule = "nth_weekday"
)

// SalaryProfile describes when and how much salary is credited; one per user
type SalaryProfile struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	PaydayRule        PaydayRule      `json:"payday_rule"`
	FixedDay          *int            `json:"fixed_day,omitempty"`
	WeekdayPreference *time.Weekday   `json:"weekday_preference,omitempty"`
	WeekdayOrdinal    *int            `json:"weekday_ordinal,omitempty"`
	MonthlyAmount     decimal.Decimal `json:"monthly_amount"`
	AccountID         *uuid.UUID      `json:"account_id,omitempty"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type SalaryCycleStatus string

const (
	SalaryPending  SalaryCycleStatus = "pending"
	SalaryCredited SalaryCycleStatus = "credited"
)

// SalaryCycle is one month's expected vs actual salary credit
type SalaryCycle struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	ProfileID      uuid.UUID         `json:"profile_id"`
	Month          int               `json:"month"`
	Year           int               `json:"year"`
	ExpectedDate   time.Time         `json:"expected_date"`
	ExpectedAmount decimal.Decimal   `json:"expected_amount"`
	ActualDate     *time.Time        `json:"actual_date,omitempty"`
	ActualAmount   *decimal.Decimal  `json:"actual_amount,omitempty"`
	AccountID      *uuid.UUID        `json:"account_id,omitempty"`
	TransactionID  *uuid.UUID        `json:"transaction_id,omitempty"`
	Status         SalaryCycleStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
