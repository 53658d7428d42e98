package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InsuranceStatus string

const (
	InsuranceActive    InsuranceStatus = "active"
	InsuranceLapsed    InsuranceStatus = "lapsed"
	InsuranceCancelled InsuranceStatus = "cancelled"
	InsuranceMatured   InsuranceStatus = "matured"
)

// Insurance is a policy whose premium may be split into several terms per period
type Insurance struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	AccountID            *uuid.UUID      `json:"account_id,omitempty"`
	Name                 string          `json:"name"`
	Provider             string          `json:"provider"`
	PolicyNumber         string          `json:"policy_number"`
	PremiumAmount        decimal.Decimal `json:"premium_amount"`
	PremiumFrequency     Frequency       `json:"premium_frequency"`
	TermsPerPeriod       int             `json:"terms_per_period"`
	StartDate            time.Time       `json:"start_date"`
	EndDate              *time.Time      `json:"end_date,omitempty"`
	Status               InsuranceStatus `json:"status"`
	AffectTransaction    bool            `json:"affect_transaction"`
	AffectAccountBalance bool            `json:"affect_account_balance"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// InsurancePremium is one dated premium term
type InsurancePremium struct {
	ID           uuid.UUID         `json:"id"`
	InsuranceID  uuid.UUID         `json:"insurance_id"`
	PeriodNumber int               `json:"period_number"`
	TermNumber   int               `json:"term_number"`
	DueDate      time.Time         `json:"due_date"`
	Amount       decimal.Decimal   `json:"amount"`
	Status       InstallmentStatus `json:"status"`
	PaidAt       *time.Time        `json:"paid_at,omitempty"`
	PaidAmount   *decimal.Decimal  `json:"paid_amount,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
