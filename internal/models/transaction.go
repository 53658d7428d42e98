package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeCredit TransactionType = "credit"
)

// Transaction represents a ledger transaction
type Transaction struct {
	ID                    uuid.UUID       `json:"id"`
	UserID                uuid.UUID       `json:"user_id"`
	AccountID             uuid.UUID       `json:"account_id"`
	CategoryID            *uuid.UUID      `json:"category_id,omitempty"`
	Type                  TransactionType `json:"type"`
	Amount                decimal.Decimal `json:"amount"`
	Description           string          `json:"description"`
	TransactionDate       time.Time       `json:"transaction_date"`
	PaymentOccurrenceID   *uuid.UUID      `json:"payment_occurrence_id,omitempty"`
	SalaryCycleID         *uuid.UUID      `json:"salary_cycle_id,omitempty"`
	SavingsContributionID *uuid.UUID      `json:"savings_contribution_id,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// LinkRef identifies the record a transaction was created for. Exactly one field is set.
type LinkRef struct {
	PaymentOccurrenceID   *uuid.UUID
	SalaryCycleID         *uuid.UUID
	SavingsContributionID *uuid.UUID
}

// OccurrenceLink builds a LinkRef pointing at a payment occurrence.
func OccurrenceLink(id uuid.UUID) LinkRef {
	return LinkRef{PaymentOccurrenceID: &id}
}

// SalaryCycleLink builds a LinkRef pointing at a salary cycle.
func SalaryCycleLink(id uuid.UUID) LinkRef {
	return LinkRef{SalaryCycleID: &id}
}

// Matches reports whether the transaction carries the given link.
func (t *Transaction) Matches(ref LinkRef) bool {
	switch {
	case ref.PaymentOccurrenceID != nil:
		return t.PaymentOccurrenceID != nil && *t.PaymentOccurrenceID == *ref.PaymentOccurrenceID
	case ref.SalaryCycleID != nil:
		return t.SalaryCycleID != nil && *t.SalaryCycleID == *ref.SalaryCycleID
	case ref.SavingsContributionID != nil:
		return t.SavingsContributionID != nil && *t.SavingsContributionID == *ref.SavingsContributionID
	}
	return false
}
