package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OccurrenceStatus string

const (
	OccurrencePending OccurrenceStatus = "pending"
	OccurrencePaid    OccurrenceStatus = "paid"
	OccurrenceSkipped OccurrenceStatus = "skipped"
)

// Occurrence is one month's materialized instance of a recurrence source.
// (Kind, SourceID, Month, Year) is unique.
type Occurrence struct {
	ID                   uuid.UUID        `json:"id"`
	UserID               uuid.UUID        `json:"user_id"`
	Kind                 SourceKind       `json:"kind"`
	SourceID             uuid.UUID        `json:"source_id"`
	InstallmentID        *uuid.UUID       `json:"installment_id,omitempty"`
	Name                 string           `json:"name"`
	Month                int              `json:"month"`
	Year                 int              `json:"year"`
	DueDate              time.Time        `json:"due_date"`
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	AccountID            *uuid.UUID       `json:"account_id,omitempty"`
	CategoryID           *uuid.UUID       `json:"category_id,omitempty"`
	Status               OccurrenceStatus `json:"status"`
	PaidAt               *time.Time       `json:"paid_at,omitempty"`
	PaidAmount           *decimal.Decimal `json:"paid_amount,omitempty"`
	PaidFromAccountID    *uuid.UUID       `json:"paid_from_account_id,omitempty"`
	TransactionID        *uuid.UUID       `json:"transaction_id,omitempty"`
	AffectTransaction    bool             `json:"affect_transaction"`
	AffectAccountBalance bool             `json:"affect_account_balance"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// OccurrenceKey is the idempotency key of an occurrence.
type OccurrenceKey struct {
	Kind     SourceKind
	SourceID uuid.UUID
	Month    int
	Year     int
}

func (o *Occurrence) Key() OccurrenceKey {
	return OccurrenceKey{Kind: o.Kind, SourceID: o.SourceID, Month: o.Month, Year: o.Year}
}

// ResetToPending clears every paid field.
func (o *Occurrence) ResetToPending() {
	o.Status = OccurrencePending
	o.PaidAt = nil
	o.PaidAmount = nil
	o.PaidFromAccountID = nil
	o.TransactionID = nil
}
