package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditCard carries the statement cycle of a credit card account.
// BillingDay closes a cycle; DueDay is when the bill for that cycle is payable.
type CreditCard struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	CardAccountID        uuid.UUID  `json:"card_account_id"`
	PayFromAccountID     *uuid.UUID `json:"pay_from_account_id,omitempty"`
	Name                 string     `json:"name"`
	BillingDay           int        `json:"billing_day"`
	DueDay               int        `json:"due_day"`
	AffectTransaction    bool       `json:"affect_transaction"`
	AffectAccountBalance bool       `json:"affect_account_balance"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// AsSource projects the card onto a monthly fixed-day recurrence.
func (c *CreditCard) AsSource() *RecurrenceSource {
	day := c.DueDay
	return &RecurrenceSource{
		ID:                   c.ID,
		Kind:                 SourceCreditCard,
		UserID:               c.UserID,
		AccountID:            c.PayFromAccountID,
		Name:                 c.Name,
		Frequency:            FrequencyMonthly,
		DueDateType:          DueDateFixedDay,
		DueDay:               &day,
		AffectTransaction:    c.AffectTransaction,
		AffectAccountBalance: c.AffectAccountBalance,
		IsActive:             c.IsActive,
	}
}
