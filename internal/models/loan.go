package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanClosed    LoanStatus = "closed"
	LoanDefaulted LoanStatus = "defaulted"
	LoanPreclosed LoanStatus = "preclosed"
	LoanClosedBT  LoanStatus = "closed_bt"
)

// Loan represents a borrowing repaid in equated monthly installments
type Loan struct {
	ID                   uuid.UUID        `json:"id"`
	UserID               uuid.UUID        `json:"user_id"`
	AccountID            *uuid.UUID       `json:"account_id,omitempty"`
	Name                 string           `json:"name"`
	Lender               string           `json:"lender"`
	PrincipalAmount      decimal.Decimal  `json:"principal_amount"`
	OutstandingAmount    decimal.Decimal  `json:"outstanding_amount"`
	InterestRate         decimal.Decimal  `json:"interest_rate"` // annual, percent
	RateSpread           *decimal.Decimal `json:"rate_spread,omitempty"`
	TenureMonths         int              `json:"tenure_months"`
	EMIAmount            decimal.Decimal  `json:"emi_amount"`
	EMIDay               int              `json:"emi_day"`
	StartDate            time.Time        `json:"start_date"`
	FirstEMIDate         time.Time        `json:"first_emi_date"`
	IsExistingLoan       bool             `json:"is_existing_loan"`
	EMIsPaid             int              `json:"emis_paid"`
	Status               LoanStatus       `json:"status"`
	AffectTransaction    bool             `json:"affect_transaction"`
	AffectAccountBalance bool             `json:"affect_account_balance"`
	ClosedAt             *time.Time       `json:"closed_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// LoanTerm is a rate/tenure/EMI window over a loan's life. Windows never overlap;
// the open term has a nil EffectiveTo.
type LoanTerm struct {
	ID                  uuid.UUID       `json:"id"`
	LoanID              uuid.UUID       `json:"loan_id"`
	EffectiveFrom       time.Time       `json:"effective_from"`
	EffectiveTo         *time.Time      `json:"effective_to,omitempty"`
	InterestRate        decimal.Decimal `json:"interest_rate"`
	TenureMonths        int             `json:"tenure_months"`
	EMIAmount           decimal.Decimal `json:"emi_amount"`
	OutstandingAtChange decimal.Decimal `json:"outstanding_at_change"`
	Reason              string          `json:"reason"`
	CreatedAt           time.Time       `json:"created_at"`
}

type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "pending"
	InstallmentPaid      InstallmentStatus = "paid"
	InstallmentCancelled InstallmentStatus = "cancelled"
)

// LoanInstallment is one EMI row of the amortization schedule
type LoanInstallment struct {
	ID                uuid.UUID         `json:"id"`
	LoanID            uuid.UUID         `json:"loan_id"`
	EMINumber         int               `json:"emi_number"`
	DueDate           time.Time         `json:"due_date"`
	EMIAmount         decimal.Decimal   `json:"emi_amount"`
	PrincipalAmount   decimal.Decimal   `json:"principal_amount"`
	InterestAmount    decimal.Decimal   `json:"interest_amount"`
	OutstandingAfter  decimal.Decimal   `json:"outstanding_after"`
	Status            InstallmentStatus `json:"status"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	PaidAmount        *decimal.Decimal  `json:"paid_amount,omitempty"`
	PrincipalReceived *decimal.Decimal  `json:"principal_received,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// LoanBtAllocation records a balance-transfer loan's disbursal earmarked to close another loan
type LoanBtAllocation struct {
	ID                        uuid.UUID       `json:"id"`
	BtLoanID                  uuid.UUID       `json:"bt_loan_id"`
	TargetLoanID              uuid.UUID       `json:"target_loan_id"`
	OriginalOutstandingAmount decimal.Decimal `json:"original_outstanding_amount"`
	TransferredAmount         decimal.Decimal `json:"transferred_amount"`
	CreatedAt                 time.Time       `json:"created_at"`
}

// Delta is the transferred amount minus the outstanding it closed.
func (a *LoanBtAllocation) Delta() decimal.Decimal {
	return a.TransferredAmount.Sub(a.OriginalOutstandingAmount)
}
