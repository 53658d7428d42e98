// Package repository holds the persistence contracts of the engine and their
// PostgreSQL and in-memory implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("already exists")
)

// Ledger is the account/transaction collaborator.
type Ledger interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	FindTransactionByLinkRef(ctx context.Context, ref models.LinkRef) (*models.Transaction, error)
	AdjustAccountBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error
	// SumDebits totals debit transactions on an account with from <= date <= to.
	SumDebits(ctx context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

type ScheduledPaymentStore interface {
	CreateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error
	UpdateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error
	GetScheduledPayment(ctx context.Context, id uuid.UUID) (*models.ScheduledPayment, error)
	DeleteScheduledPayment(ctx context.Context, id uuid.UUID) error
	ListScheduledPayments(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.ScheduledPayment, error)
}

type CreditCardStore interface {
	CreateCreditCard(ctx context.Context, c *models.CreditCard) error
	ListCreditCards(ctx context.Context, userID uuid.UUID) ([]models.CreditCard, error)
}

type OccurrenceStore interface {
	// InsertOccurrenceIfAbsent inserts o unless its key exists. When it exists o is
	// overwritten with the stored row and false is returned.
	InsertOccurrenceIfAbsent(ctx context.Context, o *models.Occurrence) (bool, error)
	GetOccurrence(ctx context.Context, id uuid.UUID) (*models.Occurrence, error)
	// LockOccurrence reads the row and, inside a transaction, holds it until commit.
	LockOccurrence(ctx context.Context, id uuid.UUID) (*models.Occurrence, error)
	UpdateOccurrence(ctx context.Context, o *models.Occurrence) error
	DeleteOccurrence(ctx context.Context, id uuid.UUID) error
	ListOccurrences(ctx context.Context, userID uuid.UUID, month, year int) ([]models.Occurrence, error)
	ListOccurrencesBySource(ctx context.Context, kind models.SourceKind, sourceID uuid.UUID) ([]models.Occurrence, error)
}

type LoanStore interface {
	CreateLoan(ctx context.Context, l *models.Loan) error
	UpdateLoan(ctx context.Context, l *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	LockLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	ListActiveLoans(ctx context.Context, userID uuid.UUID) ([]models.Loan, error)

	CreateLoanTerm(ctx context.Context, t *models.LoanTerm) error
	UpdateLoanTerm(ctx context.Context, t *models.LoanTerm) error
	GetOpenLoanTerm(ctx context.Context, loanID uuid.UUID) (*models.LoanTerm, error)
	ListLoanTerms(ctx context.Context, loanID uuid.UUID) ([]models.LoanTerm, error)

	CreateInstallments(ctx context.Context, rows []models.LoanInstallment) error
	GetInstallment(ctx context.Context, id uuid.UUID) (*models.LoanInstallment, error)
	UpdateInstallment(ctx context.Context, i *models.LoanInstallment) error
	ListInstallments(ctx context.Context, loanID uuid.UUID) ([]models.LoanInstallment, error)
	// DeletePendingInstallmentsFrom removes unpaid rows numbered >= fromNumber.
	DeletePendingInstallmentsFrom(ctx context.Context, loanID uuid.UUID, fromNumber int) (int, error)

	CreateBtAllocation(ctx context.Context, a *models.LoanBtAllocation) error
	ListBtAllocations(ctx context.Context, btLoanID uuid.UUID) ([]models.LoanBtAllocation, error)
}

type InsuranceStore interface {
	CreateInsurance(ctx context.Context, i *models.Insurance) error
	GetInsurance(ctx context.Context, id uuid.UUID) (*models.Insurance, error)
	ListActiveInsurance(ctx context.Context, userID uuid.UUID) ([]models.Insurance, error)
	CreatePremiums(ctx context.Context, rows []models.InsurancePremium) error
	GetPremium(ctx context.Context, id uuid.UUID) (*models.InsurancePremium, error)
	UpdatePremium(ctx context.Context, p *models.InsurancePremium) error
	ListPremiums(ctx context.Context, insuranceID uuid.UUID) ([]models.InsurancePremium, error)
}

type SalaryStore interface {
	// SaveSalaryProfile inserts or replaces the user's single profile.
	SaveSalaryProfile(ctx context.Context, p *models.SalaryProfile) error
	GetSalaryProfile(ctx context.Context, userID uuid.UUID) (*models.SalaryProfile, error)
	InsertSalaryCycleIfAbsent(ctx context.Context, c *models.SalaryCycle) (bool, error)
	GetSalaryCycle(ctx context.Context, id uuid.UUID) (*models.SalaryCycle, error)
	LockSalaryCycle(ctx context.Context, id uuid.UUID) (*models.SalaryCycle, error)
	UpdateSalaryCycle(ctx context.Context, c *models.SalaryCycle) error
}

// Store is everything the engine persists through.
type Store interface {
	Ledger
	ScheduledPaymentStore
	CreditCardStore
	OccurrenceStore
	LoanStore
	InsuranceStore
	SalaryStore

	// ListUserIDs returns every user owning at least one recurrence source or profile.
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
	// InTx runs fn atomically. Writes made through the Store passed to fn are discarded
	// when fn returns an error. Calling InTx on that Store runs fn in the same unit.
	InTx(ctx context.Context, fn func(Store) error) error
}
