package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaSQL string

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Postgres provides database operations on a PostgreSQL database
type Postgres struct {
	db     *sql.DB
	q      queryer
	inTx   bool
	logger *logrus.Logger
}

// NewPostgres initializes a new PostgreSQL store
func NewPostgres(db *sql.DB, logger *logrus.Logger) *Postgres {
	return &Postgres{db: db, q: db, logger: logger}
}

// Migrate creates the schema when missing
func (r *Postgres) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// InTx runs fn inside a database transaction
func (r *Postgres) InTx(ctx context.Context, fn func(Store) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Postgres{db: r.db, q: tx, inTx: true, logger: r.logger}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func mapErr(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%s %v: %w", what, id, ErrDuplicate)
		case "foreign_key_violation":
			return fmt.Errorf("%s %v references a missing row: %w", what, id, ErrNotFound)
		}
	}
	return fmt.Errorf("failed to access %s: %w", what, err)
}

func expectOne(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}

func (r *Postgres) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM finance.scheduled_payments
		UNION SELECT user_id FROM finance.loans
		UNION SELECT user_id FROM finance.insurance
		UNION SELECT user_id FROM finance.credit_cards
		UNION SELECT user_id FROM finance.salary_profiles`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Ledger

const accountColumns = `id, user_id, name, type, balance, currency, created_at, updated_at`

func (r *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM finance.accounts WHERE id = $1`
	var a models.Account
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.Currency, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "account", id)
	}
	return &a, nil
}

const transactionColumns = `id, user_id, account_id, category_id, type, amount, description, transaction_date,
	payment_occurrence_id, salary_cycle_id, savings_contribution_id, created_at`

func (r *Postgres) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.Type, t.Amount, t.Description, t.TransactionDate,
		t.PaymentOccurrenceID, t.SalaryCycleID, t.SavingsContributionID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return mapErr(err, "transaction", t.ID)
	}
	return nil
}

func (r *Postgres) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM finance.transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOne(res, "transaction", id)
}

func (r *Postgres) FindTransactionByLinkRef(ctx context.Context, ref models.LinkRef) (*models.Transaction, error) {
	var column string
	var id uuid.UUID
	switch {
	case ref.PaymentOccurrenceID != nil:
		column, id = "payment_occurrence_id", *ref.PaymentOccurrenceID
	case ref.SalaryCycleID != nil:
		column, id = "salary_cycle_id", *ref.SalaryCycleID
	case ref.SavingsContributionID != nil:
		column, id = "savings_contribution_id", *ref.SavingsContributionID
	default:
		return nil, fmt.Errorf("empty link reference: %w", ErrNotFound)
	}
	query := `SELECT ` + transactionColumns + ` FROM finance.transactions WHERE ` + column + ` = $1 LIMIT 1`
	var t models.Transaction
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Type, &t.Amount, &t.Description, &t.TransactionDate,
		&t.PaymentOccurrenceID, &t.SalaryCycleID, &t.SavingsContributionID, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "linked transaction", id)
	}
	return &t, nil
}

func (r *Postgres) AdjustAccountBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	query := `
		UPDATE finance.accounts
		SET balance = balance + $1,
			updated_at = NOW()
		WHERE id = $2`
	res, err := r.q.ExecContext(ctx, query, delta, accountID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectOne(res, "account", accountID)
}

func (r *Postgres) SumDebits(ctx context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM finance.transactions
		WHERE account_id = $1 AND type = 'debit' AND transaction_date BETWEEN $2 AND $3`
	var sum decimal.Decimal
	if err := r.q.QueryRowContext(ctx, query, accountID, from, to).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum debits: %w", err)
	}
	return sum, nil
}

// Scheduled payments

const scheduledColumns = `id, user_id, account_id, category_id, name, amount, frequency, custom_interval_months,
	start_month, start_year, due_date_type, due_date, affect_transaction, affect_account_balance, is_active,
	created_at, updated_at`

func scanScheduled(s scanner) (*models.ScheduledPayment, error) {
	var p models.ScheduledPayment
	err := s.Scan(&p.ID, &p.UserID, &p.AccountID, &p.CategoryID, &p.Name, &p.Amount, &p.Frequency,
		&p.CustomIntervalMonths, &p.StartMonth, &p.StartYear, &p.DueDateType, &p.DueDay,
		&p.AffectTransaction, &p.AffectAccountBalance, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Kind = models.SourceScheduled
	return &p, nil
}

func (r *Postgres) CreateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.scheduled_payments (` + scheduledColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.AccountID, p.CategoryID, p.Name, p.Amount, p.Frequency, p.CustomIntervalMonths,
		p.StartMonth, p.StartYear, p.DueDateType, p.DueDay, p.AffectTransaction, p.AffectAccountBalance, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapErr(err, "scheduled payment", p.ID)
	}
	return nil
}

func (r *Postgres) UpdateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error {
	query := `
		UPDATE finance.scheduled_payments
		SET account_id = $2, category_id = $3, name = $4, amount = $5, frequency = $6,
			custom_interval_months = $7, start_month = $8, start_year = $9, due_date_type = $10, due_date = $11,
			affect_transaction = $12, affect_account_balance = $13, is_active = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query,
		p.ID, p.AccountID, p.CategoryID, p.Name, p.Amount, p.Frequency, p.CustomIntervalMonths,
		p.StartMonth, p.StartYear, p.DueDateType, p.DueDay, p.AffectTransaction, p.AffectAccountBalance, p.IsActive,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return mapErr(err, "scheduled payment", p.ID)
	}
	return nil
}

func (r *Postgres) GetScheduledPayment(ctx context.Context, id uuid.UUID) (*models.ScheduledPayment, error) {
	query := `SELECT ` + scheduledColumns + ` FROM finance.scheduled_payments WHERE id = $1`
	p, err := scanScheduled(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "scheduled payment", id)
	}
	return p, nil
}

func (r *Postgres) DeleteScheduledPayment(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM finance.scheduled_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled payment: %w", err)
	}
	return expectOne(res, "scheduled payment", id)
}

func (r *Postgres) ListScheduledPayments(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.ScheduledPayment, error) {
	query := `
		SELECT ` + scheduledColumns + `
		FROM finance.scheduled_payments
		WHERE user_id = $1 AND (is_active OR NOT $2)
		ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled payments: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduledPayment
	for rows.Next() {
		p, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Credit cards

const cardColumns = `id, user_id, card_account_id, pay_from_account_id, name, billing_day, due_day,
	affect_transaction, affect_account_balance, is_active, created_at, updated_at`

func (r *Postgres) CreateCreditCard(ctx context.Context, c *models.CreditCard) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.credit_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		c.ID, c.UserID, c.CardAccountID, c.PayFromAccountID, c.Name, c.BillingDay, c.DueDay,
		c.AffectTransaction, c.AffectAccountBalance, c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapErr(err, "credit card", c.ID)
	}
	return nil
}

func (r *Postgres) ListCreditCards(ctx context.Context, userID uuid.UUID) ([]models.CreditCard, error) {
	query := `SELECT ` + cardColumns + ` FROM finance.credit_cards WHERE user_id = $1 AND is_active ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit cards: %w", err)
	}
	defer rows.Close()

	var out []models.CreditCard
	for rows.Next() {
		var c models.CreditCard
		if err := rows.Scan(&c.ID, &c.UserID, &c.CardAccountID, &c.PayFromAccountID, &c.Name, &c.BillingDay,
			&c.DueDay, &c.AffectTransaction, &c.AffectAccountBalance, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Occurrences

const occurrenceColumns = `id, user_id, source_kind, source_id, installment_id, name, month, year, due_date,
	amount, account_id, category_id, status, paid_at, paid_amount, paid_from_account_id, transaction_id,
	affect_transaction, affect_account_balance, created_at, updated_at`

func scanOccurrence(s scanner) (*models.Occurrence, error) {
	var o models.Occurrence
	err := s.Scan(&o.ID, &o.UserID, &o.Kind, &o.SourceID, &o.InstallmentID, &o.Name, &o.Month, &o.Year,
		&o.DueDate, &o.Amount, &o.AccountID, &o.CategoryID, &o.Status, &o.PaidAt, &o.PaidAmount,
		&o.PaidFromAccountID, &o.TransactionID, &o.AffectTransaction, &o.AffectAccountBalance,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Postgres) InsertOccurrenceIfAbsent(ctx context.Context, o *models.Occurrence) (bool, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.payment_occurrences (` + occurrenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW())
		ON CONFLICT (source_kind, source_id, month, year) DO NOTHING
		RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		o.ID, o.UserID, o.Kind, o.SourceID, o.InstallmentID, o.Name, o.Month, o.Year, o.DueDate,
		o.Amount, o.AccountID, o.CategoryID, o.Status, o.PaidAt, o.PaidAmount, o.PaidFromAccountID,
		o.TransactionID, o.AffectTransaction, o.AffectAccountBalance,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, mapErr(err, "occurrence", o.ID)
	}

	query = `
		SELECT ` + occurrenceColumns + `
		FROM finance.payment_occurrences
		WHERE source_kind = $1 AND source_id = $2 AND month = $3 AND year = $4`
	existing, err := scanOccurrence(r.q.QueryRowContext(ctx, query, o.Kind, o.SourceID, o.Month, o.Year))
	if err != nil {
		return false, mapErr(err, "occurrence", o.SourceID)
	}
	*o = *existing
	return false, nil
}

func (r *Postgres) GetOccurrence(ctx context.Context, id uuid.UUID) (*models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM finance.payment_occurrences WHERE id = $1`
	o, err := scanOccurrence(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "occurrence", id)
	}
	return o, nil
}

func (r *Postgres) LockOccurrence(ctx context.Context, id uuid.UUID) (*models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM finance.payment_occurrences WHERE id = $1 FOR UPDATE`
	o, err := scanOccurrence(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "occurrence", id)
	}
	return o, nil
}

func (r *Postgres) UpdateOccurrence(ctx context.Context, o *models.Occurrence) error {
	query := `
		UPDATE finance.payment_occurrences
		SET due_date = $2, amount = $3, status = $4, paid_at = $5, paid_amount = $6,
			paid_from_account_id = $7, transaction_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query,
		o.ID, o.DueDate, o.Amount, o.Status, o.PaidAt, o.PaidAmount, o.PaidFromAccountID, o.TransactionID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return mapErr(err, "occurrence", o.ID)
	}
	return nil
}

func (r *Postgres) DeleteOccurrence(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM finance.payment_occurrences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete occurrence: %w", err)
	}
	return expectOne(res, "occurrence", id)
}

func (r *Postgres) queryOccurrences(ctx context.Context, query string, args ...any) ([]models.Occurrence, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query occurrences: %w", err)
	}
	defer rows.Close()

	var out []models.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Postgres) ListOccurrences(ctx context.Context, userID uuid.UUID, month, year int) ([]models.Occurrence, error) {
	query := `
		SELECT ` + occurrenceColumns + `
		FROM finance.payment_occurrences
		WHERE user_id = $1 AND month = $2 AND year = $3
		ORDER BY due_date, name`
	return r.queryOccurrences(ctx, query, userID, month, year)
}

func (r *Postgres) ListOccurrencesBySource(ctx context.Context, kind models.SourceKind, sourceID uuid.UUID) ([]models.Occurrence, error) {
	query := `
		SELECT ` + occurrenceColumns + `
		FROM finance.payment_occurrences
		WHERE source_kind = $1 AND source_id = $2
		ORDER BY due_date`
	return r.queryOccurrences(ctx, query, kind, sourceID)
}

// Loans

const loanColumns = `id, user_id, account_id, name, lender, principal_amount, outstanding_amount, interest_rate,
	rate_spread, tenure_months, emi_amount, emi_day, start_date, first_emi_date, is_existing_loan, emis_paid,
	status, affect_transaction, affect_account_balance, closed_at, created_at, updated_at`

func scanLoan(s scanner) (*models.Loan, error) {
	var l models.Loan
	err := s.Scan(&l.ID, &l.UserID, &l.AccountID, &l.Name, &l.Lender, &l.PrincipalAmount, &l.OutstandingAmount,
		&l.InterestRate, &l.RateSpread, &l.TenureMonths, &l.EMIAmount, &l.EMIDay, &l.StartDate, &l.FirstEMIDate,
		&l.IsExistingLoan, &l.EMIsPaid, &l.Status, &l.AffectTransaction, &l.AffectAccountBalance, &l.ClosedAt,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Postgres) CreateLoan(ctx context.Context, l *models.Loan) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		l.ID, l.UserID, l.AccountID, l.Name, l.Lender, l.PrincipalAmount, l.OutstandingAmount, l.InterestRate,
		l.RateSpread, l.TenureMonths, l.EMIAmount, l.EMIDay, l.StartDate, l.FirstEMIDate, l.IsExistingLoan,
		l.EMIsPaid, l.Status, l.AffectTransaction, l.AffectAccountBalance, l.ClosedAt,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return mapErr(err, "loan", l.ID)
	}
	return nil
}

func (r *Postgres) UpdateLoan(ctx context.Context, l *models.Loan) error {
	query := `
		UPDATE finance.loans
		SET outstanding_amount = $2, interest_rate = $3, rate_spread = $4, tenure_months = $5, emi_amount = $6,
			emi_day = $7, emis_paid = $8, status = $9, closed_at = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query,
		l.ID, l.OutstandingAmount, l.InterestRate, l.RateSpread, l.TenureMonths, l.EMIAmount, l.EMIDay,
		l.EMIsPaid, l.Status, l.ClosedAt,
	).Scan(&l.UpdatedAt)
	if err != nil {
		return mapErr(err, "loan", l.ID)
	}
	return nil
}

func (r *Postgres) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM finance.loans WHERE id = $1`
	l, err := scanLoan(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "loan", id)
	}
	return l, nil
}

func (r *Postgres) LockLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM finance.loans WHERE id = $1 FOR UPDATE`
	l, err := scanLoan(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "loan", id)
	}
	return l, nil
}

func (r *Postgres) ListActiveLoans(ctx context.Context, userID uuid.UUID) ([]models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM finance.loans WHERE user_id = $1 AND status = 'active' ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var out []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

const termColumns = `id, loan_id, effective_from, effective_to, interest_rate, tenure_months, emi_amount,
	outstanding_at_change, reason, created_at`

func (r *Postgres) CreateLoanTerm(ctx context.Context, t *models.LoanTerm) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.loan_terms (` + termColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query,
		t.ID, t.LoanID, t.EffectiveFrom, t.EffectiveTo, t.InterestRate, t.TenureMonths, t.EMIAmount,
		t.OutstandingAtChange, t.Reason,
	).Scan(&t.CreatedAt)
	if err != nil {
		return mapErr(err, "loan term", t.ID)
	}
	return nil
}

func (r *Postgres) UpdateLoanTerm(ctx context.Context, t *models.LoanTerm) error {
	res, err := r.q.ExecContext(ctx, `UPDATE finance.loan_terms SET effective_to = $2 WHERE id = $1`, t.ID, t.EffectiveTo)
	if err != nil {
		return fmt.Errorf("failed to update loan term: %w", err)
	}
	return expectOne(res, "loan term", t.ID)
}

func (r *Postgres) queryTerms(ctx context.Context, query string, args ...any) ([]models.LoanTerm, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan terms: %w", err)
	}
	defer rows.Close()

	var out []models.LoanTerm
	for rows.Next() {
		var t models.LoanTerm
		if err := rows.Scan(&t.ID, &t.LoanID, &t.EffectiveFrom, &t.EffectiveTo, &t.InterestRate, &t.TenureMonths,
			&t.EMIAmount, &t.OutstandingAtChange, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan term: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Postgres) GetOpenLoanTerm(ctx context.Context, loanID uuid.UUID) (*models.LoanTerm, error) {
	terms, err := r.queryTerms(ctx,
		`SELECT `+termColumns+` FROM finance.loan_terms WHERE loan_id = $1 AND effective_to IS NULL`, loanID)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("open term for loan %s: %w", loanID, ErrNotFound)
	}
	return &terms[0], nil
}

func (r *Postgres) ListLoanTerms(ctx context.Context, loanID uuid.UUID) ([]models.LoanTerm, error) {
	return r.queryTerms(ctx,
		`SELECT `+termColumns+` FROM finance.loan_terms WHERE loan_id = $1 ORDER BY effective_from, created_at`, loanID)
}

const installmentColumns = `id, loan_id, emi_number, due_date, emi_amount, principal_amount, interest_amount,
	outstanding_after, status, paid_at, paid_amount, principal_received, created_at, updated_at`

func scanInstallment(s scanner) (*models.LoanInstallment, error) {
	var i models.LoanInstallment
	err := s.Scan(&i.ID, &i.LoanID, &i.EMINumber, &i.DueDate, &i.EMIAmount, &i.PrincipalAmount, &i.InterestAmount,
		&i.OutstandingAfter, &i.Status, &i.PaidAt, &i.PaidAmount, &i.PrincipalReceived, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *Postgres) CreateInstallments(ctx context.Context, rows []models.LoanInstallment) error {
	query := `
		INSERT INTO finance.loan_installments (` + installmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING created_at, updated_at`
	for i := range rows {
		row := &rows[i]
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		err := r.q.QueryRowContext(ctx, query,
			row.ID, row.LoanID, row.EMINumber, row.DueDate, row.EMIAmount, row.PrincipalAmount, row.InterestAmount,
			row.OutstandingAfter, row.Status, row.PaidAt, row.PaidAmount, row.PrincipalReceived,
		).Scan(&row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return mapErr(err, "installment", row.EMINumber)
		}
	}
	return nil
}

func (r *Postgres) GetInstallment(ctx context.Context, id uuid.UUID) (*models.LoanInstallment, error) {
	query := `SELECT ` + installmentColumns + ` FROM finance.loan_installments WHERE id = $1`
	i, err := scanInstallment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "installment", id)
	}
	return i, nil
}

func (r *Postgres) UpdateInstallment(ctx context.Context, i *models.LoanInstallment) error {
	query := `
		UPDATE finance.loan_installments
		SET status = $2, paid_at = $3, paid_amount = $4, principal_received = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query, i.ID, i.Status, i.PaidAt, i.PaidAmount, i.PrincipalReceived).Scan(&i.UpdatedAt)
	if err != nil {
		return mapErr(err, "installment", i.ID)
	}
	return nil
}

func (r *Postgres) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]models.LoanInstallment, error) {
	query := `SELECT ` + installmentColumns + ` FROM finance.loan_installments WHERE loan_id = $1 ORDER BY emi_number`
	rows, err := r.q.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var out []models.LoanInstallment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *Postgres) DeletePendingInstallmentsFrom(ctx context.Context, loanID uuid.UUID, fromNumber int) (int, error) {
	query := `DELETE FROM finance.loan_installments WHERE loan_id = $1 AND emi_number >= $2 AND status = 'pending'`
	res, err := r.q.ExecContext(ctx, query, loanID, fromNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to delete installments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *Postgres) CreateBtAllocation(ctx context.Context, a *models.LoanBtAllocation) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.loan_bt_allocations (id, bt_loan_id, target_loan_id, original_outstanding_amount,
			transferred_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query,
		a.ID, a.BtLoanID, a.TargetLoanID, a.OriginalOutstandingAmount, a.TransferredAmount,
	).Scan(&a.CreatedAt)
	if err != nil {
		return mapErr(err, "bt allocation", a.ID)
	}
	return nil
}

func (r *Postgres) ListBtAllocations(ctx context.Context, btLoanID uuid.UUID) ([]models.LoanBtAllocation, error) {
	query := `
		SELECT id, bt_loan_id, target_loan_id, original_outstanding_amount, transferred_amount, created_at
		FROM finance.loan_bt_allocations
		WHERE bt_loan_id = $1
		ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query, btLoanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bt allocations: %w", err)
	}
	defer rows.Close()

	var out []models.LoanBtAllocation
	for rows.Next() {
		var a models.LoanBtAllocation
		if err := rows.Scan(&a.ID, &a.BtLoanID, &a.TargetLoanID, &a.OriginalOutstandingAmount,
			&a.TransferredAmount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bt allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Insurance

const insuranceColumns = `id, user_id, account_id, name, provider, policy_number, premium_amount,
	premium_frequency, terms_per_period, start_date, end_date, status, affect_transaction,
	affect_account_balance, created_at, updated_at`

func scanInsurance(s scanner) (*models.Insurance, error) {
	var i models.Insurance
	err := s.Scan(&i.ID, &i.UserID, &i.AccountID, &i.Name, &i.Provider, &i.PolicyNumber, &i.PremiumAmount,
		&i.PremiumFrequency, &i.TermsPerPeriod, &i.StartDate, &i.EndDate, &i.Status, &i.AffectTransaction,
		&i.AffectAccountBalance, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *Postgres) CreateInsurance(ctx context.Context, i *models.Insurance) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.insurance (` + insuranceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		i.ID, i.UserID, i.AccountID, i.Name, i.Provider, i.PolicyNumber, i.PremiumAmount, i.PremiumFrequency,
		i.TermsPerPeriod, i.StartDate, i.EndDate, i.Status, i.AffectTransaction, i.AffectAccountBalance,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return mapErr(err, "insurance", i.ID)
	}
	return nil
}

func (r *Postgres) GetInsurance(ctx context.Context, id uuid.UUID) (*models.Insurance, error) {
	query := `SELECT ` + insuranceColumns + ` FROM finance.insurance WHERE id = $1`
	i, err := scanInsurance(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "insurance", id)
	}
	return i, nil
}

func (r *Postgres) ListActiveInsurance(ctx context.Context, userID uuid.UUID) ([]models.Insurance, error) {
	query := `SELECT ` + insuranceColumns + ` FROM finance.insurance WHERE user_id = $1 AND status = 'active' ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query insurance: %w", err)
	}
	defer rows.Close()

	var out []models.Insurance
	for rows.Next() {
		i, err := scanInsurance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insurance: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

const premiumColumns = `id, insurance_id, period_number, term_number, due_date, amount, status, paid_at,
	paid_amount, created_at, updated_at`

func scanPremium(s scanner) (*models.InsurancePremium, error) {
	var p models.InsurancePremium
	err := s.Scan(&p.ID, &p.InsuranceID, &p.PeriodNumber, &p.TermNumber, &p.DueDate, &p.Amount, &p.Status,
		&p.PaidAt, &p.PaidAmount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Postgres) CreatePremiums(ctx context.Context, rows []models.InsurancePremium) error {
	query := `
		INSERT INTO finance.insurance_premiums (` + premiumColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`
	for i := range rows {
		p := &rows[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		err := r.q.QueryRowContext(ctx, query,
			p.ID, p.InsuranceID, p.PeriodNumber, p.TermNumber, p.DueDate, p.Amount, p.Status, p.PaidAt, p.PaidAmount,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return mapErr(err, "premium", p.ID)
		}
	}
	return nil
}

func (r *Postgres) GetPremium(ctx context.Context, id uuid.UUID) (*models.InsurancePremium, error) {
	query := `SELECT ` + premiumColumns + ` FROM finance.insurance_premiums WHERE id = $1`
	p, err := scanPremium(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "premium", id)
	}
	return p, nil
}

func (r *Postgres) UpdatePremium(ctx context.Context, p *models.InsurancePremium) error {
	query := `
		UPDATE finance.insurance_premiums
		SET status = $2, paid_at = $3, paid_amount = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	if err := r.q.QueryRowContext(ctx, query, p.ID, p.Status, p.PaidAt, p.PaidAmount).Scan(&p.UpdatedAt); err != nil {
		return mapErr(err, "premium", p.ID)
	}
	return nil
}

func (r *Postgres) ListPremiums(ctx context.Context, insuranceID uuid.UUID) ([]models.InsurancePremium, error) {
	query := `SELECT ` + premiumColumns + ` FROM finance.insurance_premiums WHERE insurance_id = $1 ORDER BY due_date`
	rows, err := r.q.QueryContext(ctx, query, insuranceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query premiums: %w", err)
	}
	defer rows.Close()

	var out []models.InsurancePremium
	for rows.Next() {
		p, err := scanPremium(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan premium: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Salary

const profileColumns = `id, user_id, payday_rule, fixed_day, weekday_preference, weekday_ordinal,
	monthly_amount, account_id, is_active, created_at, updated_at`

func (r *Postgres) SaveSalaryProfile(ctx context.Context, p *models.SalaryProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.salary_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET payday_rule = EXCLUDED.payday_rule, fixed_day = EXCLUDED.fixed_day,
			weekday_preference = EXCLUDED.weekday_preference, weekday_ordinal = EXCLUDED.weekday_ordinal,
			monthly_amount = EXCLUDED.monthly_amount, account_id = EXCLUDED.account_id,
			is_active = EXCLUDED.is_active, updated_at = NOW()
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.PaydayRule, p.FixedDay, p.WeekdayPreference, p.WeekdayOrdinal, p.MonthlyAmount,
		p.AccountID, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapErr(err, "salary profile", p.UserID)
	}
	return nil
}

func (r *Postgres) GetSalaryProfile(ctx context.Context, userID uuid.UUID) (*models.SalaryProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM finance.salary_profiles WHERE user_id = $1`
	var p models.SalaryProfile
	err := r.q.QueryRowContext(ctx, query, userID).Scan(&p.ID, &p.UserID, &p.PaydayRule, &p.FixedDay,
		&p.WeekdayPreference, &p.WeekdayOrdinal, &p.MonthlyAmount, &p.AccountID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "salary profile", userID)
	}
	return &p, nil
}

const cycleColumns = `id, user_id, profile_id, month, year, expected_date, expected_amount, actual_date,
	actual_amount, account_id, transaction_id, status, created_at, updated_at`

func scanCycle(s scanner) (*models.SalaryCycle, error) {
	var c models.SalaryCycle
	err := s.Scan(&c.ID, &c.UserID, &c.ProfileID, &c.Month, &c.Year, &c.ExpectedDate, &c.ExpectedAmount,
		&c.ActualDate, &c.ActualAmount, &c.AccountID, &c.TransactionID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Postgres) InsertSalaryCycleIfAbsent(ctx context.Context, c *models.SalaryCycle) (bool, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO finance.salary_cycles (` + cycleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (user_id, month, year) DO NOTHING
		RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		c.ID, c.UserID, c.ProfileID, c.Month, c.Year, c.ExpectedDate, c.ExpectedAmount, c.ActualDate,
		c.ActualAmount, c.AccountID, c.TransactionID, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, mapErr(err, "salary cycle", c.ID)
	}

	query = `SELECT ` + cycleColumns + ` FROM finance.salary_cycles WHERE user_id = $1 AND month = $2 AND year = $3`
	existing, err := scanCycle(r.q.QueryRowContext(ctx, query, c.UserID, c.Month, c.Year))
	if err != nil {
		return false, mapErr(err, "salary cycle", c.UserID)
	}
	*c = *existing
	return false, nil
}

func (r *Postgres) GetSalaryCycle(ctx context.Context, id uuid.UUID) (*models.SalaryCycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM finance.salary_cycles WHERE id = $1`
	c, err := scanCycle(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "salary cycle", id)
	}
	return c, nil
}

func (r *Postgres) LockSalaryCycle(ctx context.Context, id uuid.UUID) (*models.SalaryCycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM finance.salary_cycles WHERE id = $1 FOR UPDATE`
	c, err := scanCycle(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "salary cycle", id)
	}
	return c, nil
}

func (r *Postgres) UpdateSalaryCycle(ctx context.Context, c *models.SalaryCycle) error {
	query := `
		UPDATE finance.salary_cycles
		SET actual_date = $2, actual_amount = $3, account_id = $4, transaction_id = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query,
		c.ID, c.ActualDate, c.ActualAmount, c.AccountID, c.TransactionID, c.Status,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return mapErr(err, "salary cycle", c.ID)
	}
	return nil
}
