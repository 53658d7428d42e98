package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cycleKey struct {
	userID      uuid.UUID
	month, year int
}

type memData struct {
	accounts     map[uuid.UUID]models.Account
	transactions map[uuid.UUID]models.Transaction
	scheduled    map[uuid.UUID]models.ScheduledPayment
	cards        map[uuid.UUID]models.CreditCard
	occurrences  map[uuid.UUID]models.Occurrence
	occKeys      map[models.OccurrenceKey]uuid.UUID
	loans        map[uuid.UUID]models.Loan
	terms        map[uuid.UUID]models.LoanTerm
	installments map[uuid.UUID]models.LoanInstallment
	btAllocs     map[uuid.UUID]models.LoanBtAllocation
	insurance    map[uuid.UUID]models.Insurance
	premiums     map[uuid.UUID]models.InsurancePremium
	profiles     map[uuid.UUID]models.SalaryProfile // by user
	cycles       map[uuid.UUID]models.SalaryCycle
	cycleKeys    map[cycleKey]uuid.UUID
}

func newMemData() *memData {
	return &memData{
		accounts:     map[uuid.UUID]models.Account{},
		transactions: map[uuid.UUID]models.Transaction{},
		scheduled:    map[uuid.UUID]models.ScheduledPayment{},
		cards:        map[uuid.UUID]models.CreditCard{},
		occurrences:  map[uuid.UUID]models.Occurrence{},
		occKeys:      map[models.OccurrenceKey]uuid.UUID{},
		loans:        map[uuid.UUID]models.Loan{},
		terms:        map[uuid.UUID]models.LoanTerm{},
		installments: map[uuid.UUID]models.LoanInstallment{},
		btAllocs:     map[uuid.UUID]models.LoanBtAllocation{},
		insurance:    map[uuid.UUID]models.Insurance{},
		premiums:     map[uuid.UUID]models.InsurancePremium{},
		profiles:     map[uuid.UUID]models.SalaryProfile{},
		cycles:       map[uuid.UUID]models.SalaryCycle{},
		cycleKeys:    map[cycleKey]uuid.UUID{},
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Stored values are replaced wholesale on update, so a shallow copy is a full snapshot.
func (d *memData) clone() *memData {
	return &memData{
		accounts:     cloneMap(d.accounts),
		transactions: cloneMap(d.transactions),
		scheduled:    cloneMap(d.scheduled),
		cards:        cloneMap(d.cards),
		occurrences:  cloneMap(d.occurrences),
		occKeys:      cloneMap(d.occKeys),
		loans:        cloneMap(d.loans),
		terms:        cloneMap(d.terms),
		installments: cloneMap(d.installments),
		btAllocs:     cloneMap(d.btAllocs),
		insurance:    cloneMap(d.insurance),
		premiums:     cloneMap(d.premiums),
		profiles:     cloneMap(d.profiles),
		cycles:       cloneMap(d.cycles),
		cycleKeys:    cloneMap(d.cycleKeys),
	}
}

// Memory is an in-process Store used for development and tests.
type Memory struct {
	*memState
	inTx bool
}

type memState struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *memData
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{memState: &memState{data: newMemData()}}
}

// InTx serialises fn against other transactions and restores the pre-call state when fn
// fails. Writes made outside a transaction wait for it to finish, so a rollback never
// discards them. A nested InTx joins the outer unit.
func (m *Memory) InTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	if err := fn(&Memory{memState: m.memState, inTx: true}); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// lock takes the write lock, and the transaction lock as well when m is not inside InTx.
func (m *Memory) lock() func() {
	if !m.inTx {
		m.txMu.Lock()
	}
	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		if !m.inTx {
			m.txMu.Unlock()
		}
	}
}

// PutAccount inserts or replaces an account. Accounts are owned by the ledger service,
// this exists for seeding.
func (m *Memory) PutAccount(a models.Account) {
	defer m.lock()()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.data.accounts[a.ID] = a
}

// ListTransactions returns an account's transactions ordered by date.
func (m *Memory) ListTransactions(accountID uuid.UUID) []models.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Transaction
	for _, t := range m.data.transactions {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionDate.Before(out[j].TransactionDate) })
	return out
}

func (m *Memory) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[uuid.UUID]bool{}
	for _, s := range m.data.scheduled {
		seen[s.UserID] = true
	}
	for _, l := range m.data.loans {
		seen[l.UserID] = true
	}
	for _, i := range m.data.insurance {
		seen[i.UserID] = true
	}
	for _, c := range m.data.cards {
		seen[c.UserID] = true
	}
	for uid := range m.data.profiles {
		seen[uid] = true
	}
	out := make([]uuid.UUID, 0, len(seen))
	for uid := range seen {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Ledger

func (m *Memory) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.data.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	defer m.lock()()
	if _, ok := m.data.accounts[t.AccountID]; !ok {
		return fmt.Errorf("account %s: %w", t.AccountID, ErrNotFound)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.data.transactions[t.ID] = *t
	return nil
}

func (m *Memory) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.data.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	delete(m.data.transactions, id)
	return nil
}

func (m *Memory) FindTransactionByLinkRef(ctx context.Context, ref models.LinkRef) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.data.transactions {
		if t.Matches(ref) {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("linked transaction: %w", ErrNotFound)
}

func (m *Memory) AdjustAccountBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	defer m.lock()()
	a, ok := m.data.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	a.Balance = models.RoundMoney(a.Balance.Add(delta))
	a.UpdatedAt = time.Now().UTC()
	m.data.accounts[accountID] = a
	return nil
}

func (m *Memory) SumDebits(ctx context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, t := range m.data.transactions {
		if t.AccountID != accountID || t.Type != models.TransactionTypeDebit {
			continue
		}
		if t.TransactionDate.Before(from) || t.TransactionDate.After(to) {
			continue
		}
		sum = sum.Add(t.Amount)
	}
	return sum, nil
}

// Scheduled payments

func (m *Memory) CreateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error {
	defer m.lock()()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.data.scheduled[p.ID] = *p
	return nil
}

func (m *Memory) UpdateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error {
	defer m.lock()()
	if _, ok := m.data.scheduled[p.ID]; !ok {
		return fmt.Errorf("scheduled payment %s: %w", p.ID, ErrNotFound)
	}
	p.UpdatedAt = time.Now().UTC()
	m.data.scheduled[p.ID] = *p
	return nil
}

func (m *Memory) GetScheduledPayment(ctx context.Context, id uuid.UUID) (*models.ScheduledPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data.scheduled[id]
	if !ok {
		return nil, fmt.Errorf("scheduled payment %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) DeleteScheduledPayment(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.data.scheduled[id]; !ok {
		return fmt.Errorf("scheduled payment %s: %w", id, ErrNotFound)
	}
	delete(m.data.scheduled, id)
	return nil
}

func (m *Memory) ListScheduledPayments(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.ScheduledPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ScheduledPayment
	for _, p := range m.data.scheduled {
		if p.UserID == userID && (!activeOnly || p.IsActive) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Credit cards

func (m *Memory) CreateCreditCard(ctx context.Context, c *models.CreditCard) error {
	defer m.lock()()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.data.cards[c.ID] = *c
	return nil
}

func (m *Memory) ListCreditCards(ctx context.Context, userID uuid.UUID) ([]models.CreditCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CreditCard
	for _, c := range m.data.cards {
		if c.UserID == userID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Occurrences

func (m *Memory) InsertOccurrenceIfAbsent(ctx context.Context, o *models.Occurrence) (bool, error) {
	defer m.lock()()
	if id, ok := m.data.occKeys[o.Key()]; ok {
		*o = m.data.occurrences[id]
		return false, nil
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	m.data.occurrences[o.ID] = *o
	m.data.occKeys[o.Key()] = o.ID
	return true, nil
}

func (m *Memory) GetOccurrence(ctx context.Context, id uuid.UUID) (*models.Occurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.data.occurrences[id]
	if !ok {
		return nil, fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (m *Memory) LockOccurrence(ctx context.Context, id uuid.UUID) (*models.Occurrence, error) {
	return m.GetOccurrence(ctx, id)
}

func (m *Memory) UpdateOccurrence(ctx context.Context, o *models.Occurrence) error {
	defer m.lock()()
	if _, ok := m.data.occurrences[o.ID]; !ok {
		return fmt.Errorf("occurrence %s: %w", o.ID, ErrNotFound)
	}
	o.UpdatedAt = time.Now().UTC()
	m.data.occurrences[o.ID] = *o
	return nil
}

func (m *Memory) DeleteOccurrence(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	o, ok := m.data.occurrences[id]
	if !ok {
		return fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	delete(m.data.occKeys, o.Key())
	delete(m.data.occurrences, id)
	return nil
}

func sortOccurrences(out []models.Occurrence) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Name < out[j].Name
	})
}

func (m *Memory) ListOccurrences(ctx context.Context, userID uuid.UUID, month, year int) ([]models.Occurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Occurrence
	for _, o := range m.data.occurrences {
		if o.UserID == userID && o.Month == month && o.Year == year {
			out = append(out, o)
		}
	}
	sortOccurrences(out)
	return out, nil
}

func (m *Memory) ListOccurrencesBySource(ctx context.Context, kind models.SourceKind, sourceID uuid.UUID) ([]models.Occurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Occurrence
	for _, o := range m.data.occurrences {
		if o.Kind == kind && o.SourceID == sourceID {
			out = append(out, o)
		}
	}
	sortOccurrences(out)
	return out, nil
}

// Loans

func (m *Memory) CreateLoan(ctx context.Context, l *models.Loan) error {
	defer m.lock()()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	m.data.loans[l.ID] = *l
	return nil
}

func (m *Memory) UpdateLoan(ctx context.Context, l *models.Loan) error {
	defer m.lock()()
	if _, ok := m.data.loans[l.ID]; !ok {
		return fmt.Errorf("loan %s: %w", l.ID, ErrNotFound)
	}
	l.UpdatedAt = time.Now().UTC()
	m.data.loans[l.ID] = *l
	return nil
}

func (m *Memory) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.data.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
	}
	return &l, nil
}

func (m *Memory) LockLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return m.GetLoan(ctx, id)
}

func (m *Memory) ListActiveLoans(ctx context.Context, userID uuid.UUID) ([]models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Loan
	for _, l := range m.data.loans {
		if l.UserID == userID && l.Status == models.LoanActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateLoanTerm(ctx context.Context, t *models.LoanTerm) error {
	defer m.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	m.data.terms[t.ID] = *t
	return nil
}

func (m *Memory) UpdateLoanTerm(ctx context.Context, t *models.LoanTerm) error {
	defer m.lock()()
	if _, ok := m.data.terms[t.ID]; !ok {
		return fmt.Errorf("loan term %s: %w", t.ID, ErrNotFound)
	}
	m.data.terms[t.ID] = *t
	return nil
}

func (m *Memory) GetOpenLoanTerm(ctx context.Context, loanID uuid.UUID) (*models.LoanTerm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.data.terms {
		if t.LoanID == loanID && t.EffectiveTo == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("open term for loan %s: %w", loanID, ErrNotFound)
}

func (m *Memory) ListLoanTerms(ctx context.Context, loanID uuid.UUID) ([]models.LoanTerm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.LoanTerm
	for _, t := range m.data.terms {
		if t.LoanID == loanID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveFrom.Equal(out[j].EffectiveFrom) {
			return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CreateInstallments(ctx context.Context, rows []models.LoanInstallment) error {
	defer m.lock()()
	now := time.Now().UTC()
	for i := range rows {
		for _, existing := range m.data.installments {
			if existing.LoanID == rows[i].LoanID && existing.EMINumber == rows[i].EMINumber {
				return fmt.Errorf("installment %d of loan %s: %w", rows[i].EMINumber, rows[i].LoanID, ErrDuplicate)
			}
		}
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		rows[i].CreatedAt, rows[i].UpdatedAt = now, now
		m.data.installments[rows[i].ID] = rows[i]
	}
	return nil
}

func (m *Memory) GetInstallment(ctx context.Context, id uuid.UUID) (*models.LoanInstallment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.data.installments[id]
	if !ok {
		return nil, fmt.Errorf("installment %s: %w", id, ErrNotFound)
	}
	return &i, nil
}

func (m *Memory) UpdateInstallment(ctx context.Context, i *models.LoanInstallment) error {
	defer m.lock()()
	if _, ok := m.data.installments[i.ID]; !ok {
		return fmt.Errorf("installment %s: %w", i.ID, ErrNotFound)
	}
	i.UpdatedAt = time.Now().UTC()
	m.data.installments[i.ID] = *i
	return nil
}

func (m *Memory) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]models.LoanInstallment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.LoanInstallment
	for _, i := range m.data.installments {
		if i.LoanID == loanID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].EMINumber < out[b].EMINumber })
	return out, nil
}

func (m *Memory) DeletePendingInstallmentsFrom(ctx context.Context, loanID uuid.UUID, fromNumber int) (int, error) {
	defer m.lock()()
	n := 0
	for id, i := range m.data.installments {
		if i.LoanID == loanID && i.EMINumber >= fromNumber && i.Status == models.InstallmentPending {
			delete(m.data.installments, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateBtAllocation(ctx context.Context, a *models.LoanBtAllocation) error {
	defer m.lock()()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	m.data.btAllocs[a.ID] = *a
	return nil
}

func (m *Memory) ListBtAllocations(ctx context.Context, btLoanID uuid.UUID) ([]models.LoanBtAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.LoanBtAllocation
	for _, a := range m.data.btAllocs {
		if a.BtLoanID == btLoanID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Insurance

func (m *Memory) CreateInsurance(ctx context.Context, i *models.Insurance) error {
	defer m.lock()()
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	now := time.Now().UTC()
	i.CreatedAt, i.UpdatedAt = now, now
	m.data.insurance[i.ID] = *i
	return nil
}

func (m *Memory) GetInsurance(ctx context.Context, id uuid.UUID) (*models.Insurance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.data.insurance[id]
	if !ok {
		return nil, fmt.Errorf("insurance %s: %w", id, ErrNotFound)
	}
	return &i, nil
}

func (m *Memory) ListActiveInsurance(ctx context.Context, userID uuid.UUID) ([]models.Insurance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Insurance
	for _, i := range m.data.insurance {
		if i.UserID == userID && i.Status == models.InsuranceActive {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (m *Memory) CreatePremiums(ctx context.Context, rows []models.InsurancePremium) error {
	defer m.lock()()
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		rows[i].CreatedAt, rows[i].UpdatedAt = now, now
		m.data.premiums[rows[i].ID] = rows[i]
	}
	return nil
}

func (m *Memory) GetPremium(ctx context.Context, id uuid.UUID) (*models.InsurancePremium, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data.premiums[id]
	if !ok {
		return nil, fmt.Errorf("premium %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) UpdatePremium(ctx context.Context, p *models.InsurancePremium) error {
	defer m.lock()()
	if _, ok := m.data.premiums[p.ID]; !ok {
		return fmt.Errorf("premium %s: %w", p.ID, ErrNotFound)
	}
	p.UpdatedAt = time.Now().UTC()
	m.data.premiums[p.ID] = *p
	return nil
}

func (m *Memory) ListPremiums(ctx context.Context, insuranceID uuid.UUID) ([]models.InsurancePremium, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.InsurancePremium
	for _, p := range m.data.premiums {
		if p.InsuranceID == insuranceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DueDate.Before(out[b].DueDate) })
	return out, nil
}

// Salary

func (m *Memory) SaveSalaryProfile(ctx context.Context, p *models.SalaryProfile) error {
	defer m.lock()()
	now := time.Now().UTC()
	if existing, ok := m.data.profiles[p.UserID]; ok {
		p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.data.profiles[p.UserID] = *p
	return nil
}

func (m *Memory) GetSalaryProfile(ctx context.Context, userID uuid.UUID) (*models.SalaryProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("salary profile for %s: %w", userID, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) InsertSalaryCycleIfAbsent(ctx context.Context, c *models.SalaryCycle) (bool, error) {
	defer m.lock()()
	key := cycleKey{userID: c.UserID, month: c.Month, year: c.Year}
	if id, ok := m.data.cycleKeys[key]; ok {
		*c = m.data.cycles[id]
		return false, nil
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.data.cycles[c.ID] = *c
	m.data.cycleKeys[key] = c.ID
	return true, nil
}

func (m *Memory) GetSalaryCycle(ctx context.Context, id uuid.UUID) (*models.SalaryCycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data.cycles[id]
	if !ok {
		return nil, fmt.Errorf("salary cycle %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) LockSalaryCycle(ctx context.Context, id uuid.UUID) (*models.SalaryCycle, error) {
	return m.GetSalaryCycle(ctx, id)
}

func (m *Memory) UpdateSalaryCycle(ctx context.Context, c *models.SalaryCycle) error {
	defer m.lock()()
	if _, ok := m.data.cycles[c.ID]; !ok {
		return fmt.Errorf("salary cycle %s: %w", c.ID, ErrNotFound)
	}
	c.UpdatedAt = time.Now().UTC()
	m.data.cycles[c.ID] = *c
	return nil
}
