// Package amortization builds reducing-balance EMI schedules.
//
// Inputs are assumed valid: non-positive tenure, negative rates and EMIs that do not
// cover the first period's interest are rejected by the caller before reaching here.
package amortization

import (
	"fmt"
	"math"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/schedule"
	"github.com/shopspring/decimal"
)

// Tolerance is the largest rounding residue accepted when closing a schedule.
var Tolerance = decimal.New(1, -models.MoneyScale)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Params describes the schedule to build.
type Params struct {
	Principal    decimal.Decimal // outstanding at the start of the schedule
	AnnualRate   decimal.Decimal // percent per annum
	Tenure       int             // number of installments
	EMI          decimal.Decimal // zero means derive with the annuity formula
	FirstDueDate time.Time
	EMIDay       int // zero means FirstDueDate's day
	StartNumber  int // EMI number of the first row, zero means 1
}

// Installment is one computed row.
type Installment struct {
	Number      int             `json:"number"`
	DueDate     time.Time       `json:"due_date"`
	EMI         decimal.Decimal `json:"emi"`
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// InvariantError signals a schedule that does not close to zero. It means the formula
// is broken and must never be swallowed.
type InvariantError struct {
	Principal        decimal.Decimal
	PrincipalSum     decimal.Decimal
	FinalOutstanding decimal.Decimal
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("amortization invariant violated: principal %s, repaid %s, final outstanding %s",
		e.Principal.StringFixed(2), e.PrincipalSum.StringFixed(2), e.FinalOutstanding.StringFixed(2))
}

// MonthlyRate converts an annual percentage into a monthly fraction.
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(twelve).Div(hundred)
}

// FirstPeriodInterest is the interest accrued on principal over one month.
func FirstPeriodInterest(principal, annualRate decimal.Decimal) decimal.Decimal {
	return models.RoundMoney(principal.Mul(MonthlyRate(annualRate)))
}

// EMI computes the annuity installment for principal over tenure months.
func EMI(principal, annualRate decimal.Decimal, tenure int) decimal.Decimal {
	if tenure <= 0 {
		return decimal.Zero
	}
	if annualRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(tenure))).RoundUp(models.MoneyScale)
	}
	r := MonthlyRate(annualRate).InexactFloat64()
	factor := math.Pow(1+r, float64(tenure))
	emi := principal.InexactFloat64() * r * factor / (factor - 1)
	return decimal.NewFromFloat(emi).Round(models.MoneyScale)
}

// RemainingTenure returns how many installments of emi repay outstanding.
// It returns 0 when emi cannot cover the monthly interest.
func RemainingTenure(outstanding, annualRate, emi decimal.Decimal) int {
	if !outstanding.IsPositive() {
		return 0
	}
	if !emi.IsPositive() {
		return 0
	}
	if annualRate.IsZero() {
		return int(outstanding.Div(emi).Ceil().IntPart())
	}
	r := MonthlyRate(annualRate).InexactFloat64()
	x := 1 - outstanding.InexactFloat64()*r/emi.InexactFloat64()
	if x <= 0 {
		return 0
	}
	n := -math.Log(x) / math.Log(1+r)
	// float noise can push an exact tenure like 12 to 12.0000000001
	return int(math.Ceil(n - 1e-9))
}

// BuildSchedule produces the reducing-balance schedule for p. The last row's principal
// absorbs any rounding residue; a row whose principal would overshoot the outstanding
// closes the schedule early.
func BuildSchedule(p Params) ([]Installment, error) {
	if p.Tenure <= 0 || !p.Principal.IsPositive() {
		return nil, nil
	}
	emi := p.EMI
	if emi.IsZero() {
		emi = EMI(p.Principal, p.AnnualRate, p.Tenure)
	}
	emiDay := p.EMIDay
	if emiDay == 0 {
		emiDay = p.FirstDueDate.Day()
	}
	number := p.StartNumber
	if number == 0 {
		number = 1
	}

	rate := MonthlyRate(p.AnnualRate)
	outstanding := p.Principal
	firstMonth, firstYear := int(p.FirstDueDate.Month()), p.FirstDueDate.Year()
	rows := make([]Installment, 0, p.Tenure)

	for i := 0; i < p.Tenure; i++ {
		interest := models.RoundMoney(outstanding.Mul(rate))
		principal := emi.Sub(interest)
		amount := emi

		last := i == p.Tenure-1 || principal.GreaterThanOrEqual(outstanding)
		if last {
			principal = outstanding
			amount = principal.Add(interest)
		}
		outstanding = outstanding.Sub(principal)

		m, y := schedule.AddMonths(firstMonth, firstYear, i)
		rows = append(rows, Installment{
			Number:      number + i,
			DueDate:     schedule.ClampedDate(y, time.Month(m), emiDay),
			EMI:         amount,
			Principal:   principal,
			Interest:    interest,
			Outstanding: outstanding,
		})
		if last {
			break
		}
	}

	if err := Verify(rows, p.Principal); err != nil {
		return rows, err
	}
	return rows, nil
}

// RebuildFuture regenerates the unpaid tail of a schedule after a term change.
// p.Principal is the outstanding at the change and p.StartNumber the first row to
// rebuild. A zero p.Tenure is derived from p.EMI.
func RebuildFuture(p Params) ([]Installment, error) {
	if p.Tenure == 0 && p.EMI.IsPositive() {
		p.Tenure = RemainingTenure(p.Principal, p.AnnualRate, p.EMI)
	}
	return BuildSchedule(p)
}

// Verify checks that rows repay principal and end at zero outstanding.
func Verify(rows []Installment, principal decimal.Decimal) error {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Principal)
	}
	final := principal
	if len(rows) > 0 {
		final = rows[len(rows)-1].Outstanding
	}
	if final.Abs().GreaterThan(Tolerance) || sum.Sub(principal).Abs().GreaterThan(Tolerance) {
		return &InvariantError{Principal: principal, PrincipalSum: sum, FinalOutstanding: final}
	}
	return nil
}

// TotalInterest sums the interest column.
func TotalInterest(rows []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Interest)
	}
	return total
}
