package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places every stored amount carries.
const MoneyScale = 2

// RoundMoney rounds an amount to MoneyScale places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// MoneyPtr returns a pointer to a rounded copy of d.
func MoneyPtr(d decimal.Decimal) *decimal.Decimal {
	r := RoundMoney(d)
	return &r
}

// ValueOrZero dereferences an optional amount.
func ValueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
