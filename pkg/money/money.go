// Package money represents currency amounts in the smallest unit.
// All arithmetic is integer-only; division truncates.
package money

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Money is an amount of minimal currency units (cents, pence, ...).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"` // ISO 4217 lowercase
}

// New builds a Money value, normalising the currency code.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(strings.TrimSpace(currency))}
}

// Zero returns a zero amount in currency.
func Zero(currency string) Money { return New(0, currency) }

// SameCurrency reports whether both values are in the same currency.
func (m Money) SameCurrency(other Money) bool { return m.Currency == other.Currency }

// Add panics on currency mismatch; callers validate currency at the boundary.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract panics on currency mismatch.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply scales the amount by qty.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Split divides the amount across n shares with truncating division and
// returns the per-share amount and the undistributed remainder.
// The remainder is always in [0, n-1] for non-negative amounts.
func (m Money) Split(n int64) (per Money, remainder Money) {
	if n <= 0 {
		panic("money: split into non-positive share count")
	}
	return Money{Amount: m.Amount / n, Currency: m.Currency},
		Money{Amount: m.Amount % n, Currency: m.Currency}
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

// LessThan panics on currency mismatch.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// FormatMajor renders the amount assuming two decimal places.
func (m Money) FormatMajor() string {
	abs := m.Amount
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, abs/100, abs%100)
}

func (m Money) String() string {
	return m.FormatMajor() + " " + strings.ToUpper(m.Currency)
}

// MarshalJSON adds a display field for humans reading API responses.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON ignores the display field.
func (m *Money) UnmarshalJSON(b []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = New(raw.Amount, raw.Currency)
	return nil
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}
