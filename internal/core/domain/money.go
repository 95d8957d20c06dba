package domain

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyScale is the number of fractional digits kept for every amount.
const moneyScale = 2

// Money is a fixed-point amount. It serializes as an unquoted JSON number
// with two fractional digits and is stored as a decimal string.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{}

func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d: d.Round(moneyScale)}, nil
}

func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

func (m Money) Mul(n int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(n)))}
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) String() string {
	return m.d.StringFixed(moneyScale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		*m = Money{}
		return nil
	}
	parsed, err := NewMoney(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	parsed := Money{d: d.Round(moneyScale)}
	// stored prices and totals are never below zero
	if parsed.IsNegative() {
		return fmt.Errorf("scan money: negative amount %s", parsed)
	}
	*m = parsed
	return nil
}

// SumPrices recomputes a total from scratch over the given items.
func SumPrices(items []Item) Money {
	total := Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}
