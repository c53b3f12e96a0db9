package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in the shop currency. All arithmetic on
// order totals goes through this type; binary floats never touch money.
type Money struct {
	amount decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney builds a Money from integer dollars and cents.
func NewMoney(dollars int64, cents int64) Money {
	d := decimal.NewFromInt(dollars)
	c := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
	return Money{amount: d.Add(c)}
}

// MoneyFromDecimal wraps an existing decimal value.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{amount: d}
}

// ParseMoney parses a decimal string such as "12.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("domain: parse money %q: %w", s, err)
	}
	return Money{amount: d}, nil
}

// MustMoney parses a decimal string and panics on failure. For constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.amount }

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// MulInt returns m multiplied by an integer quantity.
func (m Money) MulInt(qty int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(qty)))}
}

// RoundCents rounds to two decimal places, half up. Applied at every
// aggregation boundary: line totals, subtotal, grand total.
func (m Money) RoundCents() Money {
	return Money{amount: m.amount.Round(2)}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Cmp compares m with other: -1 if less, 0 if equal, 1 if greater.
func (m Money) Cmp(other Money) int { return m.amount.Cmp(other.amount) }

// GreaterThanOrEqual reports m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool { return m.amount.Cmp(other.amount) >= 0 }

// String renders the amount with exactly two decimal places.
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// Display renders the amount with a leading dollar sign, e.g. "$4.00".
func (m Money) Display() string {
	return "$" + m.String()
}

// Equal reports exact numeric equality.
func (m Money) Equal(other Money) bool { return m.amount.Equal(other.amount) }

// MarshalJSON renders the amount as a JSON string with two decimal places so
// clients never see float artefacts.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
