// Package money provides fixed-point rupee arithmetic for balances, premiums
// and P&L. All amounts carry exactly two fractional digits (paise); division
// uses banker's rounding so repeated settlements do not drift.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// scale is the number of fractional digits carried by every Money value.
const scale = 2

// Money is an immutable fixed-point rupee amount.
// The zero value is ₹0.00 and is ready to use.
type Money struct {
	d decimal.Decimal
}

// Zero is the ₹0.00 amount.
var Zero = Money{}

// FromRupees builds a Money from a whole/fractional rupee float.
// Intended for config values and test fixtures, not for accumulation.
func FromRupees(v float64) Money {
	return Money{decimal.NewFromFloat(v).Round(scale)}
}

// FromPaise builds a Money from an integer paise amount (wire ticks carry
// prices as int64 paise).
func FromPaise(p int64) Money {
	return Money{decimal.New(p, -scale)}
}

// FromInt builds a Money from a whole rupee count.
func FromInt(v int64) Money {
	return Money{decimal.New(v, 0)}
}

// Parse parses a decimal string like "1460.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Money{d.Round(scale)}, nil
}

// MustParse parses s and panics on error. For constants in tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{m.d.Add(o.d)} }

// Sub returns m − o.
func (m Money) Sub(o Money) Money { return Money{m.d.Sub(o.d)} }

// Mul returns m × o rounded to scale.
func (m Money) Mul(o Money) Money { return Money{m.d.Mul(o.d).Round(scale)} }

// MulInt returns m × n. Exact: no rounding needed for integer multipliers.
func (m Money) MulInt(n int64) Money { return Money{m.d.Mul(decimal.New(n, 0))} }

// Div returns m ÷ o using banker's rounding at scale.
// Division by zero returns Zero.
func (m Money) Div(o Money) Money {
	if o.d.IsZero() {
		return Zero
	}
	return Money{m.d.DivRound(o.d, scale+2).RoundBank(scale)}
}

// DivInt returns m ÷ n using banker's rounding at scale.
func (m Money) DivInt(n int64) Money {
	if n == 0 {
		return Zero
	}
	return Money{m.d.DivRound(decimal.New(n, 0), scale+2).RoundBank(scale)}
}

// Neg returns −m.
func (m Money) Neg() Money { return Money{m.d.Neg()} }

// Min returns the smaller of m and o.
func Min(m, o Money) Money {
	if m.d.LessThan(o.d) {
		return m
	}
	return o
}

// Max returns the larger of m and o.
func Max(m, o Money) Money {
	if m.d.GreaterThan(o.d) {
		return m
	}
	return o
}

// LessThan reports m < o.
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

// LessOrEqual reports m ≤ o.
func (m Money) LessOrEqual(o Money) bool { return m.d.LessThanOrEqual(o.d) }

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

// Equal reports fixed-point equality of m and o.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// IsZero reports m == ₹0.00.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsNegative reports m < ₹0.00.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Paise returns the amount as integer paise.
func (m Money) Paise() int64 {
	return m.d.Shift(scale).IntPart()
}

// Float64 downcasts to float64 for indicator math and display ratios only.
// Never feed the result back into balance arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String returns the plain decimal form, e.g. "1460.00". This is the
// persistence format for Redis hashes.
func (m Money) String() string {
	return m.d.StringFixed(scale)
}

// Format renders the amount with the rupee sign and Indian digit grouping,
// e.g. "₹1,00,000.00" or "-₹20.00".
func (m Money) Format() string {
	s := m.d.StringFixed(scale)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	// Indian grouping: last three digits, then groups of two.
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteRune('₹')
	if n := len(whole); n > 3 {
		head := whole[:n-3]
		first := len(head) % 2
		if first == 0 {
			first = 2
		}
		b.WriteString(head[:first])
		for i := first; i < len(head); i += 2 {
			b.WriteByte(',')
			b.WriteString(head[i : i+2])
		}
		b.WriteByte(',')
		b.WriteString(whole[n-3:])
	} else {
		b.WriteString(whole)
	}
	b.WriteString(frac)
	return b.String()
}

// MarshalJSON encodes as a JSON string to keep fixed-point fidelity.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both "1460.00" (string) and 1460 (number) forms.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	p, err := Parse(s)
	if err != nil {
		return err
	}
	*m = p
	return nil
}
