package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// Money represents a monetary amount as integer minor units (agorot, cents)
// plus an ISO 4217 currency code. It is immutable - all operations return new
// Money values. No float64 ever enters the arithmetic path.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DefaultCurrency is used when tenant settings do not specify one.
const DefaultCurrency = "ILS"

// New creates Money from an integer amount of minor units.
func New(minorUnits int64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: minorUnits, Currency: currency}
}

// Zero returns zero Money in the given currency.
func Zero(currency string) Money {
	return New(0, currency)
}

// FromFloat creates Money from a float that must be an exact integer count of
// minor units (e.g. 250.0 agorot). Fractional minor units are rejected rather
// than rounded, so callers cannot smuggle float drift into the core.
func FromFloat(minorUnits float64, currency string) (Money, error) {
	if minorUnits != math.Trunc(minorUnits) || math.IsNaN(minorUnits) || math.IsInf(minorUnits, 0) {
		return Money{}, apperror.NewBadRequestError(fmt.Sprintf("amount %v is not a whole number of minor units", minorUnits))
	}
	return New(int64(minorUnits), currency), nil
}

// FromDecimalString parses a major-unit decimal string ("292.50") into Money.
// Used only at the request boundary; rejects anything finer than two decimal
// places instead of rounding it.
func FromDecimalString(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, apperror.NewBadRequestError(fmt.Sprintf("invalid amount %q", s))
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return Money{}, apperror.NewBadRequestError(fmt.Sprintf("amount %q has sub-minor-unit precision", s))
	}
	return New(minor.IntPart(), currency), nil
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// IsNegative returns true if the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// Add returns the sum of both amounts. Fails on mixed currencies.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperror.ErrCurrencyMismatch
	}
	return New(m.Amount+other.Amount, m.Currency), nil
}

// Subtract returns the difference of both amounts. Fails on mixed currencies.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperror.ErrCurrencyMismatch
	}
	return New(m.Amount-other.Amount, m.Currency), nil
}

// MultiplyByQuantity scales the amount by an integer quantity. Exact, no
// rounding involved.
func (m Money) MultiplyByQuantity(qty int) Money {
	return New(m.Amount*int64(qty), m.Currency)
}

// Percentage applies a rate expressed in basis points (1700 = 17%) and rounds
// half-up once, at the final step. This is the single rounding rule applied
// tenant-wide; VAT and any other percentage derivation go through here.
func (m Money) Percentage(rateBasisPoints int64) Money {
	num := m.Amount * rateBasisPoints
	const den = 10000
	q := num / den
	r := num % den
	if r < 0 {
		r = -r
	}
	if 2*r >= den {
		if num >= 0 {
			q++
		} else {
			q--
		}
	}
	return New(q, m.Currency)
}

// Decimal returns the amount in major units as an exact decimal. Display and
// provider boundaries only.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -2)
}

// String formats the amount for display, e.g. "ILS 292.50".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Decimal().StringFixed(2))
}
