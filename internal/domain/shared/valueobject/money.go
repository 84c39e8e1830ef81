package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency is an ISO 4217 currency code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CNY Currency = "CNY"
)

// DefaultCurrency is used when no currency is configured
const DefaultCurrency = USD

var hundred = decimal.NewFromInt(100)

// ParseCurrency normalizes and validates an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", errors.New("currency cannot be empty")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency code %q", code)
	}
	return Currency(unit.String()), nil
}

// IsValid reports whether the code is a recognised ISO 4217 currency
func (c Currency) IsValid() bool {
	_, err := ParseCurrency(string(c))
	return err == nil
}

// MinorUnits returns the number of decimal places of the currency's minor
// unit (2 for USD, 0 for JPY). Unknown codes fall back to 2.
func (c Currency) MinorUnits() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

func (c Currency) String() string {
	return string(c)
}

// Money is an immutable decimal amount paired with a currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money after validating the currency code
func NewMoney(amount decimal.Decimal, cur Currency) (Money, error) {
	parsed, err := ParseCurrency(string(cur))
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: parsed}, nil
}

// NewMoneyFromString parses a decimal string amount
func NewMoneyFromString(amount string, cur Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewMoney(d, cur)
}

// MustMoney is NewMoneyFromString for literals in tests and fixtures
func MustMoney(amount string, cur Currency) Money {
	m, err := NewMoneyFromString(amount, cur)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency
func Zero(cur Currency) Money {
	return Money{amount: decimal.Zero, currency: cur}
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() Currency {
	return m.currency
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns the sum; currencies must match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns the difference; currencies must match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Round rounds half away from zero to the given places
func (m Money) Round(places int32) Money {
	return Money{amount: NormalizeZero(m.amount.Round(places)), currency: m.currency}
}

// RoundToMinorUnit rounds to the currency's minor unit
func (m Money) RoundToMinorUnit() Money {
	return m.Round(m.currency.MinorUnits())
}

// Percentage returns amount*percent/100 without rounding
func (m Money) Percentage(percent decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(percent).Div(hundred), currency: m.currency}
}

// Equals compares amount and currency
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// GreaterThan compares amounts; currencies must match
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.amount.GreaterThan(other.amount), nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.MinorUnits()), m.currency)
}

// AllocateByPercent splits m into one share per percentage, each rounded to
// the currency minor unit. The residual left by rounding is added to the
// share with the largest percentage (first one on ties) so the shares sum to
// m exactly.
// Percentages must be non-negative.
func (m Money) AllocateByPercent(percents []decimal.Decimal) ([]Money, error) {
	if len(percents) == 0 {
		return nil, errors.New("at least one percentage is required")
	}
	places := m.currency.MinorUnits()
	shares := make([]Money, len(percents))
	sum := decimal.Zero
	largest := -1
	for i, p := range percents {
		if p.IsNegative() {
			return nil, fmt.Errorf("percentage %s is negative", p.String())
		}
		share := m.Percentage(p).Round(places)
		shares[i] = share
		sum = sum.Add(share.amount)
		if p.IsPositive() && (largest < 0 || p.GreaterThan(percents[largest])) {
			largest = i
		}
	}

	residual := m.amount.Round(places).Sub(sum)
	if !residual.IsZero() {
		if largest < 0 {
			return nil, errors.New("cannot allocate residual without a positive share")
		}
		shares[largest] = Money{amount: shares[largest].amount.Add(residual), currency: m.currency}
	}
	return shares, nil
}

// NormalizeZero maps any zero value (including a negative zero produced by
// subtraction) to decimal.Zero so it serialises as "0".
func NormalizeZero(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return d
}

// MarshalJSON renders the amount as a string next to its currency
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(m.currency.MinorUnits()),
		Currency: m.currency,
	})
}

// UnmarshalJSON parses {"amount":"..","currency":".."} and validates the currency
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
