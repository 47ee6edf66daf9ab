package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Scale is the number of fractional digits every monetary value carries.
// The regional currencies split into 1000 subunits (baisa, fils).
const Scale int32 = 3

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	OMR Currency = "OMR" // Omani Rial (default)
	BHD Currency = "BHD" // Bahraini Dinar
	KWD Currency = "KWD" // Kuwaiti Dinar
	AED Currency = "AED" // UAE Dirham
	USD Currency = "USD" // US Dollar
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = OMR

// ParseCurrency validates an ISO 4217 code. An empty code yields DefaultCurrency.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

// IsValid reports whether c is a known ISO 4217 code
func (c Currency) IsValid() bool {
	_, err := currency.ParseISO(string(c))
	return err == nil
}

// Round3 rounds d half away from zero to Scale digits.
func Round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Mul3 multiplies and rounds the product.
func Mul3(a, b decimal.Decimal) decimal.Decimal {
	return Round3(a.Mul(b))
}

// Div3 divides and rounds the quotient. Division by zero yields zero.
func Div3(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return Round3(a.DivRound(b, Scale+4))
}

// Sum3 adds the values and rounds the total.
func Sum3(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round3(total)
}

// Money is a value object representing monetary amounts at fixed 3-digit precision.
// It is immutable: all operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money rounded to Scale
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: Round3(amount), currency: currency}, nil
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// MustMoney creates Money in c, falling back to DefaultCurrency when c is empty.
func MustMoney(amount decimal.Decimal, c Currency) Money {
	if c == "" {
		c = DefaultCurrency
	}
	return Money{amount: Round3(amount), currency: c}
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns the rounded sum. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: Round3(m.amount.Add(other.amount)), currency: m.currency}, nil
}

// Subtract returns the rounded difference. Currencies must match.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: Round3(m.amount.Sub(other.amount)), currency: m.currency}, nil
}

// Multiply returns m * factor rounded to Scale
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: Mul3(m.amount, factor), currency: m.currency}
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(Scale), m.currency)
}

// StringFixed returns the amount with exactly Scale fractional digits
func (m Money) StringFixed() string {
	return m.amount.StringFixed(Scale)
}

type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

// MarshalJSON implements json.Marshaler. Amounts are rendered as fixed 3-digit strings.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(Scale), Currency: m.currency})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = Round3(amount)
	m.currency = v.Currency
	return nil
}

// Value implements driver.Valuer. Only the amount is stored; currency lives in its own column.
func (m Money) Value() (driver.Value, error) {
	return m.amount.StringFixed(Scale), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		if m.currency == "" {
			m.currency = DefaultCurrency
		}
		return nil
	}

	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	case float64:
		strVal = decimal.NewFromFloat(v).String()
	case int64:
		strVal = decimal.NewFromInt(v).String()
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}

	amount, err := decimal.NewFromString(strVal)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	m.amount = Round3(amount)
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
