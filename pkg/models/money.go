package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Money is a fixed-point amount with two fractional digits, held in cents.
// It matches a numeric(10,2) column: at most 8 integer digits.
type Money int64

// MaxMoney is the largest magnitude a numeric(10,2) column can hold.
const MaxMoney Money = 99999999_99

var reMoney = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

var (
	ErrMoneyFormat    = errors.New("a valid number is required")
	ErrMoneyPlaces    = errors.New("ensure that there are no more than 2 decimal places")
	ErrMoneyMaxDigits = errors.New("ensure that there are no more than 10 digits in total")
)

// MoneyMessage renders a money parse error as a field message.
func MoneyMessage(err error) string {
	switch {
	case errors.Is(err, ErrMoneyPlaces):
		return "Ensure that there are no more than 2 decimal places"
	case errors.Is(err, ErrMoneyMaxDigits):
		return "Ensure that there are no more than 10 digits in total"
	default:
		return "A valid number is required"
	}
}

// ParseMoney parses a decimal string such as "500", "200.5" or "-12.34".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if !reMoney.MatchString(s) {
		return 0, ErrMoneyFormat
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	if len(frac) > 2 {
		return 0, ErrMoneyPlaces
	}
	whole = strings.TrimLeft(whole, "0")
	if len(whole) > 8 {
		return 0, ErrMoneyMaxDigits
	}
	for len(frac) < 2 {
		frac += "0"
	}

	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, ErrMoneyFormat
	}
	if neg {
		cents = -cents
	}
	return Money(cents), nil
}

// MustMoney is ParseMoney for literals; it panics on malformed input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("models: bad money literal %q: %v", s, err))
	}
	return m
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return m - o }

// String renders the amount with exactly two decimals, e.g. "300.00".
func (m Money) String() string {
	sign := ""
	c := int64(m)
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// MarshalJSON renders money as a JSON string so no precision is lost.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON number (500, 200.5) or a numeric string ("500.00").
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return errors.New("amount may not be null")
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Scan implements sql.Scanner for numeric columns.
func (m *Money) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = 0
		return nil
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	case int64:
		*m = Money(v * 100)
		return nil
	case float64:
		return m.scanString(strconv.FormatFloat(v, 'f', 2, 64))
	default:
		return fmt.Errorf("models: cannot scan %T into Money", value)
	}
}

func (m *Money) scanString(s string) error {
	v, err := ParseMoney(s)
	if err != nil {
		return fmt.Errorf("models: scan money %q: %w", s, err)
	}
	*m = v
	return nil
}

// Value implements driver.Valuer; numeric accepts the decimal text form.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
