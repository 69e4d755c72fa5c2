package valueobject

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a leniently parsed numeric value. It accepts JSON numbers, numeric
// strings and null. Anything that is not a finite number makes the amount
// invalid instead of failing the decode, so a single bad field never breaks a
// whole document.
type Amount struct {
	value decimal.Decimal
	valid bool
}

// NewAmount returns a valid amount holding d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d, valid: true}
}

// NewAmountFromFloat returns an amount from a float; NaN and infinities are invalid.
func NewAmountFromFloat(f float64) Amount {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Amount{}
	}
	return NewAmount(decimal.NewFromFloat(f))
}

// MustAmount parses s and panics when it is not a number. Intended for tests and constants.
func MustAmount(s string) Amount {
	a := ParseAmount(s)
	if !a.valid {
		panic(fmt.Sprintf("valueobject: invalid amount %q", s))
	}
	return a
}

// ParseAmount converts a numeric or numeric-like value into an Amount.
func ParseAmount(v any) Amount {
	switch x := v.(type) {
	case nil:
		return Amount{}
	case Amount:
		return x
	case *Amount:
		if x == nil {
			return Amount{}
		}
		return *x
	case decimal.Decimal:
		return NewAmount(x)
	case *decimal.Decimal:
		if x == nil {
			return Amount{}
		}
		return NewAmount(*x)
	case float64:
		return NewAmountFromFloat(x)
	case float32:
		return NewAmountFromFloat(float64(x))
	case int:
		return NewAmount(decimal.NewFromInt(int64(x)))
	case int32:
		return NewAmount(decimal.NewFromInt(int64(x)))
	case int64:
		return NewAmount(decimal.NewFromInt(x))
	case uint:
		return NewAmount(decimal.NewFromUint64(uint64(x)))
	case uint64:
		return NewAmount(decimal.NewFromUint64(x))
	case json.Number:
		return parseAmountString(x.String())
	case string:
		return parseAmountString(x)
	case *string:
		if x == nil {
			return Amount{}
		}
		return parseAmountString(*x)
	default:
		return Amount{}
	}
}

func parseAmountString(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return NewAmount(d)
}

// Valid reports whether the amount holds a finite number.
func (a Amount) Valid() bool {
	return a.valid
}

// Decimal returns the value, or zero when the amount is invalid.
func (a Amount) Decimal() decimal.Decimal {
	if !a.valid {
		return decimal.Zero
	}
	return a.value
}

// NonNegative returns the value clamped to zero for invalid or negative amounts.
func (a Amount) NonNegative() decimal.Decimal {
	d := a.Decimal()
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Or returns a when it is valid and fallback otherwise.
func (a Amount) Or(fallback decimal.Decimal) decimal.Decimal {
	if !a.valid {
		return fallback
	}
	return a.value
}

// String returns the decimal representation, or an empty string when invalid.
func (a Amount) String() string {
	if !a.valid {
		return ""
	}
	return a.value.String()
}

// MarshalJSON writes the amount as a JSON number, or null when invalid.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return []byte(a.value.String()), nil
}

// UnmarshalJSON never fails on malformed numbers; they decode to an invalid amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*a = Amount{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return nil
		}
		*a = parseAmountString(s)
		return nil
	}
	*a = parseAmountString(string(data))
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	if !a.valid {
		return nil, nil
	}
	return a.value.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		*a = parseAmountString(string(v))
	default:
		*a = ParseAmount(v)
	}
	return nil
}
