// Package core provides money parsing and handling utilities.
//
// Amounts travel as decimal strings between the console and the Entity
// Store. They are parsed into decimal.Decimal at the boundary and never
// pass through binary floating point.
package core

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount into a decimal.
//
// It accepts a dot (12.34) or a comma (12,34) as the decimal separator,
// ignores surrounding whitespace and a trailing currency sign, and rejects
// empty and zero amounts. Outflows are entered as negative amounts.
//
// Examples:
//
//	ParseAmount("1500000")  -> 1500000, nil
//	ParseAmount("12,5")     -> 12.5, nil
//	ParseAmount(" 3.25 ₫ ") -> 3.25, nil
//	ParseAmount("-250000")  -> -250000, nil
//	ParseAmount("0")        -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "₫"))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsZero() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Count is an integer the Entity Store may send either as a JSON number or
// as an integer-as-string.
type Count int64

func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		// aggregate queries sometimes come back as "12.0"
		d, derr := decimal.NewFromString(string(b))
		if derr != nil {
			return err
		}
		n = d.IntPart()
	}
	*c = Count(n)
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatInt(int64(c), 10) + `"`), nil
}

func (c Count) Int64() int64 { return int64(c) }
