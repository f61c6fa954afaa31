package dashboard

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"finconsole/internal/core"
)

// Formatter renders amounts in a currency using the separators of a
// locale, e.g. VND under vi-VN gives "1.500.000 ₫".
type Formatter struct {
	currency *money.Currency
	money    *money.Formatter
	printer  *message.Printer
}

// NewFormatter builds a formatter for an ISO 4217 currency code and a BCP
// 47 locale.
func NewFormatter(currencyCode, locale string) (*Formatter, error) {
	cur := money.GetCurrency(currencyCode)
	if cur == nil {
		return nil, fmt.Errorf("unknown currency %q", currencyCode)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	printer := message.NewPrinter(tag)

	thousand, dec := cur.Thousand, cur.Decimal
	if sep := groupSeparator(printer); sep != "" {
		thousand = sep
		dec = "."
		if sep == "." {
			dec = ","
		}
	}

	return &Formatter{
		currency: cur,
		money:    money.NewFormatter(cur.Fraction, dec, thousand, cur.Grapheme, cur.Template),
		printer:  printer,
	}, nil
}

// MustFormatter is NewFormatter for hard-coded arguments.
func MustFormatter(currencyCode, locale string) *Formatter {
	f, err := NewFormatter(currencyCode, locale)
	if err != nil {
		panic(err)
	}
	return f
}

// groupSeparator asks the locale how it writes one thousand.
func groupSeparator(p *message.Printer) string {
	s := p.Sprintf("%d", 1000)
	if len(s) <= 4 || !strings.HasPrefix(s, "1") || !strings.HasSuffix(s, "000") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, "1"), "000")
}

// Currency formats d in minor units of the currency, rounding half away
// from zero to the currency's fraction digits.
func (f *Formatter) Currency(d decimal.Decimal) string {
	minor := d.Shift(int32(f.currency.Fraction)).Round(0).BigInt()
	if minor.IsInt64() {
		return f.money.Format(minor.Int64())
	}
	return f.formatWide(minor)
}

// formatWide lays out minor units that do not fit in an int64 the same way
// the money formatter does.
func (f *Formatter) formatWide(minor *big.Int) string {
	mf := f.money
	digits := new(big.Int).Abs(minor).String()
	if len(digits) <= mf.Fraction {
		digits = strings.Repeat("0", mf.Fraction-len(digits)+1) + digits
	}
	if mf.Thousand != "" {
		for i := len(digits) - mf.Fraction - 3; i > 0; i -= 3 {
			digits = digits[:i] + mf.Thousand + digits[i:]
		}
	}
	if mf.Fraction > 0 {
		digits = digits[:len(digits)-mf.Fraction] + mf.Decimal + digits[len(digits)-mf.Fraction:]
	}
	out := strings.Replace(mf.Template, "1", digits, 1)
	out = strings.Replace(out, "$", mf.Grapheme, 1)
	if minor.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// Count formats an integer count with the locale's grouping.
func (f *Formatter) Count(c core.Count) string {
	return f.printer.Sprintf("%d", c.Int64())
}

// Code is the ISO currency code.
func (f *Formatter) Code() string { return f.currency.Code }
