// Package dashboard derives the presentation values of the dashboard from
// the Entity Store's pre-aggregated statistics: period-over-period change,
// trend rows and locale currency formatting.
package dashboard

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finconsole/internal/core"
)

// Direction is the arrow shown next to a percentage change.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

var hundred = decimal.NewFromInt(100)

// PercentChange returns (current-previous)/previous*100. When previous is
// zero the change is defined as zero and ok is false: no indicator is
// shown for it.
func PercentChange(current, previous decimal.Decimal) (change decimal.Decimal, ok bool) {
	if previous.IsZero() {
		return decimal.Zero, false
	}
	return current.Sub(previous).Div(previous).Mul(hundred), true
}

// Change is a displayable percentage change.
type Change struct {
	Value     decimal.Decimal
	Direction Direction
}

// NewChange wraps PercentChange for display. A zero or positive change
// points up.
func NewChange(current, previous decimal.Decimal) Change {
	v, ok := PercentChange(current, previous)
	if !ok {
		return Change{}
	}
	if v.IsNegative() {
		return Change{Value: v, Direction: DirectionDown}
	}
	return Change{Value: v, Direction: DirectionUp}
}

// Shown reports whether the change carries an indicator.
func (c Change) Shown() bool { return c.Direction != DirectionNone }

// String renders the change with an explicit sign and one decimal place,
// rounding half away from zero: "+10.0%", "-2.5%". It is empty when no
// indicator is shown.
func (c Change) String() string {
	switch c.Direction {
	case DirectionUp:
		return "+" + c.Value.Abs().StringFixed(1) + "%"
	case DirectionDown:
		return "-" + c.Value.Abs().StringFixed(1) + "%"
	default:
		return ""
	}
}

// TrendRow is one line of the trend list.
type TrendRow struct {
	Period string
	Label  string
	Amount decimal.Decimal
	Count  core.Count
	Change Change
}

// TrendRows pairs every point with the change from the point before it.
// The first point never shows a change. Input order is kept.
func TrendRows(points []core.TrendPoint) []TrendRow {
	rows := make([]TrendRow, len(points))
	for i, p := range points {
		rows[i] = TrendRow{
			Period: p.Period,
			Label:  PeriodLabel(p.Period),
			Amount: p.TotalAmount,
			Count:  p.TransactionCount,
		}
		if i > 0 {
			rows[i].Change = NewChange(p.TotalAmount, points[i-1].TotalAmount)
		}
	}
	return rows
}

// PeriodLabel turns a period key into a short display label: "2024-02"
// becomes "02/2024" and "2024-02-05" becomes "05/02/2024". Week and year
// keys are returned unchanged.
func PeriodLabel(period string) string {
	period = strings.TrimSpace(period)
	if t, err := time.Parse("2006-01-02", period); err == nil {
		return t.Format("02/01/2006")
	}
	if t, err := time.Parse("2006-01", period); err == nil {
		return t.Format("01/2006")
	}
	return period
}
