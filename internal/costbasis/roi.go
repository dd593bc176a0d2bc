package costbasis

import (
	"math"

	"github.com/shopspring/decimal"

	"blend-portfolio/internal/calendar"
)

// ROI returns pnl / deposited × 100, or nil when nothing was deposited.
func ROI(pnl, deposited decimal.Decimal) *float64 {
	if !deposited.IsPositive() {
		return nil
	}
	v := pnl.Div(deposited).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return &v
}

// Annualize compounds roi (percent) over daysActive to a yearly rate.
// Returns nil when roi is nil, daysActive is not positive, or roi <= -100.
func Annualize(roi *float64, daysActive int) *float64 {
	if roi == nil || daysActive <= 0 || *roi <= -100 {
		return nil
	}
	v := (math.Pow(1+*roi/100, 365/float64(daysActive)) - 1) * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// DaysActive counts whole days from first to asOf, 0 if first is unset or later.
func DaysActive(first, asOf calendar.Date) int {
	if first.IsZero() || asOf.Before(first) {
		return 0
	}
	return first.DaysUntil(asOf)
}
