package billing

import (
	"github.com/shopspring/decimal"

	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// WEEKLY COST - Unit-type arithmetic
// =============================================================================

var (
	minutesPerHour = decimal.NewFromInt(60)
	weeksPerMonth  = decimal.NewFromInt(4)
	hundred        = decimal.NewFromInt(100)
)

// WeeklyCost prices one service for a week. Hourly rates scale with the
// visit duration and divide by 60 last so half cents round exactly; monthly rates are prorated straight-line over four
// weeks; every other unit, known or not, is charged per occurrence.
func WeeklyCost(unit generic.UnitType, rate generic.Cents, durationMinutes, frequencyPerWeek int) generic.Cents {
	r := rate.Decimal()
	switch unit {
	case generic.UnitHour:
		return generic.CentsFromDecimal(
			r.Mul(decimal.NewFromInt(int64(durationMinutes))).
				Mul(decimal.NewFromInt(int64(frequencyPerWeek))).
				Div(minutesPerHour),
		)
	case generic.UnitMonth:
		return generic.CentsFromDecimal(r.Div(weeksPerMonth))
	default:
		return generic.CentsFromDecimal(r.Mul(decimal.NewFromInt(int64(frequencyPerWeek))))
	}
}

// =============================================================================
// BUDGET STATUS
// =============================================================================

type BudgetStatus string

const (
	StatusOK      BudgetStatus = "OK"
	StatusWarning BudgetStatus = "WARNING"
	StatusOverCap BudgetStatus = "OVER_CAP"
)

// WarningTolerance is the fraction over cap still reported as WARNING.
var WarningTolerance = decimal.RequireFromString("1.10")

// BudgetStatusFor bands a weekly total against a cap. A zero cap only
// accepts a zero total.
func BudgetStatusFor(total, capCents generic.Cents) BudgetStatus {
	if capCents <= 0 {
		if total <= 0 {
			return StatusOK
		}
		return StatusOverCap
	}
	if total <= capCents {
		return StatusOK
	}
	if total.Decimal().LessThanOrEqual(capCents.Decimal().Mul(WarningTolerance)) {
		return StatusWarning
	}
	return StatusOverCap
}

// UtilizationPercent returns total/cap x 100 rounded to one decimal place;
// zero when there is no cap.
func UtilizationPercent(total, capCents generic.Cents) decimal.Decimal {
	if capCents <= 0 {
		return decimal.Zero
	}
	return total.Decimal().Mul(hundred).Div(capCents.Decimal()).Round(1)
}
