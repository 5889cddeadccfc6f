package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/homecare-engine/generic"
)

func TestWeeklyCost_UnitSemantics(t *testing.T) {
	tests := []struct {
		name      string
		unit      generic.UnitType
		rate      generic.Cents
		duration  int
		frequency int
		want      generic.Cents
	}{
		{"hourly one hour daily", generic.UnitHour, 3500, 60, 7, 24500},
		{"hourly 45 minutes", generic.UnitHour, 3500, 45, 3, 7875},
		{"hourly rounds half away from zero", generic.UnitHour, 3333, 50, 1, 2778},
		{"hourly weekly half cent rounds up", generic.UnitHour, 3505, 50, 3, 8763},
		{"visit ignores duration", generic.UnitVisit, 9500, 90, 3, 28500},
		{"trip", generic.UnitTrip, 4500, 0, 2, 9000},
		{"night", generic.UnitNight, 12000, 0, 1, 12000},
		{"month prorated over four weeks", generic.UnitMonth, 15000, 0, 1, 3750},
		{"month rounds", generic.UnitMonth, 10002, 0, 1, 2501},
		{"unknown unit priced per occurrence", generic.UnitType("session"), 1000, 30, 2, 2000},
		{"zero frequency", generic.UnitHour, 3500, 60, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeeklyCost(tt.unit, tt.rate, tt.duration, tt.frequency))
		})
	}
}

func TestBudgetStatusFor_Boundaries(t *testing.T) {
	const capCents = generic.Cents(500000)

	assert.Equal(t, StatusOK, BudgetStatusFor(499999, capCents))
	assert.Equal(t, StatusOK, BudgetStatusFor(500000, capCents))
	assert.Equal(t, StatusWarning, BudgetStatusFor(500001, capCents))
	assert.Equal(t, StatusWarning, BudgetStatusFor(550000, capCents), "exactly 110% is a warning")
	assert.Equal(t, StatusOverCap, BudgetStatusFor(550001, capCents))
}

func TestBudgetStatusFor_ZeroCap(t *testing.T) {
	assert.Equal(t, StatusOK, BudgetStatusFor(0, 0))
	assert.Equal(t, StatusOverCap, BudgetStatusFor(1, 0))
}

func TestUtilizationPercent(t *testing.T) {
	assert.Equal(t, "110", UtilizationPercent(550000, 500000).String())
	assert.Equal(t, "66.7", UtilizationPercent(2, 3).String())
	assert.Equal(t, "4.9", UtilizationPercent(24500, 500000).String())
	assert.True(t, UtilizationPercent(100, 0).IsZero())
}

func TestPlanRateChange(t *testing.T) {
	jan2023 := generic.MustParseDate("2023-01-01")
	jan2024 := generic.MustParseDate("2024-01-01")
	dec2023 := generic.MustParseDate("2023-12-31")
	jun2023 := generic.MustParseDate("2023-06-30")

	open := RateRecord{ID: "old", ServiceType: "psw", RateCents: 3500, EffectiveFrom: jan2023}
	next := RateRecord{ID: "new", ServiceType: "psw", RateCents: 3800, EffectiveFrom: jan2024}

	t.Run("closes the open record the day before", func(t *testing.T) {
		change, err := PlanRateChange([]RateRecord{open}, next)
		assert.NoError(t, err)
		assert.Equal(t, []RateClosure{{ID: "old", EffectiveTo: dec2023}}, change.Close)
		assert.Equal(t, "new", change.Insert.ID)
	})

	t.Run("already closed record is left alone", func(t *testing.T) {
		closed := open
		closed.EffectiveTo = &jun2023
		change, err := PlanRateChange([]RateRecord{closed}, next)
		assert.NoError(t, err)
		assert.Empty(t, change.Close)
	})

	t.Run("record starting on the same day overlaps", func(t *testing.T) {
		same := open
		same.EffectiveFrom = jan2024
		_, err := PlanRateChange([]RateRecord{same}, next)
		assert.ErrorIs(t, err, generic.ErrOverlappingRate)

		var overlap *OverlappingRateError
		assert.ErrorAs(t, err, &overlap)
		assert.Equal(t, "old", overlap.ExistingID)
	})

	t.Run("bounded new record before a later one is fine", func(t *testing.T) {
		later := RateRecord{ID: "later", ServiceType: "psw", RateCents: 4000, EffectiveFrom: jan2024}
		early := RateRecord{ID: "early", ServiceType: "psw", RateCents: 3000, EffectiveFrom: jan2023, EffectiveTo: &jun2023}
		change, err := PlanRateChange([]RateRecord{later}, early)
		assert.NoError(t, err)
		assert.Empty(t, change.Close)
	})

	t.Run("invalid window", func(t *testing.T) {
		bad := next
		bad.EffectiveTo = &dec2023
		_, err := PlanRateChange(nil, bad)
		assert.ErrorIs(t, err, generic.ErrInvalidWindow)
	})

	t.Run("negative rate", func(t *testing.T) {
		bad := next
		bad.RateCents = -1
		_, err := PlanRateChange(nil, bad)
		assert.ErrorIs(t, err, generic.ErrInvalidInput)
	})
}
