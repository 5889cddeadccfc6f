package assessment

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CAPs - Clinical Assessment Protocols
// =============================================================================

type CAPPriority string

const (
	PriorityHigh   CAPPriority = "high"
	PriorityMedium CAPPriority = "medium"
	PriorityLow    CAPPriority = "low"
)

// CAP is a triggered clinical-risk protocol.
type CAP struct {
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Priority CAPPriority `json:"priority"`
}

// capRule triggers a protocol independently of every other rule.
type capRule struct {
	cap     CAP
	trigger func(items ItemSet, s Scales) bool
}

func scaleAtLeast(v *int, min int) bool { return v != nil && *v >= min }

var capRules = []capRule{
	{
		cap:     CAP{Code: "FALLS", Name: "Falls", Priority: PriorityHigh},
		trigger: func(items ItemSet, _ Scales) bool { return items.AtLeast(ItemFalls, 1) },
	},
	{
		cap:     CAP{Code: "PAIN", Name: "Pain", Priority: PriorityHigh},
		trigger: func(_ ItemSet, s Scales) bool { return scaleAtLeast(s.Pain, 2) },
	},
	{
		cap:     CAP{Code: "MOOD", Name: "Mood", Priority: PriorityMedium},
		trigger: func(_ ItemSet, s Scales) bool { return scaleAtLeast(s.DRS, 3) },
	},
	{
		cap:     CAP{Code: "COGNITIVE_LOSS", Name: "Cognitive Loss", Priority: PriorityMedium},
		trigger: func(_ ItemSet, s Scales) bool { return scaleAtLeast(s.CPS, 2) },
	},
	{
		cap:     CAP{Code: "ADL", Name: "Activities of Daily Living", Priority: PriorityMedium},
		trigger: func(_ ItemSet, s Scales) bool { return scaleAtLeast(s.ADLHierarchy, 2) },
	},
	{
		cap:     CAP{Code: "CONTINENCE", Name: "Urinary and Bowel Continence", Priority: PriorityLow},
		trigger: func(items ItemSet, _ Scales) bool { return items.AnyAtLeast(3, ItemBladder, ItemBowel) },
	},
	{
		cap:     CAP{Code: "INFORMAL_SUPPORT", Name: "Informal Support", Priority: PriorityHigh},
		trigger: func(items ItemSet, _ Scales) bool { return items.AtLeast(ItemCaregiverStress, 1) },
	},
	{
		cap:     CAP{Code: "NUTRITION", Name: "Undernutrition and Dehydration", Priority: PriorityMedium},
		trigger: func(items ItemSet, _ Scales) bool { return items.AnyAtLeast(1, ItemWeightLoss, ItemDehydrated) },
	},
}

// TriggeredCAPs evaluates every protocol rule. Rules are not mutually
// exclusive; the result keeps rule order.
func TriggeredCAPs(items ItemSet, scales Scales) []CAP {
	var triggered []CAP
	for _, r := range capRules {
		if r.trigger(items, scales) {
			triggered = append(triggered, r.cap)
		}
	}
	return triggered
}

// =============================================================================
// PSW HOURS - Recommended weekly personal support hours
// =============================================================================

// MaxPSWHoursPerWeek caps every recommendation.
var MaxPSWHoursPerWeek = decimal.NewFromInt(56)

var pswBaseHours = map[int]decimal.Decimal{
	1: decimal.RequireFromString("3.5"),
	2: decimal.NewFromInt(7),
	3: decimal.NewFromInt(14),
	4: decimal.NewFromInt(21),
	5: decimal.NewFromInt(28),
}

var (
	adlModerateMultiplier = decimal.RequireFromString("1.25")
	adlSevereMultiplier   = decimal.RequireFromString("1.5")
)

// RecommendedPSWHours returns weekly hours for a MAPLe level, scaled up for
// ADL impairment. ok is false when MAPLe is unavailable.
func RecommendedPSWHours(maple, adl *int) (hours decimal.Decimal, ok bool) {
	if maple == nil {
		return decimal.Zero, false
	}
	base, found := pswBaseHours[*maple]
	if !found {
		return decimal.Zero, false
	}

	hours = base
	switch {
	case scaleAtLeast(adl, 5):
		hours = hours.Mul(adlSevereMultiplier)
	case scaleAtLeast(adl, 3):
		hours = hours.Mul(adlModerateMultiplier)
	}

	if hours.GreaterThan(MaxPSWHoursPerWeek) {
		hours = MaxPSWHoursPerWeek
	}
	return hours, true
}

// =============================================================================
// SUMMARY - Everything derivable from items alone
// =============================================================================

// Summary bundles scales, triggered protocols and PSW hours.
type Summary struct {
	Scales   Scales          `json:"scales"`
	CAPs     []CAP           `json:"caps"`
	PSWHours decimal.Decimal `json:"psw_hours_per_week"`
}

// Summarize computes every item-derived output.
func Summarize(items ItemSet) Summary {
	scales := CalculateAllScores(items)
	hours, _ := RecommendedPSWHours(scales.MAPLe, scales.ADLHierarchy)
	caps := TriggeredCAPs(items, scales)
	if caps == nil {
		caps = []CAP{}
	}
	return Summary{Scales: scales, CAPs: caps, PSWHours: hours}
}
