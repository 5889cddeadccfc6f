package assessment

import (
	"math"

	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// SCALES - Standardized output values
// =============================================================================

// Scales holds every output scale. A nil field means insufficient data.
type Scales struct {
	CPS            *int `json:"cps"`
	ADLHierarchy   *int `json:"adl_hierarchy"`
	IADLDifficulty *int `json:"iadl_difficulty"`
	IADLCapacity   *int `json:"iadl_capacity"`
	CHESS          *int `json:"chess"`
	DRS            *int `json:"drs"`
	Pain           *int `json:"pain"`
	MAPLe          *int `json:"maple"`
}

// CalculateAllScores runs every scale algorithm on items.
func CalculateAllScores(items ItemSet) Scales {
	adl := ADLHierarchy(items)
	cps := CPS(items)
	difficulty := IADLDifficulty(items)

	return Scales{
		CPS:            cps,
		ADLHierarchy:   &adl,
		IADLDifficulty: difficulty,
		IADLCapacity:   IADLCapacity(difficulty),
		CHESS:          generic.IntPtr(CHESS(items)),
		DRS:            DRS(items),
		Pain:           Pain(items),
		MAPLe:          MAPLe(items, &adl, cps),
	}
}

// =============================================================================
// CPS - Cognitive Performance Scale (0-6)
// =============================================================================

// eatingDependentCodes count as eating dependence for CPS: total
// dependence and "did not occur".
var eatingDependentCodes = map[int]bool{6: true, DidNotOccur: true}

// CPS returns the Cognitive Performance Scale, or nil without C1.
func CPS(items ItemSet) *int {
	decision, ok := items.Get(ItemDecisionMaking)
	if !ok {
		return nil
	}
	if decision >= 5 {
		return generic.IntPtr(6)
	}

	eating, hasEating := items.Get(ItemEating)
	eatingDependent := hasEating && eatingDependentCodes[eating]

	if decision == 4 {
		if eatingDependent {
			return generic.IntPtr(5)
		}
		return generic.IntPtr(4)
	}

	memoryImpaired := items.AtLeast(ItemShortTermMemory, 1)
	communication, _ := items.Clamped(ItemSelfUnderstood, 0, 4)

	impairment := 0
	if decision >= 1 {
		impairment++
	}
	if memoryImpaired {
		impairment++
	}
	if communication >= 1 {
		impairment++
	}

	severe := 0
	if decision == 3 {
		severe++
	}
	if communication >= 3 {
		severe++
	}

	switch {
	case severe == 2:
		return generic.IntPtr(4)
	case severe == 1 && impairment >= 2:
		return generic.IntPtr(3)
	case impairment >= 2:
		return generic.IntPtr(2)
	case impairment == 1:
		return generic.IntPtr(1)
	default:
		return generic.IntPtr(0)
	}
}

// =============================================================================
// ADL HIERARCHY (0-6)
// =============================================================================

// normalizeADL maps "did not occur" and absent to 0, otherwise clamps to [0,6].
func normalizeADL(items ItemSet, key string) int {
	v, ok := items.Get(key)
	if !ok || v == DidNotOccur {
		return 0
	}
	return generic.Clamp(v, 0, 6)
}

// ADLHierarchy returns the ADL Self-Performance Hierarchy scale.
func ADLHierarchy(items ItemSet) int {
	hygiene := normalizeADL(items, ItemHygiene)
	toilet := normalizeADL(items, ItemToiletUse)
	locomotion := normalizeADL(items, ItemLocomotion)
	eating := normalizeADL(items, ItemEating)

	highest := max(hygiene, toilet, locomotion, eating)

	switch {
	case highest <= 1:
		return 0
	case highest <= 2:
		return 1
	case highest <= 3:
		return 2
	case highest <= 4:
		return 3
	case locomotion >= 5 || eating >= 5:
		if eating >= 6 {
			return 6
		}
		return 5
	default:
		return 4
	}
}

// =============================================================================
// IADL (0-6)
// =============================================================================

// IADLDifficulty averages the present IADL items (excluding "did not
// occur") and buckets the mean into seven 1.0-wide bands.
func IADLDifficulty(items ItemSet) *int {
	sum, n := 0, 0
	for _, key := range IADLItems {
		v, ok := items.Get(key)
		if !ok || v == DidNotOccur {
			continue
		}
		sum += generic.Clamp(v, 0, 6)
		n++
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	band := generic.Clamp(int(math.Floor(avg)), 0, 6)
	return &band
}

// IADLCapacity is the inverse of difficulty: 6 - difficulty.
func IADLCapacity(difficulty *int) *int {
	if difficulty == nil {
		return nil
	}
	return generic.IntPtr(6 - *difficulty)
}

// =============================================================================
// CHESS - Changes in Health, End-stage disease, Signs and Symptoms (0-5)
// =============================================================================

func CHESS(items ItemSet) int {
	count := 0
	for _, key := range CHESSItems {
		if items.AtLeast(key, 1) {
			count++
		}
	}
	return min(count, 5)
}

// =============================================================================
// DRS - Depression Rating Scale (0-14)
// =============================================================================

func DRS(items ItemSet) *int {
	sum, present := 0, 0
	for _, key := range MoodItems {
		v, ok := items.Clamped(key, 0, 2)
		if !ok {
			continue
		}
		sum += v
		present++
	}
	if present == 0 {
		return nil
	}
	return generic.IntPtr(min(sum, 14))
}

// =============================================================================
// PAIN (0-4)
// =============================================================================

// Pain frequency codes
const (
	PainNone       = 0
	PainNotIn3Days = 1
	PainLessDaily  = 2
	PainDaily      = 3
)

func Pain(items ItemSet) *int {
	frequency, ok := items.Get(ItemPainFrequency)
	if !ok {
		return nil
	}
	if frequency <= PainNotIn3Days {
		return generic.IntPtr(0)
	}

	intensity, _ := items.Clamped(ItemPainIntensity, 0, 4)

	if frequency == PainLessDaily {
		// less than daily caps at 2
		if intensity <= 1 {
			return generic.IntPtr(1)
		}
		return generic.IntPtr(2)
	}

	switch {
	case intensity >= 4:
		return generic.IntPtr(4)
	case intensity == 3:
		return generic.IntPtr(3)
	default:
		return generic.IntPtr(2)
	}
}

// =============================================================================
// MAPLe - Method for Assigning Priority Levels (1-5)
// =============================================================================

// MAPLe derives the service priority level. adl and cps are the computed
// scales; a nil value counts as 0 unless both are nil.
func MAPLe(items ItemSet, adl, cps *int) *int {
	if adl == nil && cps == nil {
		return nil
	}
	a, c := 0, 0
	if adl != nil {
		a = *adl
	}
	if cps != nil {
		c = *cps
	}

	level := 1

	// ADL ladder
	switch {
	case a >= 2:
		level = max(level, 3)
	case a >= 1:
		level = max(level, 2)
	}

	// CPS ladder
	switch {
	case c >= 2:
		level = max(level, 3)
	case c >= 1:
		level = max(level, 2)
	}

	if items.AtLeast(ItemCaregiverStress, 1) && (a >= 1 || c >= 1) {
		level = max(level, 4)
	}

	falls := items.AtLeast(ItemFalls, 1)
	wandering := items.AtLeast(ItemWandering, 1)
	switch {
	case falls && wandering:
		level = 5
	case falls || wandering:
		level = max(level, 4)
	}

	// Highest priority override
	if a >= 3 && c >= 3 {
		level = 5
	}

	return &level
}
