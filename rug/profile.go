package rug

import (
	"time"

	"github.com/warp/homecare-engine/assessment"
	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// ASSESSMENT - Classifier input
// =============================================================================

// Setting selects which IADL items count toward the IADL sum.
type Setting string

const (
	SettingHome     Setting = "home"
	SettingFacility Setting = "facility"
)

// Assessment is one completed InterRAI HC assessment.
// CPS and CHESS are the named clinical fields; when nil they are derived
// from Items.
type Assessment struct {
	ID             string             `json:"id"`
	PatientID      string             `json:"patient_id"`
	AssessedAt     time.Time          `json:"assessed_at"`
	Setting        Setting            `json:"setting,omitempty"`
	Items          assessment.ItemSet `json:"items"`
	TherapyMinutes int                `json:"therapy_minutes"`
	CPS            *int               `json:"cognitive_performance_scale,omitempty"`
	CHESS          *int               `json:"chess_score,omitempty"`
}

// IsEmpty reports whether there is nothing to classify.
func (a *Assessment) IsEmpty() bool {
	return a == nil || (len(a.Items) == 0 && a.CPS == nil && a.CHESS == nil && a.TherapyMinutes == 0)
}

// =============================================================================
// ADL AND IADL SUMS
// =============================================================================

// adlSumItems feed the RUG late-loss ADL sum.
var adlSumItems = []string{
	assessment.ItemBedMobility,
	assessment.ItemTransfer,
	assessment.ItemToiletUse,
	assessment.ItemEating,
}

const (
	minADLSum = 4
	maxADLSum = 18
)

// adlPoints converts one self-performance code into RUG ADL points.
func adlPoints(code int, present bool) int {
	if !present {
		return 1
	}
	switch {
	case code == assessment.DidNotOccur:
		return 4
	case code <= 0:
		return 1
	case code <= 3:
		return code + 1
	case code == 4:
		return 4
	default:
		return 5
	}
}

// ADLSum returns the late-loss ADL sum, always within [4, 18].
func ADLSum(items assessment.ItemSet) int {
	sum := 0
	for _, key := range adlSumItems {
		v, ok := items.Get(key)
		sum += adlPoints(v, ok)
	}
	return generic.Clamp(sum, minADLSum, maxADLSum)
}

var iadlSumItems = map[Setting][]string{
	SettingHome:     {assessment.ItemMealPrep, assessment.ItemMedications, assessment.ItemPhone},
	SettingFacility: {assessment.ItemMealPrepCap, assessment.ItemMedicationsCap, assessment.ItemPhoneCap},
}

// IADLSum counts the setting's three IADL items scoring 3 or more. An
// unknown setting is treated as home.
func IADLSum(items assessment.ItemSet, setting Setting) int {
	keys, ok := iadlSumItems[setting]
	if !ok {
		keys = iadlSumItems[SettingHome]
	}
	count := 0
	for _, key := range keys {
		v, present := items.Get(key)
		if present && v >= 3 && v != assessment.DidNotOccur {
			count++
		}
	}
	return count
}

// =============================================================================
// PROFILE - Everything the hierarchy reads
// =============================================================================

// Profile holds the derived values the hierarchy rules evaluate.
type Profile struct {
	ADLSum         int
	IADLSum        int
	CPS            int
	CHESS          int
	TherapyMinutes int
	ExtensiveCount int
	Flags          generic.Flags
}

// NewProfile derives a Profile from an assessment.
func NewProfile(a Assessment) Profile {
	items := a.Items
	if items == nil {
		items = assessment.ItemSet{}
	}

	p := Profile{
		ADLSum:         ADLSum(items),
		IADLSum:        IADLSum(items, a.Setting),
		TherapyMinutes: max(a.TherapyMinutes, 0),
		Flags:          generic.NewFlags(),
	}

	if a.CPS != nil {
		p.CPS = *a.CPS
	} else if cps := assessment.CPS(items); cps != nil {
		p.CPS = *cps
	}
	if a.CHESS != nil {
		p.CHESS = *a.CHESS
	} else {
		p.CHESS = assessment.CHESS(items)
	}

	ivMeds := items.AtLeast(assessment.ItemIVMedication, 1)
	ivFeeding := items.AtLeast(assessment.ItemIVFeeding, 1)
	extensive := ivMeds || ivFeeding || items.AnyAtLeast(1,
		assessment.ItemSuctioning,
		assessment.ItemTracheostomy,
		assessment.ItemVentilator,
	)

	specialCondition := items.AtLeast(assessment.ItemUlcerStage, 3) ||
		items.AtLeast(assessment.ItemFeedingTube, 1) ||
		items.AtLeast(assessment.ItemWeightLoss, 1)
	specialCare := specialCondition && p.ADLSum >= 7

	clinicallyComplex := p.CHESS >= 3 ||
		items.AtLeast(assessment.ItemEndStage, 1) ||
		items.AtLeast(assessment.ItemOxygen, 1) ||
		(items.AtLeast(assessment.ItemPainFrequency, 2) && items.AtLeast(assessment.ItemPainIntensity, 2))

	p.Flags.Set(FlagRehabilitation, p.TherapyMinutes >= 120)
	p.Flags.Set(FlagExtensiveServices, extensive)
	p.Flags.Set(FlagSpecialCare, specialCare)
	p.Flags.Set(FlagClinicallyComplex, clinicallyComplex)
	p.Flags.Set(FlagImpairedCognition, p.CPS >= 3)
	p.Flags.Set(FlagBehaviourProblems, items.AnyAtLeast(2, assessment.BehaviourItems...))
	p.Flags.Set(FlagIVMedication, ivMeds)
	p.Flags.Set(FlagIVFeeding, ivFeeding)
	p.Flags.Set(FlagHighADL, p.ADLSum >= 11)

	p.ExtensiveCount = extensiveCount(p.Flags)
	return p
}

// extensiveCount adds the clinical flags to the IV indicators.
func extensiveCount(f generic.Flags) int {
	n := 0
	for _, name := range []string{
		FlagSpecialCare, FlagClinicallyComplex, FlagImpairedCognition,
		FlagIVFeeding, FlagIVMedication,
	} {
		if f.Has(name) {
			n++
		}
	}
	return n
}
