/*
Package assessment converts raw InterRAI Home Care items into clinical scales.

PURPOSE:
  An assessment arrives as a sparse set of coded items ("C1" -> 3,
  "G5k" -> 6). This package turns those codes into the standardized
  output scales (CPS, ADL Hierarchy, IADL, CHESS, DRS, Pain, MAPLe),
  the triggered Clinical Assessment Protocols, and a recommended weekly
  personal support (PSW) hours figure.

MISSING DATA:
  Scales that depend on an absent item return nil. Nil means
  "insufficient data" and contributes nothing downstream; it is never an
  error.

SENTINEL CODES:
  8 = "activity did not occur". ADL and IADL items treat it as 0 except
  for CPS eating dependence, where it counts as dependent.

SEE ALSO:
  - scores.go: Scale algorithms
  - caps.go: Protocol triggers and PSW hours
  - rug/classifier.go: Uses CPS and CHESS when not supplied
*/
package assessment

import "github.com/warp/homecare-engine/generic"

// =============================================================================
// ITEM CODES
// =============================================================================

const (
	// Cognition
	ItemDecisionMaking  = "C1"
	ItemShortTermMemory = "C2a"
	ItemSelfUnderstood  = "C3"

	// ADL self-performance
	ItemHygiene     = "G5b"
	ItemTransfer    = "G5e"
	ItemLocomotion  = "G5f"
	ItemBedMobility = "G5h"
	ItemToiletUse   = "G5i"
	ItemEating      = "G5k"

	// IADL performance (home) and capacity (facility)
	ItemMealPrep       = "G1a"
	ItemHousework      = "G1b"
	ItemFinances       = "G1c"
	ItemMedications    = "G1d"
	ItemPhone          = "G1e"
	ItemStairs         = "G1f"
	ItemShopping       = "G1g"
	ItemTransportation = "G1h"
	ItemMealPrepCap    = "G2a"
	ItemMedicationsCap = "G2d"
	ItemPhoneCap       = "G2e"

	// Health instability
	ItemVomiting   = "J3c"
	ItemEdema      = "J3j"
	ItemDyspnea    = "J4"
	ItemWeightLoss = "K2a"
	ItemDehydrated = "K2b"

	// Pain
	ItemPainFrequency = "J5a"
	ItemPainIntensity = "J5b"

	// Falls, continence, caregiver
	ItemFalls           = "J1"
	ItemBladder         = "H1"
	ItemBowel           = "H3"
	ItemCaregiverStress = "P2a"

	// Behaviour (E3a doubles as wandering)
	ItemWandering        = "E3a"
	ItemVerbalAbuse      = "E3b"
	ItemPhysicalAbuse    = "E3c"
	ItemSociallyInapprop = "E3d"
	ItemResistsCare      = "E3e"
	ItemDisruptive       = "E3f"

	// Treatments and special conditions (RUG)
	ItemIVMedication = "P1aa"
	ItemIVFeeding    = "P1ab"
	ItemSuctioning   = "P1ac"
	ItemTracheostomy = "P1ad"
	ItemVentilator   = "P1ae"
	ItemOxygen       = "P1af"
	ItemEndStage     = "P1ag"
	ItemUlcerStage   = "L1"
	ItemFeedingTube  = "K3"
)

// DidNotOccur is the "activity did not occur" sentinel.
const DidNotOccur = 8

// MoodItems are the seven Depression Rating Scale inputs.
var MoodItems = []string{"E1a", "E1b", "E1c", "E1d", "E1e", "E1f", "E1g"}

// BehaviourItems are the six behaviour symptom items.
var BehaviourItems = []string{
	ItemWandering, ItemVerbalAbuse, ItemPhysicalAbuse,
	ItemSociallyInapprop, ItemResistsCare, ItemDisruptive,
}

// IADLItems are the eight IADL performance items.
var IADLItems = []string{
	ItemMealPrep, ItemHousework, ItemFinances, ItemMedications,
	ItemPhone, ItemStairs, ItemShopping, ItemTransportation,
}

// CHESSItems are the five binary health-instability indicators.
var CHESSItems = []string{ItemVomiting, ItemDehydrated, ItemWeightLoss, ItemDyspnea, ItemEdema}

// =============================================================================
// ITEM SET
// =============================================================================

// ItemSet maps coded item keys to integer severity codes. Keys are optional.
type ItemSet map[string]int

// Get returns the item value and whether it was assessed.
func (s ItemSet) Get(key string) (int, bool) {
	v, ok := s[key]
	return v, ok
}

// Value returns the item value or 0 when absent.
func (s ItemSet) Value(key string) int { return s[key] }

func (s ItemSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// AtLeast reports whether the item is present with a value >= min.
func (s ItemSet) AtLeast(key string, min int) bool {
	v, ok := s[key]
	return ok && v >= min
}

// AnyAtLeast reports whether any of keys is present with a value >= min.
func (s ItemSet) AnyAtLeast(min int, keys ...string) bool {
	for _, k := range keys {
		if s.AtLeast(k, min) {
			return true
		}
	}
	return false
}

// Clamped returns the item value bounded to [lo, hi] and whether it was present.
func (s ItemSet) Clamped(key string, lo, hi int) (int, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	return generic.Clamp(v, lo, hi), true
}
