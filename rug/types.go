/*
Package rug assigns Resource Utilization Groups (RUG-III/HC) to assessments.

PURPOSE:
  A classification places a patient into one of 23 resource groups
  arranged in seven categories. The group decides which bundle template
  the patient is matched to and which clinical add-on services apply.

KEY CONCEPTS:
  - Assessment: Raw items plus named clinical fields
  - Profile: Derived values the hierarchy reads (ADL sum, IADL sum, flags)
  - Rule: One ordered (predicate, result) step of the hierarchy
  - Classification: Immutable result, superseded by the next one

HIERARCHY (first match wins):
  1. Rehabilitation          RB0 RA2 RA1
  2. Extensive Services      SE3 SE2 SE1
  3. Special Care            SSB SSA
  4. Clinically Complex      CC0 CB0 CA2 CA1
  5. Impaired Cognition      IB0 IA2 IA1
  6. Behaviour Problems      BB0 BA2 BA1
  7. Reduced Physical Func.  PD0 PC0 PB0 PA2 PA1

LIFECYCLE:
  Classifications are never edited. Reclassifying a patient flips the
  previous current record to superseded and inserts a new current one in
  the same store transaction.

SEE ALSO:
  - rules.go: The ordered hierarchy table
  - service.go: Supersession and per-patient locking
*/
package rug

import (
	"time"

	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// CATEGORIES AND GROUPS
// =============================================================================

type Category string

const (
	CategoryRehabilitation    Category = "rehabilitation"
	CategoryExtensiveServices Category = "extensive_services"
	CategorySpecialCare       Category = "special_care"
	CategoryClinicallyComplex Category = "clinically_complex"
	CategoryImpairedCognition Category = "impaired_cognition"
	CategoryBehaviourProblems Category = "behaviour_problems"
	CategoryPhysicalFunction  Category = "reduced_physical_function"
)

// Categories lists the seven categories in hierarchy order.
var Categories = []Category{
	CategoryRehabilitation,
	CategoryExtensiveServices,
	CategorySpecialCare,
	CategoryClinicallyComplex,
	CategoryImpairedCognition,
	CategoryBehaviourProblems,
	CategoryPhysicalFunction,
}

func (c Category) IsKnown() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Group is a RUG code such as "CB0".
type Group string

// Hierarchy lists every group from highest to lowest resource intensity.
var Hierarchy = []Group{
	"RB0", "RA2", "RA1",
	"SE3", "SE2", "SE1",
	"SSB", "SSA",
	"CC0", "CB0", "CA2", "CA1",
	"IB0", "IA2", "IA1",
	"BB0", "BA2", "BA1",
	"PD0", "PC0", "PB0", "PA2", "PA1",
}

var groupCategory = func() map[Group]Category {
	m := make(map[Group]Category, len(Hierarchy))
	for _, g := range Hierarchy {
		switch g[0] {
		case 'R':
			m[g] = CategoryRehabilitation
		case 'S':
			if g[1] == 'E' {
				m[g] = CategoryExtensiveServices
			} else {
				m[g] = CategorySpecialCare
			}
		case 'C':
			m[g] = CategoryClinicallyComplex
		case 'I':
			m[g] = CategoryImpairedCognition
		case 'B':
			m[g] = CategoryBehaviourProblems
		case 'P':
			m[g] = CategoryPhysicalFunction
		}
	}
	return m
}()

// CategoryOf returns the category of a known group.
func CategoryOf(g Group) (Category, bool) {
	c, ok := groupCategory[g]
	return c, ok
}

// NumericRank returns the group's rank: RB0 = 23 down to PA1 = 1. Unknown
// groups rank 0.
func NumericRank(g Group) int {
	for i, h := range Hierarchy {
		if h == g {
			return len(Hierarchy) - i
		}
	}
	return 0
}

func (g Group) IsKnown() bool { return NumericRank(g) > 0 }

// =============================================================================
// FLAGS
// =============================================================================

const (
	FlagRehabilitation    = "rehabilitation"
	FlagExtensiveServices = "extensive_services"
	FlagSpecialCare       = "special_care"
	FlagClinicallyComplex = "clinically_complex"
	FlagImpairedCognition = "impaired_cognition"
	FlagBehaviourProblems = "behaviour_problems"
	FlagIVMedication      = "iv_medication"
	FlagIVFeeding         = "iv_feeding"
	FlagHighADL           = "high_adl"
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classification is the immutable result of classifying one assessment.
type Classification struct {
	ID             string        `json:"id"`
	PatientID      string        `json:"patient_id"`
	AssessmentID   string        `json:"assessment_id,omitempty"`
	RUGGroup       Group         `json:"rug_group"`
	RUGCategory    Category      `json:"rug_category"`
	ADLSum         int           `json:"adl_sum"`
	IADLSum        int           `json:"iadl_sum"`
	CPSScore       int           `json:"cps_score"`
	Flags          generic.Flags `json:"flags"`
	NumericRank    int           `json:"numeric_rank"`
	TherapyMinutes int           `json:"therapy_minutes"`
	ExtensiveCount int           `json:"extensive_count"`
	MatchedRule    string        `json:"matched_rule"`
	IsCurrent      bool          `json:"is_current"`
	ClassifiedAt   time.Time     `json:"classified_at"`
	SupersededAt   *time.Time    `json:"superseded_at,omitempty"`
}
