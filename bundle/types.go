/*
Package bundle matches classifications to funded bundle templates and
assembles the weekly service plan.

PURPOSE:
  A Template is a funded service bundle: a RUG group it was designed for,
  ADL/IADL ranges it accepts, a weekly spending cap and baseline services.
  Recommendations add clinically triggered services on top of the
  template baseline.

KEY CONCEPTS:
  - Template / TemplateService: Catalog definitions, read-only here
  - Recommendation: Threshold-gated add-on for one RUG category
  - ServiceType: Catalog entry with unit type and default cost
  - Plan / PlanEntry: Derived weekly service list, recomputed on demand

FALLBACK TIERS (matcher.go):
  1. Exact RUG group, validated against the classification's ranges
  2. Same category, ranges match, highest priority with compatible flags
  3. Ranges only, same flag tie-break

SEE ALSO:
  - matcher.go: Template matching and scoring
  - planner.go: Service plan assembly
  - cache.go: Cached template reads
*/
package bundle

import (
	"fmt"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// SERVICE TYPE
// =============================================================================

// ServiceType is a deliverable service from the catalog.
type ServiceType struct {
	Code                   string           `json:"code" yaml:"code"`
	Name                   string           `json:"name" yaml:"name"`
	Category               string           `json:"category" yaml:"category"`
	UnitType               generic.UnitType `json:"unit_type" yaml:"unit_type"`
	DefaultCostCents       *generic.Cents   `json:"default_cost_cents,omitempty" yaml:"default_cost_cents,omitempty"`
	DefaultDurationMinutes int              `json:"default_duration_minutes,omitempty" yaml:"default_duration_minutes,omitempty"`
}

// =============================================================================
// TEMPLATE
// =============================================================================

// TemplateService is one baseline service of a template.
type TemplateService struct {
	ServiceType             string         `json:"service_type" yaml:"service_type"`
	DefaultFrequencyPerWeek int            `json:"default_frequency_per_week" yaml:"frequency_per_week"`
	DefaultDurationMinutes  int            `json:"default_duration_minutes,omitempty" yaml:"duration_minutes,omitempty"`
	IsRequired              bool           `json:"is_required" yaml:"required"`
	IsConditional           bool           `json:"is_conditional" yaml:"conditional"`
	ConditionFlags          []string       `json:"condition_flags,omitempty" yaml:"condition_flags,omitempty"`
	CostOverrideCents       *generic.Cents `json:"cost_override_cents,omitempty" yaml:"cost_override_cents,omitempty"`
}

// Template is a funded service bundle.
type Template struct {
	Code           string            `json:"code" yaml:"code"`
	Name           string            `json:"name" yaml:"name"`
	RUGGroup       rug.Group         `json:"rug_group" yaml:"rug_group"`
	RUGCategory    rug.Category      `json:"rug_category" yaml:"rug_category"`
	ADLRange       generic.IntRange  `json:"adl_range" yaml:"adl_range"`
	IADLRange      generic.IntRange  `json:"iadl_range" yaml:"iadl_range"`
	WeeklyCapCents generic.Cents     `json:"weekly_cap_cents" yaml:"weekly_cap_cents"`
	PriorityWeight int               `json:"priority_weight" yaml:"priority_weight"`
	TierLabel      string            `json:"tier_label,omitempty" yaml:"tier_label,omitempty"`
	Flags          []string          `json:"flags,omitempty" yaml:"flags,omitempty"`
	Services       []TemplateService `json:"services" yaml:"services"`
}

// AcceptsRanges reports whether the classification's ADL and IADL sums fall
// within the template's ranges.
func (t Template) AcceptsRanges(c *rug.Classification) bool {
	return t.ADLRange.Contains(c.ADLSum) && t.IADLRange.Contains(c.IADLSum)
}

// FlagsCompatible reports whether every flag the template names is true on
// the classification. A template without flags is always compatible.
func (t Template) FlagsCompatible(c *rug.Classification) bool {
	return c.Flags.All(t.Flags...)
}

// Service returns the template's entry for a service type.
func (t Template) Service(serviceType string) (TemplateService, bool) {
	for _, s := range t.Services {
		if s.ServiceType == serviceType {
			return s, true
		}
	}
	return TemplateService{}, false
}

func (t Template) Validate() error {
	if t.Code == "" {
		return fmt.Errorf("%w: template code is required", generic.ErrInvalidCatalog)
	}
	if err := t.ADLRange.Validate(); err != nil {
		return fmt.Errorf("%w: template %s adl %v", generic.ErrInvalidCatalog, t.Code, err)
	}
	if err := t.IADLRange.Validate(); err != nil {
		return fmt.Errorf("%w: template %s iadl %v", generic.ErrInvalidCatalog, t.Code, err)
	}
	if t.WeeklyCapCents < 0 {
		return fmt.Errorf("%w: template %s has a negative weekly cap", generic.ErrInvalidCatalog, t.Code)
	}
	seen := make(map[string]bool, len(t.Services))
	for _, s := range t.Services {
		if s.ServiceType == "" {
			return fmt.Errorf("%w: template %s has a service without a type", generic.ErrInvalidCatalog, t.Code)
		}
		if seen[s.ServiceType] {
			return fmt.Errorf("%w: template %s lists %s twice", generic.ErrInvalidCatalog, t.Code, s.ServiceType)
		}
		if s.DefaultFrequencyPerWeek < 0 {
			return fmt.Errorf("%w: template %s service %s has a negative frequency", generic.ErrInvalidCatalog, t.Code, s.ServiceType)
		}
		seen[s.ServiceType] = true
	}
	return nil
}

// =============================================================================
// RECOMMENDATION
// =============================================================================

// Trigger gates a recommendation. Every set threshold must hold.
type Trigger struct {
	ADLMin  *int     `json:"adl_min,omitempty" yaml:"adl_min,omitempty"`
	IADLMin *int     `json:"iadl_min,omitempty" yaml:"iadl_min,omitempty"`
	CPSMin  *int     `json:"cps_min,omitempty" yaml:"cps_min,omitempty"`
	Flags   []string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// Holds evaluates the trigger against a classification.
func (tr Trigger) Holds(c *rug.Classification) bool {
	if tr.ADLMin != nil && c.ADLSum < *tr.ADLMin {
		return false
	}
	if tr.IADLMin != nil && c.IADLSum < *tr.IADLMin {
		return false
	}
	if tr.CPSMin != nil && c.CPSScore < *tr.CPSMin {
		return false
	}
	return c.Flags.All(tr.Flags...)
}

// Recommendation is a clinically triggered add-on service.
type Recommendation struct {
	ID                  string       `json:"id" yaml:"id"`
	RUGCategory         rug.Category `json:"rug_category" yaml:"rug_category"`
	ServiceType         string       `json:"service_type" yaml:"service_type"`
	MinFrequencyPerWeek int          `json:"min_frequency_per_week" yaml:"min_frequency_per_week"`
	DurationMinutes     int          `json:"duration_minutes,omitempty" yaml:"duration_minutes,omitempty"`
	Trigger             Trigger      `json:"trigger" yaml:"trigger"`
	PriorityWeight      int          `json:"priority_weight" yaml:"priority_weight"`
	IsRequired          bool         `json:"is_required" yaml:"required"`
}
