package bundle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// PLAN - Derived weekly service list
// =============================================================================

// Source records where a plan entry came from.
type Source string

const (
	SourceTemplate       Source = "template"
	SourceRecommendation Source = "recommendation"
	SourceMerged         Source = "template+recommendation"
)

// Entry priorities for template services.
const (
	PriorityRequired = 100
	PriorityOptional = 50
)

// DefaultDurationMinutes applies when neither the template, the
// recommendation nor the service type names a duration.
const DefaultDurationMinutes = 60

// PlanEntry is one service in a plan. The rate fields are filled in by the
// cost engine.
type PlanEntry struct {
	ServiceType       string           `json:"service_type"`
	Category          string           `json:"category,omitempty"`
	FrequencyPerWeek  int              `json:"frequency_per_week"`
	DurationMinutes   int              `json:"duration_minutes"`
	IsRequired        bool             `json:"is_required"`
	Source            Source           `json:"source"`
	Priority          int              `json:"priority"`
	UnitType          generic.UnitType `json:"unit_type,omitempty"`
	CostOverrideCents *generic.Cents   `json:"cost_override_cents,omitempty"`
	DefaultCostCents  *generic.Cents   `json:"-"`
	RateCents         generic.Cents    `json:"rate_cents"`
	RateSource        string           `json:"rate_source,omitempty"`
	WeeklyCostCents   generic.Cents    `json:"weekly_cost_cents"`
}

// Plan is a prioritized service list for one classification and template.
type Plan struct {
	ClassificationID string        `json:"classification_id,omitempty"`
	TemplateCode     string        `json:"template_code"`
	WeeklyCapCents   generic.Cents `json:"weekly_cap_cents"`
	Entries          []PlanEntry   `json:"entries"`
}

// TotalWeeklyCost sums the annotated entry costs.
func (p *Plan) TotalWeeklyCost() generic.Cents {
	var total generic.Cents
	for _, e := range p.Entries {
		total += e.WeeklyCostCents
	}
	return total
}

// Entry returns the entry for a service type.
func (p *Plan) Entry(serviceType string) (PlanEntry, bool) {
	for _, e := range p.Entries {
		if e.ServiceType == serviceType {
			return e, true
		}
	}
	return PlanEntry{}, false
}

// WithoutServices returns a copy of the plan with the given service types
// removed. The receiver is not modified.
func (p *Plan) WithoutServices(serviceTypes ...string) *Plan {
	drop := make(map[string]bool, len(serviceTypes))
	for _, st := range serviceTypes {
		drop[st] = true
	}
	out := *p
	out.Entries = make([]PlanEntry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if !drop[e.ServiceType] {
			out.Entries = append(out.Entries, e)
		}
	}
	return &out
}

func (p *Plan) sortEntries() {
	sort.SliceStable(p.Entries, func(i, j int) bool {
		if p.Entries[i].Priority != p.Entries[j].Priority {
			return p.Entries[i].Priority > p.Entries[j].Priority
		}
		return p.Entries[i].ServiceType < p.Entries[j].ServiceType
	})
}

// =============================================================================
// PLANNER
// =============================================================================

type Planner struct {
	recommendations RecommendationStore
	serviceTypes    ServiceTypeStore
	log             zerolog.Logger
}

func NewPlanner(recommendations RecommendationStore, serviceTypes ServiceTypeStore, log zerolog.Logger) *Planner {
	return &Planner{recommendations: recommendations, serviceTypes: serviceTypes, log: log}
}

// includeTemplateService applies the conditional gate.
func includeTemplateService(s TemplateService, c *rug.Classification) bool {
	if s.IsRequired || !s.IsConditional {
		return true
	}
	return c.Flags.Any(s.ConditionFlags...)
}

// BuildServicesFor merges the template baseline with the triggered
// recommendations for the classification's category.
func (pl *Planner) BuildServicesFor(ctx context.Context, c *rug.Classification, tpl *Template) (*Plan, error) {
	plan := &Plan{
		ClassificationID: c.ID,
		TemplateCode:     tpl.Code,
		WeeklyCapCents:   tpl.WeeklyCapCents,
	}
	index := make(map[string]int)

	for _, s := range tpl.Services {
		if !includeTemplateService(s, c) {
			continue
		}
		priority := PriorityOptional
		if s.IsRequired {
			priority = PriorityRequired
		}
		entry := PlanEntry{
			ServiceType:       s.ServiceType,
			FrequencyPerWeek:  s.DefaultFrequencyPerWeek,
			DurationMinutes:   s.DefaultDurationMinutes,
			IsRequired:        s.IsRequired,
			Source:            SourceTemplate,
			Priority:          priority,
			CostOverrideCents: s.CostOverrideCents,
		}
		if err := pl.describe(ctx, &entry); err != nil {
			return nil, err
		}
		index[s.ServiceType] = len(plan.Entries)
		plan.Entries = append(plan.Entries, entry)
	}

	recs, err := pl.recommendations.Recommendations(ctx, c.RUGCategory)
	if err != nil {
		return nil, fmt.Errorf("load recommendations for %s: %w", c.RUGCategory, err)
	}

	for _, r := range recs {
		if !r.Trigger.Holds(c) {
			continue
		}

		if i, ok := index[r.ServiceType]; ok {
			e := &plan.Entries[i]
			if r.MinFrequencyPerWeek > e.FrequencyPerWeek {
				e.FrequencyPerWeek = r.MinFrequencyPerWeek
			}
			if e.Source == SourceTemplate {
				e.Source = SourceMerged
			}
			e.Priority = max(e.Priority, r.PriorityWeight)
			e.IsRequired = e.IsRequired || r.IsRequired
			continue
		}

		entry := PlanEntry{
			ServiceType:      r.ServiceType,
			FrequencyPerWeek: r.MinFrequencyPerWeek,
			DurationMinutes:  r.DurationMinutes,
			IsRequired:       r.IsRequired,
			Source:           SourceRecommendation,
			Priority:         r.PriorityWeight,
		}
		if err := pl.describe(ctx, &entry); err != nil {
			return nil, err
		}
		index[r.ServiceType] = len(plan.Entries)
		plan.Entries = append(plan.Entries, entry)
	}

	plan.sortEntries()

	pl.log.Debug().
		Str("template", tpl.Code).
		Str("rug_group", string(c.RUGGroup)).
		Int("entries", len(plan.Entries)).
		Msg("service plan built")
	return plan, nil
}

// describe copies catalog attributes onto the entry and settles the
// duration. An unknown service type is kept with no unit or category.
func (pl *Planner) describe(ctx context.Context, e *PlanEntry) error {
	st, err := pl.serviceTypes.ServiceType(ctx, e.ServiceType)
	switch {
	case errors.Is(err, generic.ErrNotFound):
		pl.log.Warn().Str("service_type", e.ServiceType).Msg("service type missing from catalog")
	case err != nil:
		return fmt.Errorf("load service type %s: %w", e.ServiceType, err)
	default:
		e.Category = st.Category
		e.UnitType = st.UnitType
		e.DefaultCostCents = st.DefaultCostCents
		if e.DurationMinutes <= 0 {
			e.DurationMinutes = st.DefaultDurationMinutes
		}
	}
	if e.DurationMinutes <= 0 {
		e.DurationMinutes = DefaultDurationMinutes
	}
	return nil
}

// =============================================================================
// BUDGET AND VALIDATION
// =============================================================================

// GetServicesExceedingBudget proposes non-required entries to drop, lowest
// priority first, until the removed cost covers the excess over capCents.
// Nothing is removed from the plan; an empty result means it fits or
// nothing can be removed.
func GetServicesExceedingBudget(plan *Plan, capCents generic.Cents) []PlanEntry {
	excess := plan.TotalWeeklyCost() - capCents
	if excess <= 0 {
		return nil
	}

	var optional []PlanEntry
	for _, e := range plan.Entries {
		if !e.IsRequired {
			optional = append(optional, e)
		}
	}
	sort.SliceStable(optional, func(i, j int) bool {
		if optional[i].Priority != optional[j].Priority {
			return optional[i].Priority < optional[j].Priority
		}
		return optional[i].ServiceType < optional[j].ServiceType
	})

	var removed generic.Cents
	var candidates []PlanEntry
	for _, e := range optional {
		if removed >= excess {
			break
		}
		candidates = append(candidates, e)
		removed += e.WeeklyCostCents
	}
	return candidates
}

// MissingRequiredServicesError lists required template services absent
// from a plan.
type MissingRequiredServicesError struct {
	TemplateCode string
	Missing      []string
}

func (e *MissingRequiredServicesError) Error() string {
	return fmt.Sprintf("template %s: required services missing: %s", e.TemplateCode, strings.Join(e.Missing, ", "))
}

func (e *MissingRequiredServicesError) Unwrap() error {
	return generic.ErrMissingRequiredServices
}

// ValidateRequiredServices fails when a required template service is not in
// the plan.
func ValidateRequiredServices(plan *Plan, tpl *Template) error {
	var missing []string
	for _, s := range tpl.Services {
		if !s.IsRequired {
			continue
		}
		if _, ok := plan.Entry(s.ServiceType); !ok {
			missing = append(missing, s.ServiceType)
		}
	}
	if len(missing) > 0 {
		return &MissingRequiredServicesError{TemplateCode: tpl.Code, Missing: missing}
	}
	return nil
}
