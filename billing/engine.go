package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// EVALUATION
// =============================================================================

// Rationale explains a budget status.
type Rationale struct {
	RUGGroup             rug.Group       `json:"rug_group"`
	RUGCategory          rug.Category    `json:"rug_category"`
	TemplateCode         string          `json:"template_code"`
	TierLabel            string          `json:"tier_label,omitempty"`
	WeeklyCapCents       generic.Cents   `json:"weekly_cap_cents"`
	TotalWeeklyCostCents generic.Cents   `json:"total_weekly_cost_cents"`
	UtilizationPercent   decimal.Decimal `json:"utilization_percent"`
	Summary              string          `json:"summary"`
}

// Evaluation is the cost verdict for one plan. Status is informational;
// callers decide whether to enforce it.
type Evaluation struct {
	TotalWeeklyCostCents generic.Cents `json:"total_weekly_cost_cents"`
	WeeklyCapCents       generic.Cents `json:"weekly_cap_cents"`
	Status               BudgetStatus  `json:"budget_status"`
	Rationale            Rationale     `json:"rationale"`
	Plan                 *bundle.Plan  `json:"plan"`
}

type Engine struct {
	resolver *Resolver
	log      zerolog.Logger
}

func NewEngine(resolver *Resolver, log zerolog.Logger) *Engine {
	return &Engine{resolver: resolver, log: log}
}

func refFor(e bundle.PlanEntry) ServiceRef {
	return ServiceRef{
		ServiceType:       e.ServiceType,
		Category:          e.Category,
		UnitType:          e.UnitType,
		CostOverrideCents: e.CostOverrideCents,
		DefaultCostCents:  e.DefaultCostCents,
	}
}

// Evaluate resolves a rate for every plan entry, writes rate and weekly
// cost onto the entries, and bands the total against the template cap.
func (e *Engine) Evaluate(ctx context.Context, plan *bundle.Plan, c *rug.Classification, tpl *bundle.Template, orgID *string, asOf generic.Date) (Evaluation, error) {
	if plan == nil || tpl == nil || c == nil {
		return Evaluation{}, fmt.Errorf("%w: plan, classification and template are required", generic.ErrInvalidInput)
	}

	var total generic.Cents
	for i := range plan.Entries {
		entry := &plan.Entries[i]
		rate := e.resolver.Resolve(ctx, refFor(*entry), orgID, asOf)
		entry.UnitType = rate.UnitType
		entry.RateCents = rate.RateCents
		entry.RateSource = string(rate.Source)
		entry.WeeklyCostCents = WeeklyCost(rate.UnitType, rate.RateCents, entry.DurationMinutes, entry.FrequencyPerWeek)
		total += entry.WeeklyCostCents
	}

	capCents := tpl.WeeklyCapCents
	status := BudgetStatusFor(total, capCents)
	utilization := UtilizationPercent(total, capCents)

	eval := Evaluation{
		TotalWeeklyCostCents: total,
		WeeklyCapCents:       capCents,
		Status:               status,
		Plan:                 plan,
		Rationale: Rationale{
			RUGGroup:             c.RUGGroup,
			RUGCategory:          c.RUGCategory,
			TemplateCode:         tpl.Code,
			TierLabel:            tpl.TierLabel,
			WeeklyCapCents:       capCents,
			TotalWeeklyCostCents: total,
			UtilizationPercent:   utilization,
		},
	}
	eval.Rationale.Summary = summarize(eval.Rationale, status)

	e.log.Debug().
		Str("template", tpl.Code).
		Str("status", string(status)).
		Int64("total_cents", int64(total)).
		Int64("cap_cents", int64(capCents)).
		Msg("plan cost evaluated")
	return eval, nil
}

func summarize(r Rationale, status BudgetStatus) string {
	tier := r.TemplateCode
	if r.TierLabel != "" {
		tier = r.TierLabel
	}
	return fmt.Sprintf("RUG %s (%s), %s: weekly cost %s of %s cap (%s%%), %s",
		r.RUGGroup, r.RUGCategory, tier,
		r.TotalWeeklyCostCents, r.WeeklyCapCents,
		r.UtilizationPercent.StringFixed(1), status)
}

// =============================================================================
// PREVIEW - Snapshot versus live rates
// =============================================================================

// SnapshotLine is one service as frozen at care plan creation.
type SnapshotLine struct {
	ServiceType       string           `json:"service_type"`
	Category          string           `json:"category,omitempty"`
	UnitType          generic.UnitType `json:"unit_type"`
	FrequencyPerWeek  int              `json:"frequency_per_week"`
	DurationMinutes   int              `json:"duration_minutes"`
	RateCents         generic.Cents    `json:"rate_cents"`
	CostOverrideCents *generic.Cents   `json:"cost_override_cents,omitempty"`
	DefaultCostCents  *generic.Cents   `json:"default_cost_cents,omitempty"`
}

// PlanSnapshot is a frozen care plan owned by the caller.
type PlanSnapshot struct {
	ID             string         `json:"id"`
	TemplateCode   string         `json:"template_code"`
	WeeklyCapCents generic.Cents  `json:"weekly_cap_cents"`
	CreatedAt      time.Time      `json:"created_at"`
	Lines          []SnapshotLine `json:"lines"`
}

// SnapshotOf freezes an evaluated plan. Lines keep the resolved rate and
// every fallback the resolver would use later.
func SnapshotOf(id string, plan *bundle.Plan, capCents generic.Cents, at time.Time) PlanSnapshot {
	snap := PlanSnapshot{
		ID:             id,
		TemplateCode:   plan.TemplateCode,
		WeeklyCapCents: capCents,
		CreatedAt:      at,
		Lines:          make([]SnapshotLine, 0, len(plan.Entries)),
	}
	for _, e := range plan.Entries {
		snap.Lines = append(snap.Lines, SnapshotLine{
			ServiceType:       e.ServiceType,
			Category:          e.Category,
			UnitType:          e.UnitType,
			FrequencyPerWeek:  e.FrequencyPerWeek,
			DurationMinutes:   e.DurationMinutes,
			RateCents:         e.RateCents,
			CostOverrideCents: e.CostOverrideCents,
			DefaultCostCents:  e.DefaultCostCents,
		})
	}
	return snap
}

type PreviewLine struct {
	ServiceType         string        `json:"service_type"`
	SnapshotRateCents   generic.Cents `json:"snapshot_rate_cents"`
	CurrentRateCents    generic.Cents `json:"current_rate_cents"`
	RateSource          RateSource    `json:"rate_source"`
	SnapshotWeeklyCents generic.Cents `json:"snapshot_weekly_cents"`
	CurrentWeeklyCents  generic.Cents `json:"current_weekly_cents"`
	RateChanged         bool          `json:"rate_changed"`
}

type Preview struct {
	SnapshotID         string        `json:"snapshot_id"`
	AsOf               generic.Date  `json:"as_of"`
	Lines              []PreviewLine `json:"lines"`
	SnapshotTotalCents generic.Cents `json:"snapshot_total_cents"`
	CurrentTotalCents  generic.Cents `json:"current_total_cents"`
	DeltaCents         generic.Cents `json:"delta_cents"`
	Status             BudgetStatus  `json:"budget_status"`
	AnyRateChanged     bool          `json:"any_rate_changed"`
}

// PreviewCarePlanWithCurrentRates reprices a snapshot with the rates valid
// on asOf. The snapshot is not modified.
func (e *Engine) PreviewCarePlanWithCurrentRates(ctx context.Context, snap PlanSnapshot, orgID *string, asOf generic.Date) Preview {
	p := Preview{
		SnapshotID: snap.ID,
		AsOf:       asOf,
		Lines:      make([]PreviewLine, 0, len(snap.Lines)),
	}

	for _, line := range snap.Lines {
		ref := ServiceRef{
			ServiceType:       line.ServiceType,
			Category:          line.Category,
			UnitType:          line.UnitType,
			CostOverrideCents: line.CostOverrideCents,
			DefaultCostCents:  line.DefaultCostCents,
		}
		current := e.resolver.Resolve(ctx, ref, orgID, asOf)

		pl := PreviewLine{
			ServiceType:         line.ServiceType,
			SnapshotRateCents:   line.RateCents,
			CurrentRateCents:    current.RateCents,
			RateSource:          current.Source,
			SnapshotWeeklyCents: WeeklyCost(line.UnitType, line.RateCents, line.DurationMinutes, line.FrequencyPerWeek),
			CurrentWeeklyCents:  WeeklyCost(current.UnitType, current.RateCents, line.DurationMinutes, line.FrequencyPerWeek),
			RateChanged:         current.RateCents != line.RateCents,
		}
		p.SnapshotTotalCents += pl.SnapshotWeeklyCents
		p.CurrentTotalCents += pl.CurrentWeeklyCents
		p.AnyRateChanged = p.AnyRateChanged || pl.RateChanged
		p.Lines = append(p.Lines, pl)
	}

	p.DeltaCents = p.CurrentTotalCents - p.SnapshotTotalCents
	p.Status = BudgetStatusFor(p.CurrentTotalCents, snap.WeeklyCapCents)
	return p
}
