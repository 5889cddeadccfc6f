/*
Package pipeline runs the full eligibility decision for one assessment.

FLOW:
  items -> scales and CAPs (assessment)
        -> classification, superseding the previous one (rug)
        -> template (bundle.Matcher)
        -> service plan (bundle.Planner)
        -> cost evaluation (billing.Engine)

STATUSES:
  classified         Every stage produced a value
  no_classification  No assessment was supplied; nothing else ran
  no_template        Classified, but no template matched any tier

  Neither non-classified status is an error. Budget status and missing
  required services are reported on the result, never returned as errors.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/homecare-engine/assessment"
	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/metrics"
	"github.com/warp/homecare-engine/rug"
)

type Status string

const (
	StatusClassified       Status = "classified"
	StatusNoClassification Status = "no_classification"
	StatusNoTemplate       Status = "no_template"
)

// Request is one pipeline run. A zero AsOf means today.
type Request struct {
	Assessment     *rug.Assessment `json:"assessment"`
	OrganizationID *string         `json:"organization_id,omitempty"`
	AsOf           generic.Date    `json:"as_of"`
}

// Result carries every intermediate value the run produced.
type Result struct {
	Status          Status              `json:"status"`
	Summary         *assessment.Summary `json:"summary,omitempty"`
	Classification  *rug.Classification `json:"classification,omitempty"`
	Template        *bundle.Template    `json:"template,omitempty"`
	Evaluation      *billing.Evaluation `json:"evaluation,omitempty"`
	Reductions      []bundle.PlanEntry  `json:"suggested_reductions,omitempty"`
	MissingRequired []string            `json:"missing_required_services,omitempty"`
}

type Pipeline struct {
	Classifications *rug.Service
	Matcher         *bundle.Matcher
	Planner         *bundle.Planner
	Engine          *billing.Engine
	Metrics         *metrics.Metrics
	Log             zerolog.Logger
	Today           func() generic.Date
}

// Run classifies the assessment and evaluates the resulting plan.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if req.Assessment.IsEmpty() {
		p.Log.Info().Msg("no assessment supplied, skipping classification")
		return Result{Status: StatusNoClassification}, nil
	}

	summary := assessment.Summarize(req.Assessment.Items)
	c, err := p.Classifications.Classify(ctx, req.Assessment)
	if errors.Is(err, generic.ErrNoAssessment) {
		return Result{Status: StatusNoClassification}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}

	result, err := p.evaluate(ctx, &c, req.OrganizationID, req.AsOf)
	if err != nil {
		return Result{}, err
	}
	result.Summary = &summary

	p.observe(result, start)
	return result, nil
}

// EvaluateClassification runs the matching, planning and costing stages
// for an existing classification.
func (p *Pipeline) EvaluateClassification(ctx context.Context, c *rug.Classification, orgID *string, asOf generic.Date) (Result, error) {
	start := time.Now()
	result, err := p.evaluate(ctx, c, orgID, asOf)
	if err != nil {
		return Result{}, err
	}
	p.observe(result, start)
	return result, nil
}

// observe records the budget status, or the pipeline status when nothing
// was costed.
func (p *Pipeline) observe(result Result, start time.Time) {
	status := string(result.Status)
	if result.Evaluation != nil {
		status = string(result.Evaluation.Status)
	}
	p.Metrics.ObserveEvaluation(status, time.Since(start))
}

func (p *Pipeline) evaluate(ctx context.Context, c *rug.Classification, orgID *string, asOf generic.Date) (Result, error) {
	if asOf.IsZero() {
		asOf = p.today()
	}
	result := Result{Status: StatusClassified, Classification: c}

	tpl, err := p.Matcher.FindForClassification(ctx, c)
	if err != nil {
		return Result{}, fmt.Errorf("match template: %w", err)
	}
	if tpl == nil {
		p.Log.Info().
			Str("patient_id", c.PatientID).
			Str("rug_group", string(c.RUGGroup)).
			Msg("no matching template")
		result.Status = StatusNoTemplate
		return result, nil
	}
	result.Template = tpl

	plan, err := p.Planner.BuildServicesFor(ctx, c, tpl)
	if err != nil {
		return Result{}, fmt.Errorf("build plan: %w", err)
	}

	eval, err := p.Engine.Evaluate(ctx, plan, c, tpl, orgID, asOf)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate cost: %w", err)
	}
	result.Evaluation = &eval

	if eval.Status != billing.StatusOK {
		result.Reductions = bundle.GetServicesExceedingBudget(plan, tpl.WeeklyCapCents)
	}

	var missing *bundle.MissingRequiredServicesError
	if err := bundle.ValidateRequiredServices(plan, tpl); errors.As(err, &missing) {
		result.MissingRequired = missing.Missing
	}

	p.Log.Info().
		Str("patient_id", c.PatientID).
		Str("rug_group", string(c.RUGGroup)).
		Str("template", tpl.Code).
		Str("budget_status", string(eval.Status)).
		Int64("total_cents", int64(eval.TotalWeeklyCostCents)).
		Msg("plan evaluated")
	return result, nil
}

func (p *Pipeline) today() generic.Date {
	if p.Today != nil {
		return p.Today()
	}
	return generic.Today()
}
