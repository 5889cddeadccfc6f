package billing

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/metrics"
)

// =============================================================================
// RESOLVER - Rate fallback chain
// =============================================================================

// RateSource names the tier that produced a rate.
type RateSource string

const (
	SourceOrganization       RateSource = "organization"
	SourceSystemDefault      RateSource = "system_default"
	SourceTemplateOverride   RateSource = "template_override"
	SourceServiceTypeDefault RateSource = "service_type_default"
	SourceCategoryDefault    RateSource = "category_default"
)

// CategoryDefaultCents is the last-resort rate table keyed by service
// category. Unknown categories use FallbackRateCents.
var CategoryDefaultCents = map[string]generic.Cents{
	"nursing":           9500,
	"personal_support":  3500,
	"therapy":           12000,
	"homemaking":        3000,
	"day_program":       7500,
	"respite":           4000,
	"transportation":    4500,
	"meals":             1200,
	"remote_monitoring": 15000,
	"equipment":         20000,
}

const FallbackRateCents generic.Cents = 5000

// ServiceRef is what the resolver needs to know about one service.
type ServiceRef struct {
	ServiceType       string
	Category          string
	UnitType          generic.UnitType
	CostOverrideCents *generic.Cents
	DefaultCostCents  *generic.Cents
}

// ResolvedRate is a rate with its provenance. UnitType comes from the rate
// record when one was found.
type ResolvedRate struct {
	RateCents generic.Cents    `json:"rate_cents"`
	UnitType  generic.UnitType `json:"unit_type"`
	Source    RateSource       `json:"source"`
	RecordID  string           `json:"record_id,omitempty"`
}

type Resolver struct {
	rates   Rates
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewResolver(rates Rates, log zerolog.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{rates: rates, log: log, metrics: m}
}

// Resolve always returns a rate. Store errors are logged and fall through
// to the next tier.
func (r *Resolver) Resolve(ctx context.Context, ref ServiceRef, orgID *string, asOf generic.Date) ResolvedRate {
	resolved := r.resolve(ctx, ref, orgID, asOf)
	if resolved.UnitType == "" {
		resolved.UnitType = ref.UnitType
	}
	r.metrics.ObserveRateSource(string(resolved.Source))
	return resolved
}

func (r *Resolver) resolve(ctx context.Context, ref ServiceRef, orgID *string, asOf generic.Date) ResolvedRate {
	if orgID != nil && *orgID != "" {
		if rec := r.lookup(ctx, ref.ServiceType, orgID, asOf); rec != nil {
			return fromRecord(rec, SourceOrganization)
		}
	}
	if rec := r.lookup(ctx, ref.ServiceType, nil, asOf); rec != nil {
		return fromRecord(rec, SourceSystemDefault)
	}
	if ref.CostOverrideCents != nil {
		return ResolvedRate{RateCents: *ref.CostOverrideCents, Source: SourceTemplateOverride}
	}
	if ref.DefaultCostCents != nil {
		return ResolvedRate{RateCents: *ref.DefaultCostCents, Source: SourceServiceTypeDefault}
	}
	rate, ok := CategoryDefaultCents[ref.Category]
	if !ok {
		rate = FallbackRateCents
	}
	return ResolvedRate{RateCents: rate, Source: SourceCategoryDefault}
}

func (r *Resolver) lookup(ctx context.Context, serviceType string, orgID *string, asOf generic.Date) *RateRecord {
	if r.rates == nil {
		return nil
	}
	rec, err := r.rates.EffectiveRate(ctx, serviceType, orgID, asOf)
	if err != nil {
		r.log.Warn().Err(err).
			Str("service_type", serviceType).
			Str("organization", orgLabel(orgID)).
			Msg("rate lookup failed, falling back")
		return nil
	}
	return rec
}

func fromRecord(rec *RateRecord, source RateSource) ResolvedRate {
	return ResolvedRate{
		RateCents: rec.RateCents,
		UnitType:  rec.UnitType,
		Source:    source,
		RecordID:  rec.ID,
	}
}
