package billing

import (
	"context"
	"time"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/metrics"
)

// =============================================================================
// CACHED RATES - Short-TTL effective-rate reads
// =============================================================================

type rateCacheKey struct {
	serviceType string
	org         string
	isDefault   bool
	asOf        string
}

func newRateCacheKey(serviceType string, orgID *string, asOf generic.Date) rateCacheKey {
	k := rateCacheKey{serviceType: serviceType, isDefault: orgID == nil, asOf: asOf.String()}
	if orgID != nil {
		k.org = *orgID
	}
	return k
}

// CachedRateRepository caches EffectiveRate results, including misses.
// CreateRate drops every cached date for the written key before returning.
type CachedRateRepository struct {
	next    Rates
	cache   *generic.Cache[rateCacheKey, *RateRecord]
	metrics *metrics.Metrics
}

func NewCachedRateRepository(next Rates, ttl time.Duration, m *metrics.Metrics) *CachedRateRepository {
	return &CachedRateRepository{
		next:    next,
		cache:   generic.NewCache[rateCacheKey, *RateRecord](ttl),
		metrics: m,
	}
}

func copyRate(r *RateRecord) *RateRecord {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

func (c *CachedRateRepository) EffectiveRate(ctx context.Context, serviceType string, orgID *string, asOf generic.Date) (*RateRecord, error) {
	key := newRateCacheKey(serviceType, orgID, asOf)
	if r, ok := c.cache.Get(key); ok {
		c.metrics.ObserveCache("rates", true)
		return copyRate(r), nil
	}
	c.metrics.ObserveCache("rates", false)

	r, err := c.next.EffectiveRate(ctx, serviceType, orgID, asOf)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, copyRate(r))
	return r, nil
}

func (c *CachedRateRepository) CreateRate(ctx context.Context, r RateRecord) (RateRecord, error) {
	created, err := c.next.CreateRate(ctx, r)
	if err != nil {
		return RateRecord{}, err
	}
	written := newRateCacheKey(r.ServiceType, r.OrganizationID, generic.Date{})
	c.cache.InvalidateWhere(func(k rateCacheKey) bool {
		return k.serviceType == written.serviceType && k.isDefault == written.isDefault && k.org == written.org
	})
	return created, nil
}
