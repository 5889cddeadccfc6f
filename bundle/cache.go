package bundle

import (
	"context"
	"time"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/metrics"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// CACHED CATALOG - Short-TTL reads, invalidated on every write
// =============================================================================

const allTemplatesKey = "*"

// CachedCatalog serves template and recommendation reads from a TTL cache.
// Writes go to the underlying catalog first and then drop the affected
// cache entries before returning.
type CachedCatalog struct {
	Catalog

	templates       *generic.Cache[string, []Template]
	recommendations *generic.Cache[rug.Category, []Recommendation]
	metrics         *metrics.Metrics
}

// NewCachedCatalog wraps c. A ttl of zero disables caching.
func NewCachedCatalog(c Catalog, ttl time.Duration, m *metrics.Metrics) *CachedCatalog {
	return &CachedCatalog{
		Catalog:         c,
		templates:       generic.NewCache[string, []Template](ttl),
		recommendations: generic.NewCache[rug.Category, []Recommendation](ttl),
		metrics:         m,
	}
}

func (c *CachedCatalog) Templates(ctx context.Context) ([]Template, error) {
	if ts, ok := c.templates.Get(allTemplatesKey); ok {
		c.metrics.ObserveCache("templates", true)
		return ts, nil
	}
	c.metrics.ObserveCache("templates", false)

	ts, err := c.Catalog.Templates(ctx)
	if err != nil {
		return nil, err
	}
	c.templates.Set(allTemplatesKey, ts)
	return ts, nil
}

func (c *CachedCatalog) Template(ctx context.Context, code string) (*Template, error) {
	if ts, ok := c.templates.Get(code); ok && len(ts) == 1 {
		c.metrics.ObserveCache("templates", true)
		t := ts[0]
		return &t, nil
	}
	c.metrics.ObserveCache("templates", false)

	t, err := c.Catalog.Template(ctx, code)
	if err != nil {
		return nil, err
	}
	c.templates.Set(code, []Template{*t})
	return t, nil
}

func (c *CachedCatalog) SaveTemplate(ctx context.Context, t Template) error {
	if err := c.Catalog.SaveTemplate(ctx, t); err != nil {
		return err
	}
	c.templates.Invalidate(allTemplatesKey)
	c.templates.Invalidate(t.Code)
	return nil
}

func (c *CachedCatalog) Recommendations(ctx context.Context, category rug.Category) ([]Recommendation, error) {
	if rs, ok := c.recommendations.Get(category); ok {
		c.metrics.ObserveCache("recommendations", true)
		return rs, nil
	}
	c.metrics.ObserveCache("recommendations", false)

	rs, err := c.Catalog.Recommendations(ctx, category)
	if err != nil {
		return nil, err
	}
	c.recommendations.Set(category, rs)
	return rs, nil
}

func (c *CachedCatalog) SaveRecommendation(ctx context.Context, r Recommendation) error {
	if err := c.Catalog.SaveRecommendation(ctx, r); err != nil {
		return err
	}
	// the ID may have moved from another category
	c.recommendations.Clear()
	return nil
}
