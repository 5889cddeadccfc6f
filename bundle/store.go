package bundle

import (
	"context"

	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// STORES - Catalog read access
// =============================================================================

// TemplateStore reads and writes templates.
type TemplateStore interface {
	Templates(ctx context.Context) ([]Template, error)

	// Template returns a template by code, or generic.ErrNotFound.
	Template(ctx context.Context, code string) (*Template, error)

	SaveTemplate(ctx context.Context, t Template) error
}

// RecommendationStore reads recommendations keyed by RUG category.
type RecommendationStore interface {
	Recommendations(ctx context.Context, category rug.Category) ([]Recommendation, error)
	SaveRecommendation(ctx context.Context, r Recommendation) error
}

// ServiceTypeStore reads the service type catalog.
type ServiceTypeStore interface {
	ServiceTypes(ctx context.Context) ([]ServiceType, error)

	// ServiceType returns a service type by code, or generic.ErrNotFound.
	ServiceType(ctx context.Context, code string) (*ServiceType, error)

	SaveServiceType(ctx context.Context, st ServiceType) error
}

// Catalog is everything the matcher and planner read.
type Catalog interface {
	TemplateStore
	RecommendationStore
	ServiceTypeStore
}
