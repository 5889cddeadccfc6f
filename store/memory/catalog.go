package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// CATALOG - bundle.Catalog
// =============================================================================

type Catalog struct {
	mu              sync.RWMutex
	templates       map[string]bundle.Template
	recommendations map[string]bundle.Recommendation
	serviceTypes    map[string]bundle.ServiceType
}

func NewCatalog() *Catalog {
	return &Catalog{
		templates:       make(map[string]bundle.Template),
		recommendations: make(map[string]bundle.Recommendation),
		serviceTypes:    make(map[string]bundle.ServiceType),
	}
}

func (m *Catalog) Templates(_ context.Context) ([]bundle.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bundle.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Catalog) Template(_ context.Context, code string) (*bundle.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[code]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", code, generic.ErrNotFound)
	}
	return &t, nil
}

// SaveTemplate inserts or replaces a template by code.
func (m *Catalog) SaveTemplate(_ context.Context, t bundle.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Services = append([]bundle.TemplateService(nil), t.Services...)
	m.templates[t.Code] = t
	return nil
}

func (m *Catalog) Recommendations(_ context.Context, category rug.Category) ([]bundle.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bundle.Recommendation
	for _, r := range m.recommendations {
		if r.RUGCategory == category {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Catalog) SaveRecommendation(_ context.Context, r bundle.Recommendation) error {
	if r.ID == "" || r.ServiceType == "" {
		return fmt.Errorf("%w: recommendation needs an id and a service type", generic.ErrInvalidCatalog)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recommendations[r.ID] = r
	return nil
}

func (m *Catalog) ServiceTypes(_ context.Context) ([]bundle.ServiceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bundle.ServiceType, 0, len(m.serviceTypes))
	for _, st := range m.serviceTypes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Catalog) ServiceType(_ context.Context, code string) (*bundle.ServiceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.serviceTypes[code]
	if !ok {
		return nil, fmt.Errorf("service type %s: %w", code, generic.ErrNotFound)
	}
	return &st, nil
}

func (m *Catalog) SaveServiceType(_ context.Context, st bundle.ServiceType) error {
	if st.Code == "" {
		return fmt.Errorf("%w: service type code is required", generic.ErrInvalidCatalog)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serviceTypes[st.Code] = st
	return nil
}
