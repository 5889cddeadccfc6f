/*
Package factory loads the service catalog from YAML or JSON.

PURPOSE:
  Service types, bundle templates, recommendations and starting rates are
  configuration, not code. The factory parses a catalog document,
  validates cross references, and seeds the stores.

YAML SCHEMA:
  service_types:
    - code: psw
      name: Personal Support
      category: personal_support
      unit_type: hour
      default_cost_cents: 3400
  templates:
    - code: PB0-STD
      rug_group: PB0
      rug_category: reduced_physical_function
      adl_range: {min: 6, max: 8}
      iadl_range: {min: 0, max: 3}
      weekly_cap_cents: 180000
      priority_weight: 50
      services:
        - {service_type: psw, frequency_per_week: 7, duration_minutes: 60, required: true}
  recommendations:
    - id: pf-psw
      rug_category: reduced_physical_function
      service_type: psw
      min_frequency_per_week: 10
      trigger: {adl_min: 9}
      priority_weight: 70
  rates:
    - {service_type: psw, unit_type: hour, rate_cents: 3500, effective_from: "2024-01-01"}

  JSON documents with the same keys are accepted; JSON is valid YAML.

VALIDATION:
  - Codes are unique per section
  - Templates and recommendations reference known service types
  - RUG groups and categories exist in the hierarchy
  - Unit types are known; rate windows are well formed

SEE ALSO:
  - defaults.go: Built-in catalog used when no file is configured
  - bundle/types.go: Template and Recommendation definitions
*/
package factory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// RateDef is a rate record as written in a catalog file.
type RateDef struct {
	ServiceType    string           `yaml:"service_type" json:"service_type"`
	OrganizationID *string          `yaml:"organization_id,omitempty" json:"organization_id,omitempty"`
	UnitType       generic.UnitType `yaml:"unit_type" json:"unit_type"`
	RateCents      int64            `yaml:"rate_cents" json:"rate_cents"`
	EffectiveFrom  string           `yaml:"effective_from" json:"effective_from"`
	EffectiveTo    string           `yaml:"effective_to,omitempty" json:"effective_to,omitempty"`
}

// Record converts the definition to a rate record.
func (d RateDef) Record() (billing.RateRecord, error) {
	from, err := generic.ParseDate(d.EffectiveFrom)
	if err != nil {
		return billing.RateRecord{}, fmt.Errorf("%w: rate %s effective_from: %v", generic.ErrInvalidCatalog, d.ServiceType, err)
	}
	r := billing.RateRecord{
		ServiceType:    d.ServiceType,
		OrganizationID: d.OrganizationID,
		UnitType:       d.UnitType,
		RateCents:      generic.Cents(d.RateCents),
		EffectiveFrom:  from,
	}
	if d.EffectiveTo != "" {
		to, err := generic.ParseDate(d.EffectiveTo)
		if err != nil {
			return billing.RateRecord{}, fmt.Errorf("%w: rate %s effective_to: %v", generic.ErrInvalidCatalog, d.ServiceType, err)
		}
		r.EffectiveTo = &to
	}
	return r, nil
}

// Catalog is a parsed catalog document.
type Catalog struct {
	ServiceTypes    []bundle.ServiceType    `yaml:"service_types" json:"service_types"`
	Templates       []bundle.Template       `yaml:"templates" json:"templates"`
	Recommendations []bundle.Recommendation `yaml:"recommendations" json:"recommendations"`
	Rates           []RateDef               `yaml:"rates" json:"rates"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", generic.ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseFile reads and parses a catalog file.
func ParseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Load returns the catalog at path, or the built-in default when path is
// empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return ParseFile(path)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", generic.ErrInvalidCatalog, fmt.Sprintf(format, args...))
}

// Validate checks every section and the references between them. All
// problems are reported together.
func (c *Catalog) Validate() error {
	var errs []error

	serviceTypes := make(map[string]bool, len(c.ServiceTypes))
	for _, st := range c.ServiceTypes {
		switch {
		case st.Code == "":
			errs = append(errs, invalid("service type without code"))
		case serviceTypes[st.Code]:
			errs = append(errs, invalid("duplicate service type %s", st.Code))
		case !st.UnitType.IsKnown():
			errs = append(errs, invalid("service type %s has unknown unit type %q", st.Code, st.UnitType))
		}
		serviceTypes[st.Code] = true
	}

	templates := make(map[string]bool, len(c.Templates))
	for _, t := range c.Templates {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
		}
		if templates[t.Code] {
			errs = append(errs, invalid("duplicate template %s", t.Code))
		}
		templates[t.Code] = true
		if t.RUGGroup != "" && !t.RUGGroup.IsKnown() {
			errs = append(errs, invalid("template %s has unknown RUG group %s", t.Code, t.RUGGroup))
		}
		if !t.RUGCategory.IsKnown() {
			errs = append(errs, invalid("template %s has unknown category %q", t.Code, t.RUGCategory))
		}
		for _, s := range t.Services {
			if !serviceTypes[s.ServiceType] {
				errs = append(errs, invalid("template %s references unknown service type %s", t.Code, s.ServiceType))
			}
		}
	}

	recommendations := make(map[string]bool, len(c.Recommendations))
	for _, r := range c.Recommendations {
		switch {
		case r.ID == "":
			errs = append(errs, invalid("recommendation without id"))
		case recommendations[r.ID]:
			errs = append(errs, invalid("duplicate recommendation %s", r.ID))
		}
		recommendations[r.ID] = true
		if !r.RUGCategory.IsKnown() {
			errs = append(errs, invalid("recommendation %s has unknown category %q", r.ID, r.RUGCategory))
		}
		if !serviceTypes[r.ServiceType] {
			errs = append(errs, invalid("recommendation %s references unknown service type %s", r.ID, r.ServiceType))
		}
	}

	for _, d := range c.Rates {
		rec, err := d.Record()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !serviceTypes[d.ServiceType] {
			errs = append(errs, invalid("rate references unknown service type %s", d.ServiceType))
		}
		if err := rec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", generic.ErrInvalidCatalog, err))
		}
	}

	return errors.Join(errs...)
}

// =============================================================================
// SEEDING
// =============================================================================

// Seed writes the catalog into the stores. Rates are created in file order
// so later records close earlier ones. rates may be nil to skip them.
func (c *Catalog) Seed(ctx context.Context, store bundle.Catalog, rates billing.Rates) error {
	for _, st := range c.ServiceTypes {
		if err := store.SaveServiceType(ctx, st); err != nil {
			return fmt.Errorf("seed service type %s: %w", st.Code, err)
		}
	}
	for _, t := range c.Templates {
		if err := store.SaveTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.Code, err)
		}
	}
	for _, r := range c.Recommendations {
		if err := store.SaveRecommendation(ctx, r); err != nil {
			return fmt.Errorf("seed recommendation %s: %w", r.ID, err)
		}
	}
	if rates == nil {
		return nil
	}
	for _, d := range c.Rates {
		rec, err := d.Record()
		if err != nil {
			return err
		}
		if _, err := rates.CreateRate(ctx, rec); err != nil {
			return fmt.Errorf("seed rate %s: %w", d.ServiceType, err)
		}
	}
	return nil
}
