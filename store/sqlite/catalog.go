package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// CATALOG (bundle.Catalog interface)
// =============================================================================

// Catalog is the bundle.Catalog view of the Store.
type Catalog struct {
	parent *Store
}

func (s *Store) Catalog() *Catalog {
	return &Catalog{parent: s}
}

// ----- Templates -----

const templateColumns = `code, name, rug_group, rug_category, adl_min, adl_max,
	iadl_min, iadl_max, weekly_cap_cents, priority_weight, tier_label, flags_json, services_json`

func (c *Catalog) Templates(ctx context.Context) ([]bundle.Template, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()

	rows, err := c.parent.db.QueryContext(ctx, "SELECT "+templateColumns+" FROM templates ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var out []bundle.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *Catalog) Template(ctx context.Context, code string) (*bundle.Template, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()

	rows, err := c.parent.db.QueryContext(ctx, "SELECT "+templateColumns+" FROM templates WHERE code = ?", code)
	if err != nil {
		return nil, fmt.Errorf("failed to query template: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("template %s: %w", code, generic.ErrNotFound)
	}
	t, err := scanTemplate(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTemplate inserts or replaces a template by code.
func (c *Catalog) SaveTemplate(ctx context.Context, t bundle.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	flagsJSON, err := json.Marshal(nonNil(t.Flags))
	if err != nil {
		return fmt.Errorf("failed to encode template flags: %w", err)
	}
	servicesJSON, err := json.Marshal(nonNil(t.Services))
	if err != nil {
		return fmt.Errorf("failed to encode template services: %w", err)
	}

	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()

	query := `
		INSERT INTO templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			rug_group = excluded.rug_group,
			rug_category = excluded.rug_category,
			adl_min = excluded.adl_min,
			adl_max = excluded.adl_max,
			iadl_min = excluded.iadl_min,
			iadl_max = excluded.iadl_max,
			weekly_cap_cents = excluded.weekly_cap_cents,
			priority_weight = excluded.priority_weight,
			tier_label = excluded.tier_label,
			flags_json = excluded.flags_json,
			services_json = excluded.services_json
	`
	_, err = c.parent.db.ExecContext(ctx, query,
		t.Code, t.Name, string(t.RUGGroup), string(t.RUGCategory),
		t.ADLRange.Min, t.ADLRange.Max, t.IADLRange.Min, t.IADLRange.Max,
		int64(t.WeeklyCapCents), t.PriorityWeight, t.TierLabel,
		string(flagsJSON), string(servicesJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", t.Code, err)
	}
	return nil
}

func scanTemplate(rows *sql.Rows) (bundle.Template, error) {
	var t bundle.Template
	var group, category, flagsJSON, servicesJSON string
	var capCents int64

	err := rows.Scan(
		&t.Code, &t.Name, &group, &category,
		&t.ADLRange.Min, &t.ADLRange.Max, &t.IADLRange.Min, &t.IADLRange.Max,
		&capCents, &t.PriorityWeight, &t.TierLabel, &flagsJSON, &servicesJSON,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan template: %w", err)
	}
	t.RUGGroup = rug.Group(group)
	t.RUGCategory = rug.Category(category)
	t.WeeklyCapCents = generic.Cents(capCents)
	if err := json.Unmarshal([]byte(flagsJSON), &t.Flags); err != nil {
		return t, fmt.Errorf("failed to decode template flags: %w", err)
	}
	if err := json.Unmarshal([]byte(servicesJSON), &t.Services); err != nil {
		return t, fmt.Errorf("failed to decode template services: %w", err)
	}
	if len(t.Flags) == 0 {
		t.Flags = nil
	}
	return t, nil
}

// ----- Recommendations -----

func (c *Catalog) Recommendations(ctx context.Context, category rug.Category) ([]bundle.Recommendation, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()

	rows, err := c.parent.db.QueryContext(ctx, `
		SELECT id, rug_category, service_type, min_frequency_per_week, duration_minutes,
		       trigger_json, priority_weight, is_required
		FROM recommendations WHERE rug_category = ? ORDER BY id`,
		string(category),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var out []bundle.Recommendation
	for rows.Next() {
		var r bundle.Recommendation
		var cat, triggerJSON string
		var required int
		if err := rows.Scan(&r.ID, &cat, &r.ServiceType, &r.MinFrequencyPerWeek, &r.DurationMinutes,
			&triggerJSON, &r.PriorityWeight, &required); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		r.RUGCategory = rug.Category(cat)
		r.IsRequired = required == 1
		if err := json.Unmarshal([]byte(triggerJSON), &r.Trigger); err != nil {
			return nil, fmt.Errorf("failed to decode trigger for %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *Catalog) SaveRecommendation(ctx context.Context, r bundle.Recommendation) error {
	if r.ID == "" || r.ServiceType == "" {
		return fmt.Errorf("%w: recommendation needs an id and a service type", generic.ErrInvalidCatalog)
	}
	triggerJSON, err := json.Marshal(r.Trigger)
	if err != nil {
		return fmt.Errorf("failed to encode trigger: %w", err)
	}

	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()

	_, err = c.parent.db.ExecContext(ctx, `
		INSERT INTO recommendations
		(id, rug_category, service_type, min_frequency_per_week, duration_minutes, trigger_json, priority_weight, is_required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rug_category = excluded.rug_category,
			service_type = excluded.service_type,
			min_frequency_per_week = excluded.min_frequency_per_week,
			duration_minutes = excluded.duration_minutes,
			trigger_json = excluded.trigger_json,
			priority_weight = excluded.priority_weight,
			is_required = excluded.is_required`,
		r.ID, string(r.RUGCategory), r.ServiceType, r.MinFrequencyPerWeek, r.DurationMinutes,
		string(triggerJSON), r.PriorityWeight, boolInt(r.IsRequired),
	)
	if err != nil {
		return fmt.Errorf("failed to save recommendation %s: %w", r.ID, err)
	}
	return nil
}

// ----- Service types -----

const serviceTypeColumns = "code, name, category, unit_type, default_cost_cents, default_duration_minutes"

func (c *Catalog) ServiceTypes(ctx context.Context) ([]bundle.ServiceType, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()

	rows, err := c.parent.db.QueryContext(ctx, "SELECT "+serviceTypeColumns+" FROM service_types ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to query service types: %w", err)
	}
	defer rows.Close()

	var out []bundle.ServiceType
	for rows.Next() {
		st, err := scanServiceType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (c *Catalog) ServiceType(ctx context.Context, code string) (*bundle.ServiceType, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()

	rows, err := c.parent.db.QueryContext(ctx, "SELECT "+serviceTypeColumns+" FROM service_types WHERE code = ?", code)
	if err != nil {
		return nil, fmt.Errorf("failed to query service type: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("service type %s: %w", code, generic.ErrNotFound)
	}
	st, err := scanServiceType(rows)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Catalog) SaveServiceType(ctx context.Context, st bundle.ServiceType) error {
	if st.Code == "" {
		return fmt.Errorf("%w: service type code is required", generic.ErrInvalidCatalog)
	}
	var defaultCost sql.NullInt64
	if st.DefaultCostCents != nil {
		defaultCost = sql.NullInt64{Int64: int64(*st.DefaultCostCents), Valid: true}
	}

	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()

	_, err := c.parent.db.ExecContext(ctx, `
		INSERT INTO service_types (`+serviceTypeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			unit_type = excluded.unit_type,
			default_cost_cents = excluded.default_cost_cents,
			default_duration_minutes = excluded.default_duration_minutes`,
		st.Code, st.Name, st.Category, string(st.UnitType), defaultCost, st.DefaultDurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to save service type %s: %w", st.Code, err)
	}
	return nil
}

func scanServiceType(rows *sql.Rows) (bundle.ServiceType, error) {
	var st bundle.ServiceType
	var unit string
	var defaultCost sql.NullInt64
	if err := rows.Scan(&st.Code, &st.Name, &st.Category, &unit, &defaultCost, &st.DefaultDurationMinutes); err != nil {
		return st, fmt.Errorf("failed to scan service type: %w", err)
	}
	st.UnitType = generic.UnitType(unit)
	if defaultCost.Valid {
		cents := generic.Cents(defaultCost.Int64)
		st.DefaultCostCents = &cents
	}
	return st, nil
}

// nonNil keeps empty slices encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ bundle.Catalog = (*Catalog)(nil)
