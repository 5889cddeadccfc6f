package factory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/factory"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
	"github.com/warp/homecare-engine/store/memory"
)

func TestDefault_IsValid(t *testing.T) {
	cat, err := factory.Default()
	require.NoError(t, err)

	assert.Len(t, cat.ServiceTypes, 10)
	assert.Len(t, cat.Rates, 10)

	// Every category has at least one template.
	covered := map[rug.Category]bool{}
	for _, tpl := range cat.Templates {
		covered[tpl.RUGCategory] = true
	}
	for _, c := range rug.Categories {
		assert.True(t, covered[c], "no template for %s", c)
	}
}

func TestParse_JSONDocument(t *testing.T) {
	doc := `{
    "service_types": [{"code": "psw", "name": "PSW", "category": "personal_support", "unit_type": "hour"}],
    "templates": [{
      "code": "PA-STD", "rug_group": "PA1", "rug_category": "reduced_physical_function",
      "adl_range": {"min": 4, "max": 5}, "iadl_range": {"min": 0, "max": 3},
      "weekly_cap_cents": 40000, "priority_weight": 40,
      "services": [{"service_type": "psw", "frequency_per_week": 3, "required": true}]
    }],
    "rates": [{"service_type": "psw", "unit_type": "hour", "rate_cents": 3500, "effective_from": "2024-01-01"}]
}`

	cat, err := factory.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cat.Templates, 1)
	assert.Equal(t, rug.Group("PA1"), cat.Templates[0].RUGGroup)
	assert.Equal(t, generic.IntRange{Min: 4, Max: 5}, cat.Templates[0].ADLRange)
	assert.True(t, cat.Templates[0].Services[0].IsRequired)
	assert.Equal(t, 3, cat.Templates[0].Services[0].DefaultFrequencyPerWeek)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	doc := `
service_types:
  - {code: psw, unit_type: hour}
  - {code: psw, unit_type: hour}
  - {code: odd, unit_type: fortnight}
templates:
  - code: T1
    rug_group: ZZ9
    rug_category: reduced_physical_function
    adl_range: {min: 4, max: 18}
    iadl_range: {min: 0, max: 3}
    services:
      - {service_type: missing, frequency_per_week: 1}
recommendations:
  - {id: r1, rug_category: nowhere, service_type: psw}
rates:
  - {service_type: psw, unit_type: hour, rate_cents: 100, effective_from: "not-a-date"}
`
	_, err := factory.Parse([]byte(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidCatalog)

	msg := err.Error()
	for _, want := range []string{
		"duplicate service type psw",
		"unknown unit type",
		"unknown RUG group ZZ9",
		"unknown service type missing",
		"recommendation r1 has unknown category",
		"effective_from",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_InvertedRange(t *testing.T) {
	doc := `
service_types: [{code: psw, unit_type: hour}]
templates:
  - {code: T1, rug_category: rehabilitation, adl_range: {min: 10, max: 4}, iadl_range: {min: 0, max: 3}}
`
	_, err := factory.Parse([]byte(doc))
	assert.ErrorIs(t, err, generic.ErrInvalidCatalog)
}

func TestParse_Malformed(t *testing.T) {
	_, err := factory.Parse([]byte("templates: [unclosed"))
	assert.ErrorIs(t, err, generic.ErrInvalidCatalog)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, factory.DefaultCatalogYAML(), 0o600))

	cat, err := factory.ParseFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Templates)

	_, err = factory.ParseFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	cat, err := factory.Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Recommendations)
}

func TestSeed(t *testing.T) {
	// GIVEN: the default catalog and empty stores
	ctx := context.Background()
	cat, err := factory.Default()
	require.NoError(t, err)

	store := memory.NewCatalog()
	rates := billing.NewRateRepository(memory.NewRates(), zerolog.Nop())

	// WHEN: seeding
	require.NoError(t, cat.Seed(ctx, store, rates))

	// THEN: templates, recommendations and rates are readable
	tpl, err := store.Template(ctx, "PB0-STD")
	require.NoError(t, err)
	assert.Equal(t, generic.Cents(60000), tpl.WeeklyCapCents)

	recs, err := store.Recommendations(ctx, rug.CategoryClinicallyComplex)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	rate, err := rates.EffectiveRate(ctx, "psw", nil, generic.MustParseDate("2025-03-01"))
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, generic.Cents(3500), rate.RateCents)
}

func TestSeed_WithoutRates(t *testing.T) {
	cat, err := factory.Default()
	require.NoError(t, err)
	assert.NoError(t, cat.Seed(context.Background(), memory.NewCatalog(), nil))
}
