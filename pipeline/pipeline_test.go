package pipeline_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/homecare-engine/assessment"
	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/factory"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/metrics"
	"github.com/warp/homecare-engine/pipeline"
	"github.com/warp/homecare-engine/rug"
	"github.com/warp/homecare-engine/store/memory"
)

var asOf = generic.MustParseDate("2025-03-01")

type fixture struct {
	pipeline        *pipeline.Pipeline
	rates           billing.Rates
	classifications *memory.Classifications
}

func newFixture(t *testing.T, seed bool) fixture {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()
	m := metrics.New(nil)

	catalog := memory.NewCatalog()
	rates := billing.NewRateRepository(memory.NewRates(), log)
	if seed {
		cat, err := factory.Default()
		require.NoError(t, err)
		require.NoError(t, cat.Seed(ctx, catalog, rates))
	}

	classifications := memory.NewClassifications()
	return fixture{
		pipeline: &pipeline.Pipeline{
			Classifications: rug.NewService(classifications, rug.WithMetrics(m)),
			Matcher:         bundle.NewMatcher(catalog),
			Planner:         bundle.NewPlanner(catalog, catalog, log),
			Engine:          billing.NewEngine(billing.NewResolver(rates, log, m), log),
			Metrics:         m,
			Log:             log,
			Today:           func() generic.Date { return asOf },
		},
		rates:           rates,
		classifications: classifications,
	}
}

// ADL sum 6, no clinical flags: PB0.
func physicalFunction(patientID string) *rug.Assessment {
	return &rug.Assessment{
		ID:        "a-" + patientID,
		PatientID: patientID,
		Items: assessment.ItemSet{
			assessment.ItemBedMobility: 1,
			assessment.ItemTransfer:    1,
			assessment.ItemToiletUse:   0,
			assessment.ItemEating:      0,
		},
	}
}

func TestRun_PhysicalFunctionWithinCap(t *testing.T) {
	// GIVEN: the default catalog and rates
	f := newFixture(t, true)

	// WHEN: running a PB0 assessment
	res, err := f.pipeline.Run(context.Background(), pipeline.Request{Assessment: physicalFunction("p1")})
	require.NoError(t, err)

	// THEN: every stage produced a value and the plan fits the cap
	assert.Equal(t, pipeline.StatusClassified, res.Status)
	require.NotNil(t, res.Summary)
	require.NotNil(t, res.Classification)
	assert.Equal(t, rug.Group("PB0"), res.Classification.RUGGroup)
	assert.Equal(t, 6, res.Classification.ADLSum)

	require.NotNil(t, res.Template)
	assert.Equal(t, "PB0-STD", res.Template.Code)

	require.NotNil(t, res.Evaluation)
	assert.Equal(t, billing.StatusOK, res.Evaluation.Status)
	// psw 7h x 3500 + homemaking 2h x 3000 + meals 5 x 1200
	assert.Equal(t, generic.Cents(36500), res.Evaluation.TotalWeeklyCostCents)
	assert.Equal(t, generic.Cents(60000), res.Evaluation.WeeklyCapCents)
	assert.Equal(t, "60.8", res.Evaluation.Rationale.UtilizationPercent.String())
	assert.Empty(t, res.Reductions)
	assert.Empty(t, res.MissingRequired)

	for _, e := range res.Evaluation.Plan.Entries {
		assert.Equal(t, string(billing.SourceSystemDefault), e.RateSource, e.ServiceType)
	}
}

func TestRun_OrganizationRatePushesOverCap(t *testing.T) {
	// GIVEN: an organization paying 9000 per PSW hour
	f := newFixture(t, true)
	ctx := context.Background()
	org := generic.StringPtr("org-1")
	_, err := f.rates.CreateRate(ctx, billing.RateRecord{
		ServiceType:    "psw",
		OrganizationID: org,
		UnitType:       generic.UnitHour,
		RateCents:      9000,
		EffectiveFrom:  generic.MustParseDate("2024-01-01"),
	})
	require.NoError(t, err)

	// WHEN
	res, err := f.pipeline.Run(ctx, pipeline.Request{
		Assessment:     physicalFunction("p1"),
		OrganizationID: org,
		AsOf:           asOf,
	})
	require.NoError(t, err)

	// THEN: 63000 + 6000 + 6000 is more than 110% of 60000
	require.NotNil(t, res.Evaluation)
	assert.Equal(t, generic.Cents(75000), res.Evaluation.TotalWeeklyCostCents)
	assert.Equal(t, billing.StatusOverCap, res.Evaluation.Status)

	// Both optional services are proposed; the required PSW entry is not.
	require.Len(t, res.Reductions, 2)
	assert.Equal(t, "homemaking", res.Reductions[0].ServiceType)
	assert.Equal(t, "meals", res.Reductions[1].ServiceType)

	psw, ok := res.Evaluation.Plan.Entry("psw")
	require.True(t, ok)
	assert.Equal(t, string(billing.SourceOrganization), psw.RateSource)
}

func TestRun_ClinicallyComplexAddsRecommendation(t *testing.T) {
	f := newFixture(t, true)
	a := &rug.Assessment{
		PatientID: "p2",
		Items: assessment.ItemSet{
			assessment.ItemBedMobility: 3,
			assessment.ItemTransfer:    2,
			assessment.ItemToiletUse:   1,
			assessment.ItemEating:      0,
		},
		CHESS: generic.IntPtr(3),
	}

	res, err := f.pipeline.Run(context.Background(), pipeline.Request{Assessment: a})
	require.NoError(t, err)

	assert.Equal(t, rug.Group("CB0"), res.Classification.RUGGroup)
	assert.Equal(t, "CB0-STD", res.Template.Code)

	monitoring, ok := res.Evaluation.Plan.Entry("monitoring")
	require.True(t, ok)
	assert.Equal(t, bundle.SourceRecommendation, monitoring.Source)
	assert.True(t, monitoring.IsRequired)
	// monthly rate over four weeks
	assert.Equal(t, generic.Cents(3750), monitoring.WeeklyCostCents)

	// nursing 2 x 9500 + psw 24500 + homemaking 6000 + monitoring 3750
	assert.Equal(t, generic.Cents(53250), res.Evaluation.TotalWeeklyCostCents)
	assert.Equal(t, billing.StatusOK, res.Evaluation.Status)
}

func TestRun_NoAssessment(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.pipeline.Run(context.Background(), pipeline.Request{})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNoClassification, res.Status)
	assert.Nil(t, res.Classification)

	res, err = f.pipeline.Run(context.Background(), pipeline.Request{Assessment: &rug.Assessment{PatientID: "p1"}})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNoClassification, res.Status)
}

func TestRun_NoTemplate(t *testing.T) {
	// GIVEN: an empty catalog
	f := newFixture(t, false)

	res, err := f.pipeline.Run(context.Background(), pipeline.Request{Assessment: physicalFunction("p1")})
	require.NoError(t, err)

	// THEN: the classification is still recorded
	assert.Equal(t, pipeline.StatusNoTemplate, res.Status)
	require.NotNil(t, res.Classification)
	assert.Nil(t, res.Template)
	assert.Nil(t, res.Evaluation)

	current, err := f.classifications.Current(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, res.Classification.ID, current.ID)
}

func TestRun_ReclassificationSupersedes(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.pipeline.Run(ctx, pipeline.Request{Assessment: physicalFunction("p1")})
	require.NoError(t, err)
	second, err := f.pipeline.Run(ctx, pipeline.Request{Assessment: physicalFunction("p1")})
	require.NoError(t, err)

	history, err := f.classifications.History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.Classification.ID, history[0].ID)
	assert.True(t, history[0].IsCurrent)
	assert.Equal(t, first.Classification.ID, history[1].ID)
	assert.False(t, history[1].IsCurrent)
}

func TestEvaluateClassification_CategoryFallback(t *testing.T) {
	// GIVEN: a catalog with no rates and no service type defaults
	ctx := context.Background()
	f := newFixture(t, false)
	catalog := memory.NewCatalog()
	require.NoError(t, catalog.SaveServiceType(ctx, bundle.ServiceType{Code: "psw", UnitType: generic.UnitHour}))
	require.NoError(t, catalog.SaveTemplate(ctx, bundle.Template{
		Code:           "PB0-X",
		RUGGroup:       "PB0",
		RUGCategory:    rug.CategoryPhysicalFunction,
		ADLRange:       generic.IntRange{Min: 4, Max: 18},
		IADLRange:      generic.IntRange{Min: 0, Max: 3},
		WeeklyCapCents: 100000,
		Services: []bundle.TemplateService{
			{ServiceType: "psw", DefaultFrequencyPerWeek: 7, IsRequired: true},
		},
	}))
	f.pipeline.Matcher = bundle.NewMatcher(catalog)
	f.pipeline.Planner = bundle.NewPlanner(catalog, catalog, zerolog.Nop())

	c := &rug.Classification{
		ID:          "c1",
		PatientID:   "p1",
		RUGGroup:    "PB0",
		RUGCategory: rug.CategoryPhysicalFunction,
		ADLSum:      6,
		Flags:       generic.NewFlags(),
	}

	// WHEN
	res, err := f.pipeline.EvaluateClassification(ctx, c, nil, asOf)
	require.NoError(t, err)

	// THEN: the last tier prices the entry
	assert.Equal(t, pipeline.StatusClassified, res.Status)
	psw, ok := res.Evaluation.Plan.Entry("psw")
	require.True(t, ok)
	assert.Equal(t, string(billing.SourceCategoryDefault), psw.RateSource)
	assert.Equal(t, billing.FallbackRateCents, psw.RateCents)
	assert.Empty(t, res.MissingRequired)
}

func TestEvaluateClassification_RecordsEvaluationMetrics(t *testing.T) {
	// GIVEN: a patient classified outside of Run
	ctx := context.Background()
	f := newFixture(t, true)
	c, err := f.pipeline.Classifications.Classify(ctx, physicalFunction("p1"))
	require.NoError(t, err)

	// WHEN: evaluating the stored classification, then running the full pipeline
	res, err := f.pipeline.EvaluateClassification(ctx, &c, nil, asOf)
	require.NoError(t, err)
	require.NotNil(t, res.Evaluation)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.pipeline.Metrics.Evaluations.WithLabelValues(string(billing.StatusOK))))

	_, err = f.pipeline.Run(ctx, pipeline.Request{Assessment: physicalFunction("p1")})
	require.NoError(t, err)

	// THEN: both paths are counted once
	assert.Equal(t, 2.0, testutil.ToFloat64(f.pipeline.Metrics.Evaluations.WithLabelValues(string(billing.StatusOK))))
}
