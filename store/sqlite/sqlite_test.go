package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/factory"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
	"github.com/warp/homecare-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func classification(id, patientID string, at time.Time) rug.Classification {
	return rug.Classification{
		ID:           id,
		PatientID:    patientID,
		RUGGroup:     "PB0",
		RUGCategory:  rug.CategoryPhysicalFunction,
		ADLSum:       7,
		Flags:        generic.NewFlags(rug.FlagHighADL),
		NumericRank:  rug.NumericRank("PB0"),
		MatchedRule:  "reduced_physical_function",
		IsCurrent:    true,
		ClassifiedAt: at,
	}
}

// =============================================================================
// CLASSIFICATIONS
// =============================================================================

func TestClassifications_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t).Classifications()
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, classification("c1", "p1", at)))

	got, err := store.Current(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, rug.Group("PB0"), got.RUGGroup)
	assert.True(t, got.Flags.Has(rug.FlagHighADL))
	assert.True(t, got.ClassifiedAt.Equal(at))
	assert.Nil(t, got.SupersededAt)
}

func TestClassifications_CurrentNotFound(t *testing.T) {
	_, err := newStore(t).Classifications().Current(context.Background(), "nobody")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestClassifications_PartialUniqueIndex(t *testing.T) {
	// GIVEN: a current classification
	ctx := context.Background()
	store := newStore(t).Classifications()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, classification("c1", "p1", at)))

	// WHEN: inserting a second current row without superseding
	err := store.Insert(ctx, classification("c2", "p1", at.Add(time.Hour)))

	// THEN: the index rejects it
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	// Superseded rows are not constrained.
	old := classification("c0", "p1", at.Add(-time.Hour))
	old.IsCurrent = false
	assert.NoError(t, store.Insert(ctx, old))
}

func TestClassifications_SupersedeInTx(t *testing.T) {
	ctx := context.Background()
	store := newStore(t).Classifications()
	first := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	require.NoError(t, store.Insert(ctx, classification("c1", "p1", first)))

	err := store.WithTx(ctx, func(tx rug.Store) error {
		if err := tx.Supersede(ctx, "p1", second); err != nil {
			return err
		}
		return tx.Insert(ctx, classification("c2", "p1", second))
	})
	require.NoError(t, err)

	history, err := store.History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "c2", history[0].ID)
	assert.True(t, history[0].IsCurrent)
	assert.Equal(t, "c1", history[1].ID)
	assert.False(t, history[1].IsCurrent)
	require.NotNil(t, history[1].SupersededAt)
	assert.True(t, history[1].SupersededAt.Equal(second))
}

func TestClassifications_TxRollback(t *testing.T) {
	ctx := context.Background()
	store := newStore(t).Classifications()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, classification("c1", "p1", at)))

	err := store.WithTx(ctx, func(tx rug.Store) error {
		require.NoError(t, tx.Supersede(ctx, "p1", at))
		return generic.ErrInvalidInput
	})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	current, err := store.Current(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "c1", current.ID, "supersede rolled back")
}

func TestClassifications_WithService(t *testing.T) {
	ctx := context.Background()
	svc := rug.NewService(newStore(t).Classifications())

	a := &rug.Assessment{PatientID: "p1", TherapyMinutes: 150, Items: map[string]int{"G5h": 3}}
	_, err := svc.Classify(ctx, a)
	require.NoError(t, err)
	second, err := svc.Classify(ctx, a)
	require.NoError(t, err)

	current, ok, err := svc.Current(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_SeedDefault(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	catalog := db.Catalog()

	cat, err := factory.Default()
	require.NoError(t, err)
	rates := billing.NewRateRepository(db.Rates(), zerolog.Nop())
	require.NoError(t, cat.Seed(ctx, catalog, rates))

	templates, err := catalog.Templates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, len(cat.Templates))

	se, err := catalog.Template(ctx, "SE-INT")
	require.NoError(t, err)
	assert.Equal(t, []string{rug.FlagExtensiveServices}, se.Flags)
	assert.Equal(t, generic.IntRange{Min: 7, Max: 18}, se.ADLRange)
	require.Len(t, se.Services, 3)

	cc, err := catalog.Template(ctx, "CC0-STD")
	require.NoError(t, err)
	monitoring, ok := cc.Service("monitoring")
	require.True(t, ok)
	assert.True(t, monitoring.IsConditional)
	assert.Equal(t, []string{rug.FlagClinicallyComplex}, monitoring.ConditionFlags)

	recs, err := catalog.Recommendations(ctx, rug.CategoryImpairedCognition)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "ic-day-program", recs[0].ID)
	require.NotNil(t, recs[0].Trigger.CPSMin)
	assert.Equal(t, 3, *recs[0].Trigger.CPSMin)

	st, err := catalog.ServiceType(ctx, "respite")
	require.NoError(t, err)
	require.NotNil(t, st.DefaultCostCents)
	assert.Equal(t, generic.Cents(16000), *st.DefaultCostCents)
	assert.Equal(t, generic.UnitBlock, st.UnitType)

	meals, err := catalog.ServiceType(ctx, "meals")
	require.NoError(t, err)
	assert.Equal(t, 0, meals.DefaultDurationMinutes)
}

func TestCatalog_SaveTemplateUpserts(t *testing.T) {
	ctx := context.Background()
	catalog := newStore(t).Catalog()
	tpl := bundle.Template{
		Code:        "T1",
		RUGGroup:    "PA1",
		RUGCategory: rug.CategoryPhysicalFunction,
		ADLRange:    generic.IntRange{Min: 4, Max: 5},
		IADLRange:   generic.IntRange{Min: 0, Max: 3},
	}
	require.NoError(t, catalog.SaveTemplate(ctx, tpl))

	tpl.WeeklyCapCents = 12345
	require.NoError(t, catalog.SaveTemplate(ctx, tpl))

	got, err := catalog.Template(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, generic.Cents(12345), got.WeeklyCapCents)
	assert.Nil(t, got.Flags)

	_, err = catalog.Template(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = catalog.ServiceType(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestCatalog_RejectsInvalidTemplate(t *testing.T) {
	err := newStore(t).Catalog().SaveTemplate(context.Background(), bundle.Template{
		Code:     "bad",
		ADLRange: generic.IntRange{Min: 9, Max: 4},
	})
	assert.ErrorIs(t, err, generic.ErrInvalidCatalog)
}

// =============================================================================
// RATES
// =============================================================================

func TestRates_CreateClosesPrevious(t *testing.T) {
	// GIVEN: an open default rate
	ctx := context.Background()
	repo := billing.NewRateRepository(newStore(t).Rates(), zerolog.Nop())
	_, err := repo.CreateRate(ctx, billing.RateRecord{
		ServiceType:   "psw",
		UnitType:      generic.UnitHour,
		RateCents:     3500,
		EffectiveFrom: generic.MustParseDate("2024-01-01"),
	})
	require.NoError(t, err)

	// WHEN: a new rate starts later
	_, err = repo.CreateRate(ctx, billing.RateRecord{
		ServiceType:   "psw",
		UnitType:      generic.UnitHour,
		RateCents:     3800,
		EffectiveFrom: generic.MustParseDate("2025-01-01"),
	})
	require.NoError(t, err)

	// THEN: each date resolves to the record valid on it
	old, err := repo.EffectiveRate(ctx, "psw", nil, generic.MustParseDate("2024-12-31"))
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, generic.Cents(3500), old.RateCents)
	require.NotNil(t, old.EffectiveTo)
	assert.Equal(t, "2024-12-31", old.EffectiveTo.String())

	current, err := repo.EffectiveRate(ctx, "psw", nil, generic.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, generic.Cents(3800), current.RateCents)
}

func TestRates_OrganizationKeyedSeparately(t *testing.T) {
	ctx := context.Background()
	rates := newStore(t).Rates()
	org := generic.StringPtr("org-1")
	from := generic.MustParseDate("2024-01-01")

	require.NoError(t, rates.InsertRate(ctx, billing.RateRecord{ID: "d", ServiceType: "psw", UnitType: generic.UnitHour, RateCents: 3500, EffectiveFrom: from}))
	require.NoError(t, rates.InsertRate(ctx, billing.RateRecord{ID: "o", ServiceType: "psw", OrganizationID: org, UnitType: generic.UnitHour, RateCents: 4000, EffectiveFrom: from}))

	defaults, err := rates.Rates(ctx, "psw", nil)
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, "d", defaults[0].ID)
	assert.Nil(t, defaults[0].OrganizationID)

	orgRates, err := rates.Rates(ctx, "psw", org)
	require.NoError(t, err)
	require.Len(t, orgRates, 1)
	assert.Equal(t, "o", orgRates[0].ID)
	assert.Equal(t, "org-1", *orgRates[0].OrganizationID)
}

func TestRates_OverlapRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	repo := billing.NewRateRepository(db.Rates(), zerolog.Nop())
	from := generic.MustParseDate("2024-06-01")

	_, err := repo.CreateRate(ctx, billing.RateRecord{ServiceType: "psw", UnitType: generic.UnitHour, RateCents: 3500, EffectiveFrom: from})
	require.NoError(t, err)

	_, err = repo.CreateRate(ctx, billing.RateRecord{ServiceType: "psw", UnitType: generic.UnitHour, RateCents: 3000, EffectiveFrom: generic.MustParseDate("2024-01-01")})
	assert.ErrorIs(t, err, generic.ErrOverlappingRate)

	records, err := db.Rates().Rates(ctx, "psw", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].EffectiveTo)
}

func TestRates_DuplicateIDAndMissingClose(t *testing.T) {
	ctx := context.Background()
	rates := newStore(t).Rates()
	rec := billing.RateRecord{ID: "r1", ServiceType: "psw", UnitType: generic.UnitHour, RateCents: 3500, EffectiveFrom: generic.MustParseDate("2024-01-01")}

	require.NoError(t, rates.InsertRate(ctx, rec))
	assert.ErrorIs(t, rates.InsertRate(ctx, rec), generic.ErrInvalidInput)
	assert.ErrorIs(t, rates.CloseRate(ctx, "nope", generic.MustParseDate("2024-02-01")), generic.ErrNotFound)
}

func TestNew_FileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "homecare.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.Catalog().SaveServiceType(ctx, bundle.ServiceType{Code: "psw", Name: "PSW", UnitType: generic.UnitHour}))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	types, err := reopened.Catalog().ServiceTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "psw", types[0].Code)
	assert.NoError(t, reopened.Ping(ctx))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Classifications().Insert(ctx, classification("c1", "p1", time.Now())))
	require.NoError(t, store.Reset(ctx))

	_, err := store.Classifications().Current(ctx, "p1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}
