package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/config"
	"github.com/warp/homecare-engine/factory"
	"github.com/warp/homecare-engine/metrics"
	"github.com/warp/homecare-engine/pipeline"
	"github.com/warp/homecare-engine/rug"
	"github.com/warp/homecare-engine/store/memory"
	"github.com/warp/homecare-engine/store/sqlite"
)

// app is the wired engine shared by every command.
type app struct {
	Pipeline  *pipeline.Pipeline
	Templates bundle.TemplateStore
	Rates     billing.Rates
	Metrics   *metrics.Metrics

	ping  func(context.Context) error
	close func() error
}

func (a *app) Ping(ctx context.Context) error {
	if a.ping == nil {
		return nil
	}
	return a.ping(ctx)
}

func (a *app) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// newApp opens the stores named by cfg, seeds an empty catalog and wires
// the pipeline.
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	var (
		classifications rug.TxStore
		catalog         bundle.Catalog
		rateStore       billing.TxRateStore
		a               = &app{}
	)

	if cfg.InMemory() {
		classifications = memory.NewClassifications()
		catalog = memory.NewCatalog()
		rateStore = memory.NewRates()
	} else {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		classifications = store.Classifications()
		catalog = store.Catalog()
		rateStore = store.Rates()
		a.ping = store.Ping
		a.close = store.Close
	}

	m := metrics.New(nil)
	rates := billing.NewRateRepository(rateStore, log)

	if err := seedIfEmpty(ctx, cfg.CatalogFile, catalog, rates, log); err != nil {
		a.Close()
		return nil, err
	}

	cachedCatalog := bundle.NewCachedCatalog(catalog, cfg.CacheTTL, m)
	cachedRates := billing.NewCachedRateRepository(rates, cfg.CacheTTL, m)

	a.Pipeline = &pipeline.Pipeline{
		Classifications: rug.NewService(classifications, rug.WithLogger(log), rug.WithMetrics(m)),
		Matcher:         bundle.NewMatcher(cachedCatalog),
		Planner:         bundle.NewPlanner(cachedCatalog, cachedCatalog, log),
		Engine:          billing.NewEngine(billing.NewResolver(cachedRates, log, m), log),
		Metrics:         m,
		Log:             log,
	}
	a.Templates = cachedCatalog
	a.Rates = cachedRates
	a.Metrics = m
	return a, nil
}

// seedIfEmpty loads the catalog into stores that hold no templates yet.
// A populated database keeps its own catalog and rate history.
func seedIfEmpty(ctx context.Context, file string, catalog bundle.Catalog, rates billing.Rates, log zerolog.Logger) error {
	existing, err := catalog.Templates(ctx)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Int("templates", len(existing)).Msg("catalog already seeded")
		return nil
	}

	cat, err := factory.Load(file)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := cat.Seed(ctx, catalog, rates); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	source := file
	if source == "" {
		source = "built-in"
	}
	log.Info().
		Str("source", source).
		Int("service_types", len(cat.ServiceTypes)).
		Int("templates", len(cat.Templates)).
		Int("recommendations", len(cat.Recommendations)).
		Int("rates", len(cat.Rates)).
		Msg("catalog seeded")
	return nil
}
