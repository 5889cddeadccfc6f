/*
main.go - Application entry point

PURPOSE:
  Command line for the home-care eligibility engine. Starts the HTTP
  server, runs one-off evaluations and validates catalog files.

COMMANDS:
  serve              Start the HTTP API
  evaluate           Run the pipeline for one assessment file and print JSON
  validate-catalog   Parse and validate a catalog file

STARTUP SEQUENCE (serve):
  1. Load configuration (environment, then --config file)
  2. Initialize logging
  3. Open stores (SQLite, or memory when DB_PATH is ":memory:")
  4. Seed the catalog into empty stores
  5. Configure HTTP router
  6. Start server with graceful shutdown

ENVIRONMENT:
  PORT, DB_PATH, LOG_FORMAT, LOG_LEVEL, CACHE_TTL, CATALOG_FILE,
  CORS_ORIGINS, DEFAULT_ORGANIZATION. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/homecare.db ./server serve

  # Run in memory with a custom catalog
  DB_PATH=":memory:" CATALOG_FILE=./catalog.yaml ./server serve

  # Evaluate one assessment for an organization
  ./server evaluate --assessment ./a.json --org org-1

SEE ALSO:
  - app.go: Dependency wiring
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/homecare-engine/api"
	"github.com/warp/homecare-engine/config"
	"github.com/warp/homecare-engine/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "homecare",
		Short:         "Home-care bundle eligibility engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or env)")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newEvaluateCmd(loadConfig),
		newValidateCatalogCmd(),
	)
	return root
}

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	a, err := newApp(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	handler := api.NewHandler(a.Pipeline, a.Templates, a.Rates, log)
	handler.DefaultOrganization = cfg.DefaultOrganization
	handler.Ping = a.Ping

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
