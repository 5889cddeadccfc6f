/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists classifications, the service catalog and rate records. The
  in-memory stores in store/memory implement the same contracts for tests.

INTERFACES IMPLEMENTED:
  rug.TxStore:         Store.Classifications()
  bundle.Catalog:      Store.Catalog()
  billing.TxRateStore: Store.Rates()

  Each contract has its own WithTx signature, so the Store hands out one
  typed view per contract. All views share the same database and lock.

KEY TABLES:
  classifications: Append-only RUG results, one current row per patient
  service_types:   Catalog service definitions
  templates:       Bundle templates, services kept as JSON
  recommendations: Triggered add-on services, trigger kept as JSON
  rates:           Temporal rate records, NULL organization = default

INDEXES:
  - idx_classifications_current: Partial unique index on is_current = 1.
    A second current row for a patient fails with
    generic.ErrConcurrentModification
  - idx_rates_key: Rate lookup by (service_type, organization_id)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Views returned inside WithTx run
  against the open *sql.Tx and never take the lock.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/homecare.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  classifications := rug.NewService(store.Classifications())

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - rug/store.go, bundle/store.go, billing/rates.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Store owns the database handle. Use the typed views to reach it.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Classifications (never updated except to supersede)
	CREATE TABLE IF NOT EXISTS classifications (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		assessment_id TEXT,
		rug_group TEXT NOT NULL,
		rug_category TEXT NOT NULL,
		adl_sum INTEGER NOT NULL,
		iadl_sum INTEGER NOT NULL,
		cps_score INTEGER NOT NULL,
		flags_json TEXT NOT NULL,
		numeric_rank INTEGER NOT NULL,
		therapy_minutes INTEGER NOT NULL,
		extensive_count INTEGER NOT NULL,
		matched_rule TEXT NOT NULL,
		is_current INTEGER NOT NULL,
		classified_at TEXT NOT NULL,
		superseded_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_classifications_patient
		ON classifications(patient_id, classified_at);

	-- CRITICAL: at most one current classification per patient
	CREATE UNIQUE INDEX IF NOT EXISTS idx_classifications_current
		ON classifications(patient_id)
		WHERE is_current = 1;

	-- Catalog
	CREATE TABLE IF NOT EXISTS service_types (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		unit_type TEXT NOT NULL,
		default_cost_cents INTEGER,
		default_duration_minutes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS templates (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rug_group TEXT NOT NULL,
		rug_category TEXT NOT NULL,
		adl_min INTEGER NOT NULL,
		adl_max INTEGER NOT NULL,
		iadl_min INTEGER NOT NULL,
		iadl_max INTEGER NOT NULL,
		weekly_cap_cents INTEGER NOT NULL,
		priority_weight INTEGER NOT NULL,
		tier_label TEXT NOT NULL DEFAULT '',
		flags_json TEXT NOT NULL,
		services_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recommendations (
		id TEXT PRIMARY KEY,
		rug_category TEXT NOT NULL,
		service_type TEXT NOT NULL,
		min_frequency_per_week INTEGER NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		trigger_json TEXT NOT NULL,
		priority_weight INTEGER NOT NULL,
		is_required INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recommendations_category
		ON recommendations(rug_category);

	-- Rates (NULL organization_id = system default)
	CREATE TABLE IF NOT EXISTS rates (
		id TEXT PRIMARY KEY,
		service_type TEXT NOT NULL,
		organization_id TEXT,
		unit_type TEXT NOT NULL,
		rate_cents INTEGER NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rates_key
		ON rates(service_type, organization_id, effective_from);
	`

	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a database transaction under the write lock.
func (s *Store) withTx(ctx context.Context, fn func(q querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"classifications", "recommendations", "templates", "service_types", "rates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
