/*
Package billing resolves service rates and evaluates a plan's weekly cost
against its bundle cap.

PURPOSE:
  Rates change over time and can be overridden per organization. This
  package owns the temporal rate records, the fallback chain that always
  yields a rate, the unit-type cost arithmetic and the budget band.

RATE VALIDITY:
  A record is valid on date d when EffectiveFrom <= d and (EffectiveTo is
  nil or d <= EffectiveTo). For one (service type, organization) key at
  most one record is valid on any date. Creating a record closes the
  previous open one on the day before the new record starts.

FALLBACK CHAIN (resolver.go):
  1. Organization record valid on the date
  2. System default record (no organization) valid on the date
  3. Template service cost override
  4. Service type default cost
  5. Per-category default table

BUDGET BANDS (cost.go):
  OK        total <= cap
  WARNING   total <= cap x 1.10
  OVER_CAP  otherwise

SEE ALSO:
  - engine.go: Plan annotation, rationale and care plan preview
  - cache.go: Cached effective-rate reads
*/
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// RATE RECORD
// =============================================================================

// RateRecord is one billing rate with a validity window. A nil
// OrganizationID is the system default.
type RateRecord struct {
	ID             string           `json:"id"`
	ServiceType    string           `json:"service_type"`
	OrganizationID *string          `json:"organization_id"`
	UnitType       generic.UnitType `json:"unit_type"`
	RateCents      generic.Cents    `json:"rate_cents"`
	EffectiveFrom  generic.Date     `json:"effective_from"`
	EffectiveTo    *generic.Date    `json:"effective_to"`
}

func (r RateRecord) Window() generic.Window {
	return generic.Window{From: r.EffectiveFrom, To: r.EffectiveTo}
}

// ValidOn reports whether the record applies on d.
func (r RateRecord) ValidOn(d generic.Date) bool { return r.Window().Contains(d) }

// IsDefault reports whether the record is a system default.
func (r RateRecord) IsDefault() bool { return r.OrganizationID == nil }

func (r RateRecord) Validate() error {
	if r.ServiceType == "" {
		return fmt.Errorf("%w: rate service type is required", generic.ErrInvalidInput)
	}
	if r.RateCents < 0 {
		return fmt.Errorf("%w: rate for %s is negative", generic.ErrInvalidInput, r.ServiceType)
	}
	if r.UnitType != "" && !r.UnitType.IsKnown() {
		return fmt.Errorf("%w: unknown unit type %q", generic.ErrInvalidInput, r.UnitType)
	}
	return r.Window().Validate()
}

// orgLabel renders an organization id for messages.
func orgLabel(org *string) string {
	if org == nil {
		return "default"
	}
	return *org
}

// =============================================================================
// RATE STORE - Persistence contract
// =============================================================================

// RateStore persists rate records.
type RateStore interface {
	// Rates returns every record for the key ordered by EffectiveFrom.
	// A nil orgID selects system defaults only.
	Rates(ctx context.Context, serviceType string, orgID *string) ([]RateRecord, error)

	InsertRate(ctx context.Context, r RateRecord) error

	// CloseRate sets a record's EffectiveTo.
	CloseRate(ctx context.Context, id string, effectiveTo generic.Date) error
}

// TxRateStore wraps RateStore with transaction support.
type TxRateStore interface {
	RateStore
	WithTx(ctx context.Context, fn func(RateStore) error) error
}

// =============================================================================
// RATE CHANGE - Pure close-and-insert decision
// =============================================================================

// OverlappingRateError is returned when an existing record starts on or
// after the new record's start and shares a valid day with it.
type OverlappingRateError struct {
	ServiceType    string
	OrganizationID *string
	ExistingID     string
	ExistingFrom   generic.Date
	NewFrom        generic.Date
}

func (e *OverlappingRateError) Error() string {
	return fmt.Sprintf("rate %s/%s: existing record %s starts %s, not before new start %s",
		e.ServiceType, orgLabel(e.OrganizationID), e.ExistingID, e.ExistingFrom, e.NewFrom)
}

func (e *OverlappingRateError) Unwrap() error { return generic.ErrOverlappingRate }

// RateClosure shortens an existing record.
type RateClosure struct {
	ID          string
	EffectiveTo generic.Date
}

// RateChange is the full set of writes for one new rate.
type RateChange struct {
	Close  []RateClosure
	Insert RateRecord
}

// PlanRateChange decides which existing records to close so that next can
// be inserted without overlap. existing must all share next's key.
func PlanRateChange(existing []RateRecord, next RateRecord) (RateChange, error) {
	if err := next.Validate(); err != nil {
		return RateChange{}, err
	}

	change := RateChange{Insert: next}
	window := next.Window()
	closeOn := next.EffectiveFrom.AddDays(-1)

	for _, r := range existing {
		if !r.Window().Overlaps(window) {
			continue
		}
		if !r.EffectiveFrom.Before(next.EffectiveFrom) {
			return RateChange{}, &OverlappingRateError{
				ServiceType:    next.ServiceType,
				OrganizationID: next.OrganizationID,
				ExistingID:     r.ID,
				ExistingFrom:   r.EffectiveFrom,
				NewFrom:        next.EffectiveFrom,
			}
		}
		change.Close = append(change.Close, RateClosure{ID: r.ID, EffectiveTo: closeOn})
	}
	return change, nil
}

// =============================================================================
// RATE REPOSITORY
// =============================================================================

// Rates is the read/write rate contract used by the resolver and the API.
type Rates interface {
	// EffectiveRate returns the record valid on asOf for exactly this key,
	// or nil when none is valid.
	EffectiveRate(ctx context.Context, serviceType string, orgID *string, asOf generic.Date) (*RateRecord, error)

	// CreateRate closes the previous open record and inserts r atomically.
	CreateRate(ctx context.Context, r RateRecord) (RateRecord, error)
}

// RateRepository implements Rates over a transactional store.
type RateRepository struct {
	store TxRateStore
	log   zerolog.Logger
}

func NewRateRepository(store TxRateStore, log zerolog.Logger) *RateRepository {
	return &RateRepository{store: store, log: log}
}

func effectiveIn(records []RateRecord, asOf generic.Date) *RateRecord {
	var found *RateRecord
	for i := range records {
		if records[i].ValidOn(asOf) {
			// latest start wins if the store ever holds overlapping rows
			if found == nil || records[i].EffectiveFrom.After(found.EffectiveFrom) {
				found = &records[i]
			}
		}
	}
	return found
}

func (r *RateRepository) EffectiveRate(ctx context.Context, serviceType string, orgID *string, asOf generic.Date) (*RateRecord, error) {
	records, err := r.store.Rates(ctx, serviceType, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rates for %s/%s: %w", serviceType, orgLabel(orgID), err)
	}
	found := effectiveIn(records, asOf)
	if found == nil {
		return nil, nil
	}
	rec := *found
	return &rec, nil
}

func (r *RateRepository) CreateRate(ctx context.Context, rec RateRecord) (RateRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	var change RateChange
	err := r.store.WithTx(ctx, func(tx RateStore) error {
		existing, err := tx.Rates(ctx, rec.ServiceType, rec.OrganizationID)
		if err != nil {
			return fmt.Errorf("load rates: %w", err)
		}
		change, err = PlanRateChange(existing, rec)
		if err != nil {
			return err
		}
		for _, c := range change.Close {
			if err := tx.CloseRate(ctx, c.ID, c.EffectiveTo); err != nil {
				return fmt.Errorf("close rate %s: %w", c.ID, err)
			}
		}
		return tx.InsertRate(ctx, change.Insert)
	})
	if err != nil {
		if !errors.Is(err, generic.ErrOverlappingRate) && !errors.Is(err, generic.ErrInvalidInput) && !errors.Is(err, generic.ErrInvalidWindow) {
			r.log.Error().Err(err).Str("service_type", rec.ServiceType).Msg("rate change rolled back")
		}
		return RateRecord{}, err
	}

	r.log.Info().
		Str("rate_id", rec.ID).
		Str("service_type", rec.ServiceType).
		Str("organization", orgLabel(rec.OrganizationID)).
		Int64("rate_cents", int64(rec.RateCents)).
		Str("effective_from", rec.EffectiveFrom.String()).
		Int("closed", len(change.Close)).
		Msg("rate created")
	return change.Insert, nil
}
