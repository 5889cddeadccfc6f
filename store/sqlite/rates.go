package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// RATES (billing.TxRateStore interface)
// =============================================================================

// Rates is the billing.TxRateStore view of the Store.
type Rates struct {
	parent *Store
}

func (s *Store) Rates() *Rates {
	return &Rates{parent: s}
}

func (r *Rates) Rates(ctx context.Context, serviceType string, orgID *string) ([]billing.RateRecord, error) {
	r.parent.mu.RLock()
	defer r.parent.mu.RUnlock()
	return loadRates(ctx, r.parent.db, serviceType, orgID)
}

func (r *Rates) InsertRate(ctx context.Context, rec billing.RateRecord) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()
	return insertRate(ctx, r.parent.db, rec)
}

func (r *Rates) CloseRate(ctx context.Context, id string, effectiveTo generic.Date) error {
	r.parent.mu.Lock()
	defer r.parent.mu.Unlock()
	return closeRate(ctx, r.parent.db, id, effectiveTo)
}

// WithTx executes fn within a database transaction.
func (r *Rates) WithTx(ctx context.Context, fn func(billing.RateStore) error) error {
	return r.parent.withTx(ctx, func(q querier) error {
		return fn(&ratesTx{q: q})
	})
}

type ratesTx struct {
	q querier
}

func (tx *ratesTx) Rates(ctx context.Context, serviceType string, orgID *string) ([]billing.RateRecord, error) {
	return loadRates(ctx, tx.q, serviceType, orgID)
}

func (tx *ratesTx) InsertRate(ctx context.Context, rec billing.RateRecord) error {
	return insertRate(ctx, tx.q, rec)
}

func (tx *ratesTx) CloseRate(ctx context.Context, id string, effectiveTo generic.Date) error {
	return closeRate(ctx, tx.q, id, effectiveTo)
}

// =============================================================================
// QUERIES
// =============================================================================

func loadRates(ctx context.Context, q querier, serviceType string, orgID *string) ([]billing.RateRecord, error) {
	// IS matches NULL against NULL, selecting system defaults for a nil org
	rows, err := q.QueryContext(ctx, `
		SELECT id, service_type, organization_id, unit_type, rate_cents, effective_from, effective_to
		FROM rates
		WHERE service_type = ? AND organization_id IS ?
		ORDER BY effective_from, rowid`,
		serviceType, nullString(orgID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var out []billing.RateRecord
	for rows.Next() {
		var rec billing.RateRecord
		var org, to sql.NullString
		var unit, from string
		var cents int64
		if err := rows.Scan(&rec.ID, &rec.ServiceType, &org, &unit, &cents, &from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rec.OrganizationID = stringPtr(org)
		rec.UnitType = generic.UnitType(unit)
		rec.RateCents = generic.Cents(cents)
		if rec.EffectiveFrom, err = generic.ParseDate(from); err != nil {
			return nil, fmt.Errorf("rate %s effective_from: %w", rec.ID, err)
		}
		if to.Valid {
			d, err := generic.ParseDate(to.String)
			if err != nil {
				return nil, fmt.Errorf("rate %s effective_to: %w", rec.ID, err)
			}
			rec.EffectiveTo = &d
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func insertRate(ctx context.Context, q querier, rec billing.RateRecord) error {
	var to sql.NullString
	if rec.EffectiveTo != nil {
		to = sql.NullString{String: rec.EffectiveTo.String(), Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO rates (id, service_type, organization_id, unit_type, rate_cents, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ServiceType, nullString(rec.OrganizationID), string(rec.UnitType),
		int64(rec.RateCents), rec.EffectiveFrom.String(), to, formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: rate %s already exists", generic.ErrInvalidInput, rec.ID)
		}
		return fmt.Errorf("failed to insert rate: %w", err)
	}
	return nil
}

func closeRate(ctx context.Context, q querier, id string, effectiveTo generic.Date) error {
	res, err := q.ExecContext(ctx, "UPDATE rates SET effective_to = ? WHERE id = ?", effectiveTo.String(), id)
	if err != nil {
		return fmt.Errorf("failed to close rate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rate %s: %w", id, generic.ErrNotFound)
	}
	return nil
}

var _ billing.TxRateStore = (*Rates)(nil)
