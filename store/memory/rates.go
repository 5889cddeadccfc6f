package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/generic"
)

// =============================================================================
// RATES - billing.TxRateStore
// =============================================================================

type Rates struct {
	mu      sync.RWMutex
	records []billing.RateRecord
}

func NewRates() *Rates {
	return &Rates{}
}

func sameOrg(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *Rates) Rates(_ context.Context, serviceType string, orgID *string) ([]billing.RateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ratesLocked(serviceType, orgID), nil
}

func (m *Rates) ratesLocked(serviceType string, orgID *string) []billing.RateRecord {
	var out []billing.RateRecord
	for _, r := range m.records {
		if r.ServiceType == serviceType && sameOrg(r.OrganizationID, orgID) {
			out = append(out, cloneRate(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveFrom.Before(out[j].EffectiveFrom) })
	return out
}

func (m *Rates) InsertRate(_ context.Context, r billing.RateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(r)
}

func (m *Rates) insertLocked(r billing.RateRecord) error {
	for _, existing := range m.records {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: rate %s already exists", generic.ErrInvalidInput, r.ID)
		}
	}
	m.records = append(m.records, cloneRate(r))
	return nil
}

func (m *Rates) CloseRate(_ context.Context, id string, effectiveTo generic.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked(id, effectiveTo)
}

func (m *Rates) closeLocked(id string, effectiveTo generic.Date) error {
	for i := range m.records {
		if m.records[i].ID == id {
			to := effectiveTo
			m.records[i].EffectiveTo = &to
			return nil
		}
	}
	return fmt.Errorf("rate %s: %w", id, generic.ErrNotFound)
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Rates) WithTx(_ context.Context, fn func(billing.RateStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]billing.RateRecord, len(m.records))
	for i, r := range m.records {
		snapshot[i] = cloneRate(r)
	}

	if err := fn(&ratesTx{parent: m}); err != nil {
		m.records = snapshot
		return err
	}
	return nil
}

type ratesTx struct {
	parent *Rates
}

func (tx *ratesTx) Rates(_ context.Context, serviceType string, orgID *string) ([]billing.RateRecord, error) {
	return tx.parent.ratesLocked(serviceType, orgID), nil
}

func (tx *ratesTx) InsertRate(_ context.Context, r billing.RateRecord) error {
	return tx.parent.insertLocked(r)
}

func (tx *ratesTx) CloseRate(_ context.Context, id string, effectiveTo generic.Date) error {
	return tx.parent.closeLocked(id, effectiveTo)
}

func cloneRate(r billing.RateRecord) billing.RateRecord {
	if r.OrganizationID != nil {
		org := *r.OrganizationID
		r.OrganizationID = &org
	}
	if r.EffectiveTo != nil {
		to := *r.EffectiveTo
		r.EffectiveTo = &to
	}
	return r
}
