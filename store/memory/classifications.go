// Package memory provides in-memory implementations of every store
// contract, for tests and single-process development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// CLASSIFICATIONS - rug.TxStore
// =============================================================================

type Classifications struct {
	mu        sync.RWMutex
	byPatient map[string][]rug.Classification
}

func NewClassifications() *Classifications {
	return &Classifications{byPatient: make(map[string][]rug.Classification)}
}

func (m *Classifications) Current(_ context.Context, patientID string) (*rug.Classification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentLocked(patientID)
}

func (m *Classifications) currentLocked(patientID string) (*rug.Classification, error) {
	for _, c := range m.byPatient[patientID] {
		if c.IsCurrent {
			out := cloneClassification(c)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("classification for patient %s: %w", patientID, generic.ErrNotFound)
}

func (m *Classifications) History(_ context.Context, patientID string) ([]rug.Classification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.historyLocked(patientID), nil
}

func (m *Classifications) historyLocked(patientID string) []rug.Classification {
	records := m.byPatient[patientID]
	out := make([]rug.Classification, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, cloneClassification(records[i]))
	}
	// ties keep the later insert first
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClassifiedAt.After(out[j].ClassifiedAt) })
	return out
}

func (m *Classifications) Supersede(_ context.Context, patientID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supersedeLocked(patientID, at)
	return nil
}

func (m *Classifications) supersedeLocked(patientID string, at time.Time) {
	records := m.byPatient[patientID]
	for i := range records {
		if records[i].IsCurrent {
			records[i].IsCurrent = false
			ts := at
			records[i].SupersededAt = &ts
		}
	}
}

func (m *Classifications) Insert(_ context.Context, c rug.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(c)
}

func (m *Classifications) insertLocked(c rug.Classification) error {
	if c.IsCurrent {
		for _, existing := range m.byPatient[c.PatientID] {
			if existing.IsCurrent {
				return fmt.Errorf("patient %s already has current classification %s: %w",
					c.PatientID, existing.ID, generic.ErrConcurrentModification)
			}
		}
	}
	m.byPatient[c.PatientID] = append(m.byPatient[c.PatientID], cloneClassification(c))
	return nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Classifications) WithTx(_ context.Context, fn func(rug.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string][]rug.Classification, len(m.byPatient))
	for k, v := range m.byPatient {
		records := make([]rug.Classification, len(v))
		for i, c := range v {
			records[i] = cloneClassification(c)
		}
		snapshot[k] = records
	}

	if err := fn(&classificationsTx{parent: m}); err != nil {
		m.byPatient = snapshot
		return err
	}
	return nil
}

// classificationsTx runs against the parent while its lock is held.
type classificationsTx struct {
	parent *Classifications
}

func (tx *classificationsTx) Current(_ context.Context, patientID string) (*rug.Classification, error) {
	return tx.parent.currentLocked(patientID)
}

func (tx *classificationsTx) History(_ context.Context, patientID string) ([]rug.Classification, error) {
	return tx.parent.historyLocked(patientID), nil
}

func (tx *classificationsTx) Supersede(_ context.Context, patientID string, at time.Time) error {
	tx.parent.supersedeLocked(patientID, at)
	return nil
}

func (tx *classificationsTx) Insert(_ context.Context, c rug.Classification) error {
	return tx.parent.insertLocked(c)
}

func cloneClassification(c rug.Classification) rug.Classification {
	c.Flags = c.Flags.Clone()
	if c.SupersededAt != nil {
		ts := *c.SupersededAt
		c.SupersededAt = &ts
	}
	return c
}
