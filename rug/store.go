package rug

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Classification persistence
// =============================================================================

// Store persists classifications. Classifications are never updated
// except for the supersession flip.
type Store interface {
	// Current returns the patient's current classification, or
	// generic.ErrNotFound.
	Current(ctx context.Context, patientID string) (*Classification, error)

	// History returns every classification for the patient, newest first.
	History(ctx context.Context, patientID string) ([]Classification, error)

	// Supersede flips the patient's current classification (if any) to
	// superseded at the given time. It is a no-op when none is current.
	Supersede(ctx context.Context, patientID string, at time.Time) error

	// Insert stores a new classification. Inserting a second current
	// record for a patient fails with generic.ErrConcurrentModification.
	Insert(ctx context.Context, c Classification) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
