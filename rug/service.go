package rug

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/metrics"
)

// =============================================================================
// SERVICE - Classification with supersession
// =============================================================================

// Service classifies assessments and keeps exactly one current
// classification per patient.
type Service struct {
	store      TxStore
	classifier *Classifier
	locks      *generic.KeyedMutex
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithClassifier(c *Classifier) Option { return func(s *Service) { s.classifier = c } }
func WithLocks(l *generic.KeyedMutex) Option { return func(s *Service) { s.locks = l } }

func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		classifier: NewClassifier(),
		locks:      generic.NewKeyedMutex(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify computes a classification for a and stores it as the patient's
// current one, superseding the previous record in the same transaction.
// A nil or empty assessment returns generic.ErrNoAssessment.
func (s *Service) Classify(ctx context.Context, a *Assessment) (Classification, error) {
	if a.IsEmpty() {
		return Classification{}, generic.ErrNoAssessment
	}
	if a.PatientID == "" {
		return Classification{}, fmt.Errorf("%w: patient id is required", generic.ErrInvalidInput)
	}

	// Stamped under the lock so commit order and ClassifiedAt agree.
	unlock := s.locks.Lock(a.PatientID)
	defer unlock()

	c := s.classifier.Classify(*a)
	c.ID = uuid.NewString()

	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.Supersede(ctx, c.PatientID, c.ClassifiedAt); err != nil {
			return fmt.Errorf("supersede current classification: %w", err)
		}
		if err := tx.Insert(ctx, c); err != nil {
			return fmt.Errorf("insert classification: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", a.PatientID).Msg("classification rolled back")
		return Classification{}, err
	}

	s.metrics.ObserveClassification(string(c.RUGGroup), string(c.RUGCategory))
	s.log.Info().
		Str("patient_id", c.PatientID).
		Str("classification_id", c.ID).
		Str("rug_group", string(c.RUGGroup)).
		Str("rule", c.MatchedRule).
		Int("adl_sum", c.ADLSum).
		Int("iadl_sum", c.IADLSum).
		Msg("patient classified")
	return c, nil
}

// Current returns the patient's current classification. The second return
// is false when the patient has never been classified.
func (s *Service) Current(ctx context.Context, patientID string) (*Classification, bool, error) {
	c, err := s.store.Current(ctx, patientID)
	if errors.Is(err, generic.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// History returns every classification for the patient, newest first.
func (s *Service) History(ctx context.Context, patientID string) ([]Classification, error) {
	return s.store.History(ctx, patientID)
}
