package rug_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/homecare-engine/assessment"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
	"github.com/warp/homecare-engine/store/memory"
)

func physicalAssessment(patientID string) *rug.Assessment {
	return &rug.Assessment{
		ID:        "a-" + patientID,
		PatientID: patientID,
		Items: assessment.ItemSet{
			assessment.ItemBedMobility: 2,
			assessment.ItemTransfer:    2,
			assessment.ItemToiletUse:   1,
			assessment.ItemEating:      0,
		},
	}
}

func countCurrent(history []rug.Classification) int {
	n := 0
	for _, c := range history {
		if c.IsCurrent {
			n++
		}
	}
	return n
}

func TestService_ClassifySupersedesPrevious(t *testing.T) {
	ctx := context.Background()
	svc := rug.NewService(memory.NewClassifications())

	// GIVEN: a first classification
	first, err := svc.Classify(ctx, physicalAssessment("p1"))
	require.NoError(t, err)
	assert.Equal(t, rug.Group("PC0"), first.RUGGroup)
	assert.NotEmpty(t, first.ID)

	// WHEN: the patient is reclassified with rehabilitation therapy
	next := physicalAssessment("p1")
	next.TherapyMinutes = 150
	second, err := svc.Classify(ctx, next)
	require.NoError(t, err)

	// THEN: only the new record is current, the old one is superseded
	current, ok, err := svc.Current(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
	assert.Equal(t, rug.CategoryRehabilitation, current.RUGCategory)

	history, err := svc.History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, countCurrent(history))
	for _, c := range history {
		if c.ID == first.ID {
			assert.False(t, c.IsCurrent)
			assert.NotNil(t, c.SupersededAt)
		}
	}
}

func TestService_ConcurrentClassifyKeepsOneCurrent(t *testing.T) {
	ctx := context.Background()
	svc := rug.NewService(memory.NewClassifications())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Classify(ctx, physicalAssessment("p-shared"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, "p-shared")
	require.NoError(t, err)
	assert.Len(t, history, 20)
	assert.Equal(t, 1, countCurrent(history))
}

func TestService_ConcurrentClassifyOrdersHistoryByCommit(t *testing.T) {
	// GIVEN: a strictly increasing clock shared by concurrent classifications
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	classifier := rug.NewClassifier()
	classifier.Now = func() time.Time {
		n := ticks.Add(1)
		if n%2 == 0 {
			time.Sleep(time.Millisecond)
		}
		return base.Add(time.Duration(n) * time.Second)
	}
	svc := rug.NewService(memory.NewClassifications(), rug.WithClassifier(classifier))

	// WHEN: the same patient is classified from many goroutines
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Classify(ctx, physicalAssessment("p-ordered"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// THEN: the newest record is current and no record is superseded before it was created
	history, err := svc.History(ctx, "p-ordered")
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.True(t, history[0].IsCurrent)
	for i, c := range history[1:] {
		assert.True(t, c.ClassifiedAt.Before(history[i].ClassifiedAt))
		require.NotNil(t, c.SupersededAt)
		assert.False(t, c.SupersededAt.Before(c.ClassifiedAt), "record %s superseded before it was classified", c.ID)
	}
}

func TestService_NoAssessment(t *testing.T) {
	svc := rug.NewService(memory.NewClassifications())

	_, err := svc.Classify(context.Background(), nil)
	assert.ErrorIs(t, err, generic.ErrNoAssessment)

	_, err = svc.Classify(context.Background(), &rug.Assessment{PatientID: "p1"})
	assert.ErrorIs(t, err, generic.ErrNoAssessment)
}

func TestService_CurrentForUnknownPatient(t *testing.T) {
	svc := rug.NewService(memory.NewClassifications())

	c, ok, err := svc.Current(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, c)
}

// failingInsert wraps a store and fails every insert inside a transaction.
type failingInsert struct {
	*memory.Classifications
}

type failingTx struct {
	rug.Store
}

func (failingTx) Insert(context.Context, rug.Classification) error {
	return errors.New("disk full")
}

func (f failingInsert) WithTx(ctx context.Context, fn func(rug.Store) error) error {
	return f.Classifications.WithTx(ctx, func(tx rug.Store) error {
		return fn(failingTx{Store: tx})
	})
}

func TestService_InsertFailureRollsBackSupersession(t *testing.T) {
	ctx := context.Background()
	store := memory.NewClassifications()

	// GIVEN: a current classification
	first, err := rug.NewService(store).Classify(ctx, physicalAssessment("p1"))
	require.NoError(t, err)

	// WHEN: the next insert fails after the supersede step
	svc := rug.NewService(failingInsert{Classifications: store})
	_, err = svc.Classify(ctx, physicalAssessment("p1"))
	require.Error(t, err)

	// THEN: the original record is still current
	current, err := store.Current(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
	assert.True(t, current.IsCurrent)
	assert.Nil(t, current.SupersededAt)
}

func TestService_UsesInjectedClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	classifier := rug.NewClassifier()
	classifier.Now = func() time.Time { return at }
	svc := rug.NewService(memory.NewClassifications(), rug.WithClassifier(classifier))

	c, err := svc.Classify(context.Background(), physicalAssessment("p1"))
	require.NoError(t, err)
	assert.Equal(t, at, c.ClassifiedAt)
}
