package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/temcen/stayrec/pkg/models"
)

type countingRecomputer struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (r *countingRecomputer) Recompute(_ context.Context, trigger string) (*models.RecomputeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	if r.err != nil {
		return nil, r.err
	}
	return &models.RecomputeResult{Trigger: trigger, Status: models.RecomputeStatusCompleted}, nil
}

func (r *countingRecomputer) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.triggers...)
}

func TestScheduler_RunsOnEveryTick(t *testing.T) {
	rec := &countingRecomputer{}
	s := NewScheduler(rec, 10*time.Millisecond, false, testLogger())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.calls()) >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	for _, trigger := range rec.calls() {
		assert.Equal(t, TriggerScheduler, trigger)
	}
}

func TestScheduler_RunOnStart(t *testing.T) {
	rec := &countingRecomputer{}
	s := NewScheduler(rec, time.Hour, true, testLogger())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, []string{TriggerStartup}, rec.calls())
}

func TestScheduler_KeepsTickingAfterFailures(t *testing.T) {
	rec := &countingRecomputer{err: errors.New("database unavailable")}
	s := NewScheduler(rec, 10*time.Millisecond, false, testLogger())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.calls()) >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_SkipsWhenRunInProgress(t *testing.T) {
	rec := &countingRecomputer{err: ErrRecomputeInProgress}
	s := NewScheduler(rec, 10*time.Millisecond, true, testLogger())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return len(rec.calls()) >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	rec := &countingRecomputer{}
	s := NewScheduler(rec, time.Hour, false, testLogger())

	s.Stop()
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()

	assert.Empty(t, rec.calls())
}
