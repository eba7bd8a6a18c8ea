package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/pkg/models"
)

// Recomputer is the part of RecomputeOrchestrator the scheduler and the
// handlers depend on.
type Recomputer interface {
	Recompute(ctx context.Context, trigger string) (*models.RecomputeResult, error)
}

// Scheduler triggers a recompute every interval. A tick that finds a run in
// flight is skipped, never queued.
type Scheduler struct {
	recomputer Recomputer
	interval   time.Duration
	runOnStart bool
	logger     *logrus.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(recomputer Recomputer, interval time.Duration, runOnStart bool, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		recomputer: recomputer,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Start launches the loop in a goroutine. Calling Start on a running
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.WithFields(logrus.Fields{
		"interval":     s.interval.String(),
		"run_on_start": s.runOnStart,
	}).Info("Recompute scheduler started")
}

// Stop cancels the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Recompute scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.runOnStart {
		s.tick(ctx, TriggerStartup)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, TriggerScheduler)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, trigger string) {
	_, err := s.recomputer.Recompute(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ErrRecomputeInProgress):
		s.logger.WithField("trigger", trigger).Info("Skipping scheduled recompute, a run is already in progress")
	case ctx.Err() != nil:
		s.logger.WithField("trigger", trigger).Info("Scheduled recompute interrupted by shutdown")
	default:
		// The failure is already logged with the run; the next tick retries.
		s.logger.WithError(err).WithField("trigger", trigger).Warn("Scheduled recompute failed")
	}
}
