package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/config"
	"github.com/temcen/stayrec/internal/database"
	"github.com/temcen/stayrec/internal/graph"
	"github.com/temcen/stayrec/internal/messaging"
	"github.com/temcen/stayrec/internal/store"
	"github.com/temcen/stayrec/internal/validation"
)

type Services struct {
	Auth            *AuthService
	Health          *HealthService
	Metrics         *PipelineMetrics
	RunLock         *RunLock
	Recompute       *RecomputeOrchestrator
	Recommendations *RecommendationService
	Scheduler       *Scheduler
	RateLimiter     *RateLimiter
	Publisher       *messaging.EventPublisher
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	metrics := NewPipelineMetrics(prometheus.DefaultRegisterer, logger)
	healthService := NewHealthService(db, prometheus.DefaultRegisterer, logger)

	factStore := store.NewFactStore(db.PG, logger)
	snapshotStore := store.NewSnapshotStore(db.PG, logger)

	recommendationService := NewRecommendationService(snapshotStore, db.Redis, cfg, metrics, logger)

	runLock := NewRunLock(db.Redis, cfg.Scheduler.LockKey, cfg.Scheduler.LockTTL, logger)

	opts := []RecomputeOption{WithCacheInvalidator(recommendationService)}

	var publisher *messaging.EventPublisher
	if cfg.Kafka.Enabled {
		validator, err := validation.NewSchemaValidator()
		if err != nil {
			return nil, fmt.Errorf("failed to load event schemas: %w", err)
		}
		publisher = messaging.NewEventPublisher(cfg, validator, logger)
		opts = append(opts, WithEventPublisher(publisher))
	}
	if db.Neo4j != nil {
		opts = append(opts, WithGraphMirror(graph.NewSimilarityMirror(db.Neo4j, cfg.Neo4j.BatchSize, logger)))
	}

	orchestrator := NewRecomputeOrchestrator(
		factStore, snapshotStore, runLock, cfg.Recommendation, metrics, logger, opts...,
	)

	var scheduler *Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = NewScheduler(orchestrator, cfg.Scheduler.Interval, cfg.Scheduler.RunOnStart, logger)
	}

	var authService *AuthService
	if cfg.Auth.Enabled {
		authService = NewAuthService(cfg, logger)
	}

	var rateLimiter *RateLimiter
	if cfg.Security.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(db.Redis, cfg.Security.RateLimit.Requests, cfg.Security.RateLimit.Window, logger)
	}

	return &Services{
		Auth:            authService,
		Health:          healthService,
		Metrics:         metrics,
		RunLock:         runLock,
		Recompute:       orchestrator,
		Recommendations: recommendationService,
		Scheduler:       scheduler,
		RateLimiter:     rateLimiter,
		Publisher:       publisher,
	}, nil
}

// Close stops the scheduler and flushes the event publisher.
func (s *Services) Close() error {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.Publisher != nil {
		return s.Publisher.Close()
	}
	return nil
}
