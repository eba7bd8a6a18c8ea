package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/config"
	"github.com/temcen/stayrec/internal/recommender"
	"github.com/temcen/stayrec/pkg/models"
)

const (
	TriggerScheduler = "scheduler"
	TriggerAPI       = "api"
	TriggerStartup   = "startup"
)

// FactReader loads the raw behavioral facts.
type FactReader interface {
	FetchFacts(ctx context.Context) (recommender.Facts, error)
}

// SnapshotWriter replaces each snapshot table atomically.
type SnapshotWriter interface {
	ReplaceRecommendations(ctx context.Context, recs []models.UserRecommendation) error
	ReplaceSimilarities(ctx context.Context, sims []models.PropertySimilarity) error
	ReplacePopular(ctx context.Context, popular []models.PopularProperty) error
}

type EventPublisher interface {
	PublishRecompute(ctx context.Context, result *models.RecomputeResult) error
}

type GraphMirror interface {
	MirrorSimilarities(ctx context.Context, sims []models.PropertySimilarity) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type RecomputeOption func(*RecomputeOrchestrator)

func WithEventPublisher(p EventPublisher) RecomputeOption {
	return func(o *RecomputeOrchestrator) { o.publisher = p }
}

func WithGraphMirror(m GraphMirror) RecomputeOption {
	return func(o *RecomputeOrchestrator) { o.mirror = m }
}

func WithCacheInvalidator(c CacheInvalidator) RecomputeOption {
	return func(o *RecomputeOrchestrator) { o.cache = c }
}

// RecomputeOrchestrator runs the full pipeline: read facts, aggregate,
// compute similarities, popularity and per-user lists, then replace the three
// snapshots. Only one run is in flight at a time.
type RecomputeOrchestrator struct {
	facts     FactReader
	snapshots SnapshotWriter
	lock      *RunLock
	cfg       config.RecommendationConfig
	weights   recommender.SignalWeights
	metrics   *PipelineMetrics
	publisher EventPublisher
	mirror    GraphMirror
	cache     CacheInvalidator
	logger    *logrus.Logger
	now       func() time.Time

	mu      sync.RWMutex
	lastRun *models.RecomputeResult
}

func NewRecomputeOrchestrator(
	facts FactReader,
	snapshots SnapshotWriter,
	lock *RunLock,
	cfg config.RecommendationConfig,
	metrics *PipelineMetrics,
	logger *logrus.Logger,
	opts ...RecomputeOption,
) *RecomputeOrchestrator {
	o := &RecomputeOrchestrator{
		facts:     facts,
		snapshots: snapshots,
		lock:      lock,
		cfg:       cfg,
		weights: recommender.SignalWeights{
			Booking:     cfg.Weights.Booking,
			Favorite:    cfg.Weights.Favorite,
			ReviewScale: cfg.Weights.ReviewScale,
			MaxRating:   cfg.Weights.MaxRating,
		},
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recompute runs the pipeline once. It returns ErrRecomputeInProgress without
// a result when another run holds the lock. A failed run returns both the
// result, with Status failed, and the error.
func (o *RecomputeOrchestrator) Recompute(ctx context.Context, trigger string) (*models.RecomputeResult, error) {
	release, err := o.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &models.RecomputeResult{
		RunID:     uuid.New(),
		Trigger:   trigger,
		StartedAt: o.now().UTC(),
	}

	logger := o.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"trigger": trigger,
	})
	logger.Info("Recompute started")

	runErr := o.run(ctx, result, logger)

	result.FinishedAt = o.now().UTC()
	duration := result.FinishedAt.Sub(result.StartedAt)
	result.DurationMs = duration.Milliseconds()
	if runErr != nil {
		result.Status = models.RecomputeStatusFailed
		result.Error = runErr.Error()
		logger.WithError(runErr).Error("Recompute failed")
	} else {
		result.Status = models.RecomputeStatusCompleted
		logger.WithFields(logrus.Fields{
			"duration_ms":         result.DurationMs,
			"users":               result.Users,
			"items":               result.Items,
			"recommendation_rows": result.RecommendationRows,
			"similarity_edges":    result.SimilarityEdges,
			"popular_rows":        result.PopularRows,
			"cold_start":          result.ColdStart,
		}).Info("Recompute completed")
	}

	if o.metrics != nil {
		o.metrics.ObserveRun(result, duration)
	}

	o.mu.Lock()
	last := *result
	o.lastRun = &last
	o.mu.Unlock()

	if o.publisher != nil {
		if err := o.publisher.PublishRecompute(ctx, result); err != nil {
			logger.WithError(err).Warn("Failed to publish recompute event")
		}
	}

	return result, runErr
}

func (o *RecomputeOrchestrator) run(ctx context.Context, result *models.RecomputeResult, logger *logrus.Entry) error {
	facts, err := o.facts.FetchFacts(ctx)
	if err != nil {
		return fmt.Errorf("failed to read interaction facts: %w", err)
	}

	interactions, aggStats := recommender.Aggregate(facts, o.weights)
	result.Interactions = len(interactions)
	result.FilteredFacts = aggStats.Filtered
	result.ColdStart = recommender.ColdStart(interactions)
	if result.ColdStart {
		logger.Warn("No interactions found, recommendations will come from popularity only")
	}

	sims, simStats := recommender.ComputeSimilarity(interactions, o.cfg.TopKSim, logger)
	result.DroppedInteractions = simStats.Dropped
	result.Items = simStats.Items
	result.SimilarityEdges = sims.EdgeCount()

	// The fallback pool is wider than the persisted snapshot: history items
	// are skipped during the top-up and must not eat into topn.
	snapshotLimit := o.cfg.PopularityLimitOrTopN()
	pool := recommender.Popularity(facts.Bookings, facts.Favorites,
		max(snapshotLimit, recommender.FallbackPoolSize(interactions, o.cfg.TopN)))
	popular := pool[:min(len(pool), snapshotLimit)]
	recs := recommender.ScoreUsers(interactions, sims, pool, o.cfg.TopN)
	result.Users = recs.Len()
	result.RecommendationRows = recs.RowCount()
	result.FallbackRows = recs.FallbackCount()
	result.PopularRows = len(popular)

	generatedAt := result.StartedAt
	similarityRows := similarityRows(sims, generatedAt)

	if err := o.snapshots.ReplaceRecommendations(ctx, recommendationRows(recs, generatedAt)); err != nil {
		return fmt.Errorf("failed to replace recommendation snapshot: %w", err)
	}
	if err := o.snapshots.ReplaceSimilarities(ctx, similarityRows); err != nil {
		return fmt.Errorf("failed to replace similarity snapshot: %w", err)
	}
	if err := o.snapshots.ReplacePopular(ctx, popularRows(popular, generatedAt)); err != nil {
		return fmt.Errorf("failed to replace popular snapshot: %w", err)
	}

	if o.cache != nil {
		if err := o.cache.Invalidate(ctx); err != nil {
			logger.WithError(err).Warn("Failed to invalidate snapshot cache")
		}
	}
	if o.mirror != nil {
		if err := o.mirror.MirrorSimilarities(ctx, similarityRows); err != nil {
			logger.WithError(err).Warn("Failed to mirror similarities to graph")
		}
	}

	return nil
}

// LastRun returns a copy of the most recent finished run, or nil.
func (o *RecomputeOrchestrator) LastRun() *models.RecomputeResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.lastRun == nil {
		return nil
	}
	last := *o.lastRun
	return &last
}

func (o *RecomputeOrchestrator) Status() *models.RecomputeStatusResponse {
	return &models.RecomputeStatusResponse{
		Running: o.lock.Running(),
		LastRun: o.LastRun(),
	}
}

func recommendationRows(recs recommender.UserRecommendations, generatedAt time.Time) []models.UserRecommendation {
	rows := make([]models.UserRecommendation, 0, recs.RowCount())
	for _, userID := range recs.Users() {
		for _, item := range recommender.Rank(recs.For(userID)) {
			rows = append(rows, models.UserRecommendation{
				UserID:      userID,
				PropertyID:  item.ItemID,
				Score:       item.Score,
				Rank:        item.Rank,
				GeneratedAt: generatedAt,
			})
		}
	}
	return rows
}

func similarityRows(sims recommender.SimilarityMap, generatedAt time.Time) []models.PropertySimilarity {
	rows := make([]models.PropertySimilarity, 0, sims.EdgeCount())
	for _, itemID := range sims.Items() {
		for _, edge := range sims.Edges(itemID) {
			rows = append(rows, models.PropertySimilarity{
				PropertyA:   itemID,
				PropertyB:   edge.ItemID,
				Sim:         edge.Sim,
				GeneratedAt: generatedAt,
			})
		}
	}
	return rows
}

func popularRows(popular []recommender.PopularItem, generatedAt time.Time) []models.PopularProperty {
	rows := make([]models.PopularProperty, len(popular))
	for i, p := range popular {
		rows[i] = models.PopularProperty{
			PropertyID:  p.ItemID,
			Score:       p.Score,
			Rank:        i + 1,
			GeneratedAt: generatedAt,
		}
	}
	return rows
}
