package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/config"
	"github.com/temcen/stayrec/pkg/models"
)

const snapshotVersionKey = "stayrec:snapshot:version"

// SnapshotSource reads the persisted snapshot tables.
type SnapshotSource interface {
	GetUserRecommendations(ctx context.Context, userID string) ([]models.UserRecommendation, error)
	GetSimilarProperties(ctx context.Context, propertyID string, limit int) ([]models.PropertySimilarity, error)
	GetPopularProperties(ctx context.Context, limit int) ([]models.PopularProperty, error)
}

// RecommendationService serves the snapshots, with an optional Redis
// read-through cache. Cache keys embed the snapshot version, which every
// successful recompute bumps, so a new snapshot is never hidden behind an
// old cache entry.
type RecommendationService struct {
	source       SnapshotSource
	redis        *redis.Client
	ttl          time.Duration
	topN         int
	similarLimit int
	metrics      *PipelineMetrics
	logger       *logrus.Logger
}

func NewRecommendationService(
	source SnapshotSource,
	redisClient *redis.Client,
	cfg *config.Config,
	metrics *PipelineMetrics,
	logger *logrus.Logger,
) *RecommendationService {
	return &RecommendationService{
		source:       source,
		redis:        redisClient,
		ttl:          cfg.Redis.CacheTTL,
		topN:         cfg.Recommendation.TopN,
		similarLimit: cfg.Recommendation.SimilarLimit,
		metrics:      metrics,
		logger:       logger,
	}
}

// GetUserRecommendations returns the stored list for userID. A user without
// rows gets the popular snapshot; before any run the list is empty.
func (s *RecommendationService) GetUserRecommendations(ctx context.Context, userID string) (*models.RecommendationResponse, error) {
	var resp models.RecommendationResponse
	key, hit := s.cached(ctx, "recommendations", userID, &resp)
	if hit {
		resp.CacheHit = true
		return &resp, nil
	}

	rows, err := s.source.GetUserRecommendations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}

	resp = models.RecommendationResponse{
		UserID: userID,
		Items:  make([]models.RecommendationItem, 0, len(rows)),
		Source: models.RecommendationSourcePersonal,
	}
	for _, r := range rows {
		resp.Items = append(resp.Items, models.RecommendationItem{PropertyID: r.PropertyID, Score: r.Score, Rank: r.Rank})
	}
	if len(rows) > 0 {
		generatedAt := rows[0].GeneratedAt
		resp.GeneratedAt = &generatedAt
	} else {
		popular, err := s.source.GetPopularProperties(ctx, s.topN)
		if err != nil {
			return nil, fmt.Errorf("failed to load popular fallback: %w", err)
		}
		resp.Items, resp.GeneratedAt = popularItems(popular)
		resp.Source = models.RecommendationSourcePopular
		if len(popular) == 0 {
			resp.Source = models.RecommendationSourceNone
		}
	}

	s.store(ctx, key, &resp)
	return &resp, nil
}

// GetSimilarProperties returns the strongest similarity edges of propertyID,
// ranked by position.
func (s *RecommendationService) GetSimilarProperties(ctx context.Context, propertyID string) (*models.SimilarResponse, error) {
	var resp models.SimilarResponse
	key, hit := s.cached(ctx, "similar", propertyID, &resp)
	if hit {
		resp.CacheHit = true
		return &resp, nil
	}

	rows, err := s.source.GetSimilarProperties(ctx, propertyID, s.similarLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load similar properties: %w", err)
	}

	resp = models.SimilarResponse{
		PropertyID: propertyID,
		Similar:    make([]models.RecommendationItem, 0, len(rows)),
	}
	for i, r := range rows {
		resp.Similar = append(resp.Similar, models.RecommendationItem{PropertyID: r.PropertyB, Score: r.Sim, Rank: i + 1})
	}
	if len(rows) > 0 {
		generatedAt := rows[0].GeneratedAt
		resp.GeneratedAt = &generatedAt
	}

	s.store(ctx, key, &resp)
	return &resp, nil
}

func (s *RecommendationService) GetPopular(ctx context.Context) (*models.PopularResponse, error) {
	popular, err := s.source.GetPopularProperties(ctx, s.topN)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular properties: %w", err)
	}
	items, generatedAt := popularItems(popular)
	return &models.PopularResponse{Items: items, GeneratedAt: generatedAt}, nil
}

// Invalidate moves every reader to a fresh cache namespace.
func (s *RecommendationService) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Incr(ctx, snapshotVersionKey).Err(); err != nil {
		return fmt.Errorf("failed to bump snapshot version: %w", err)
	}
	return nil
}

// cached looks key up and decodes it into dst. It returns the key to store a
// fresh value under, or "" when caching is unavailable.
func (s *RecommendationService) cached(ctx context.Context, kind, id string, dst interface{}) (string, bool) {
	if s.redis == nil || s.ttl <= 0 {
		return "", false
	}

	version, err := s.redis.Get(ctx, snapshotVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.WithError(err).Warn("Snapshot cache unavailable")
		return "", false
	}
	key := fmt.Sprintf("stayrec:v%d:%s:%s", version, kind, id)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WithError(err).WithField("key", key).Warn("Snapshot cache read failed")
		}
		s.observeCache(kind, false)
		return key, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		s.observeCache(kind, false)
		return key, false
	}

	s.observeCache(kind, true)
	return key, true
}

func (s *RecommendationService) store(ctx context.Context, key string, value interface{}) {
	if key == "" {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode cache entry")
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to write cache entry")
	}
}

func (s *RecommendationService) observeCache(kind string, hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCache(kind, hit)
	}
}

func popularItems(popular []models.PopularProperty) ([]models.RecommendationItem, *time.Time) {
	items := make([]models.RecommendationItem, 0, len(popular))
	for _, p := range popular {
		items = append(items, models.RecommendationItem{PropertyID: p.PropertyID, Score: p.Score, Rank: p.Rank})
	}
	if len(popular) == 0 {
		return items, nil
	}
	generatedAt := popular[0].GeneratedAt
	return items, &generatedAt
}
