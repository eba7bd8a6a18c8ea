package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/stayrec/internal/config"
	"github.com/temcen/stayrec/pkg/models"
)

type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) GetUserRecommendations(ctx context.Context, userID string) ([]models.UserRecommendation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserRecommendation), args.Error(1)
}

func (m *MockSnapshotSource) GetSimilarProperties(ctx context.Context, propertyID string, limit int) ([]models.PropertySimilarity, error) {
	args := m.Called(ctx, propertyID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PropertySimilarity), args.Error(1)
}

func (m *MockSnapshotSource) GetPopularProperties(ctx context.Context, limit int) ([]models.PopularProperty, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PopularProperty), args.Error(1)
}

func servingConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Redis.CacheTTL = 15 * time.Minute
	cfg.Recommendation.TopN = 20
	cfg.Recommendation.SimilarLimit = 20
	return cfg
}

func newTestRecommendationService(source SnapshotSource, client *redis.Client) (*RecommendationService, *PipelineMetrics) {
	metrics := NewPipelineMetrics(prometheus.NewRegistry(), testLogger())
	return NewRecommendationService(source, client, servingConfig(), metrics, testLogger()), metrics
}

var generatedAt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestRecommendationService_PersonalizedRows(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("GetUserRecommendations", mock.Anything, "u1").Return([]models.UserRecommendation{
		{UserID: "u1", PropertyID: "p1", Score: 6.4, Rank: 1, GeneratedAt: generatedAt},
		{UserID: "u1", PropertyID: "p2", Score: 2, Rank: 2, GeneratedAt: generatedAt},
	}, nil)

	svc, _ := newTestRecommendationService(source, nil)

	resp, err := svc.GetUserRecommendations(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, models.RecommendationSourcePersonal, resp.Source)
	assert.Equal(t, []models.RecommendationItem{
		{PropertyID: "p1", Score: 6.4, Rank: 1},
		{PropertyID: "p2", Score: 2, Rank: 2},
	}, resp.Items)
	require.NotNil(t, resp.GeneratedAt)
	assert.Equal(t, generatedAt, *resp.GeneratedAt)
	source.AssertNotCalled(t, "GetPopularProperties", mock.Anything, mock.Anything)
}

func TestRecommendationService_UnknownUserGetsPopular(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("GetUserRecommendations", mock.Anything, "new-user").Return([]models.UserRecommendation{}, nil)
	source.On("GetPopularProperties", mock.Anything, 20).Return([]models.PopularProperty{
		{PropertyID: "p1", Score: 20, Rank: 1, GeneratedAt: generatedAt},
		{PropertyID: "p2", Score: 11, Rank: 2, GeneratedAt: generatedAt},
	}, nil)

	svc, _ := newTestRecommendationService(source, nil)

	resp, err := svc.GetUserRecommendations(context.Background(), "new-user")
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationSourcePopular, resp.Source)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "p1", resp.Items[0].PropertyID)
	assert.Equal(t, 1, resp.Items[0].Rank)
}

func TestRecommendationService_NothingComputedYet(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("GetUserRecommendations", mock.Anything, "u1").Return([]models.UserRecommendation{}, nil)
	source.On("GetPopularProperties", mock.Anything, 20).Return([]models.PopularProperty{}, nil)

	svc, _ := newTestRecommendationService(source, nil)

	resp, err := svc.GetUserRecommendations(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationSourceNone, resp.Source)
	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Items)
	assert.Nil(t, resp.GeneratedAt)
}

func TestRecommendationService_StorageFailure(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("GetUserRecommendations", mock.Anything, "u1").Return(nil, errors.New("connection refused"))

	svc, _ := newTestRecommendationService(source, nil)

	_, err := svc.GetUserRecommendations(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load recommendations")
}

func TestRecommendationService_CachesUntilInvalidated(t *testing.T) {
	_, client := newTestRedis(t)

	source := new(MockSnapshotSource)
	source.On("GetUserRecommendations", mock.Anything, "u1").Return([]models.UserRecommendation{
		{UserID: "u1", PropertyID: "p1", Score: 3, Rank: 1, GeneratedAt: generatedAt},
	}, nil)

	svc, metrics := newTestRecommendationService(source, client)
	ctx := context.Background()

	first, err := svc.GetUserRecommendations(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.GetUserRecommendations(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Items, second.Items)
	source.AssertNumberOfCalls(t, "GetUserRecommendations", 1)

	require.NoError(t, svc.Invalidate(ctx))

	third, err := svc.GetUserRecommendations(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	source.AssertNumberOfCalls(t, "GetUserRecommendations", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheRequestsTotal.WithLabelValues("recommendations", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheRequestsTotal.WithLabelValues("recommendations", "miss")))
}

func TestRecommendationService_RedisDownBypassesCache(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	source := new(MockSnapshotSource)
	source.On("GetSimilarProperties", mock.Anything, "p1", 20).Return([]models.PropertySimilarity{
		{PropertyA: "p1", PropertyB: "p2", Sim: 0.9, GeneratedAt: generatedAt},
	}, nil)

	svc, _ := newTestRecommendationService(source, client)

	resp, err := svc.GetSimilarProperties(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	require.Len(t, resp.Similar, 1)
}

func TestRecommendationService_SimilarProperties(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("GetSimilarProperties", mock.Anything, "p1", 20).Return([]models.PropertySimilarity{
		{PropertyA: "p1", PropertyB: "p7", Sim: 0.91, GeneratedAt: generatedAt},
		{PropertyA: "p1", PropertyB: "p3", Sim: 0.42, GeneratedAt: generatedAt},
	}, nil)

	svc, _ := newTestRecommendationService(source, nil)

	resp, err := svc.GetSimilarProperties(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", resp.PropertyID)
	assert.Equal(t, []models.RecommendationItem{
		{PropertyID: "p7", Score: 0.91, Rank: 1},
		{PropertyID: "p3", Score: 0.42, Rank: 2},
	}, resp.Similar)
}

func TestRecommendationService_SimilarPropertiesUnknownItem(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("GetSimilarProperties", mock.Anything, "p404", 20).Return([]models.PropertySimilarity{}, nil)

	svc, _ := newTestRecommendationService(source, nil)

	resp, err := svc.GetSimilarProperties(context.Background(), "p404")
	require.NoError(t, err)
	assert.Empty(t, resp.Similar)
	assert.Nil(t, resp.GeneratedAt)
}

func TestRecommendationService_GetPopular(t *testing.T) {
	source := new(MockSnapshotSource)
	source.On("GetPopularProperties", mock.Anything, 20).Return([]models.PopularProperty{
		{PropertyID: "p1", Score: 20, Rank: 1, GeneratedAt: generatedAt},
	}, nil)

	svc, _ := newTestRecommendationService(source, nil)

	resp, err := svc.GetPopular(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.RecommendationItem{{PropertyID: "p1", Score: 20, Rank: 1}}, resp.Items)
	require.NotNil(t, resp.GeneratedAt)
}

func TestRecommendationService_InvalidateWithoutRedis(t *testing.T) {
	svc, _ := newTestRecommendationService(new(MockSnapshotSource), nil)
	assert.NoError(t, svc.Invalidate(context.Background()))
}
