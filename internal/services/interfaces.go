package services

import (
	"context"

	"github.com/temcen/stayrec/pkg/models"
)

// RecommendationReaderInterface serves the persisted snapshots.
type RecommendationReaderInterface interface {
	GetUserRecommendations(ctx context.Context, userID string) (*models.RecommendationResponse, error)
	GetSimilarProperties(ctx context.Context, propertyID string) (*models.SimilarResponse, error)
	GetPopular(ctx context.Context) (*models.PopularResponse, error)
}

// RecomputeInterface triggers and reports recompute runs.
type RecomputeInterface interface {
	Recomputer
	Status() *models.RecomputeStatusResponse
}

// HealthCheckerInterface reports dependency health.
type HealthCheckerInterface interface {
	CheckHealth(ctx context.Context) *HealthStatus
}

// AdminTokenValidator checks bearer tokens on admin routes.
type AdminTokenValidator interface {
	ValidateAdminToken(tokenString string) (*models.AdminClaims, error)
}

// RateLimitChecker decides whether one more request from key fits its window.
type RateLimitChecker interface {
	Allow(ctx context.Context, key string) (*models.RateLimitInfo, bool)
}
