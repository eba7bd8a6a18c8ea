package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRecommendation is one row of the user_recommendations snapshot.
type UserRecommendation struct {
	UserID      string    `json:"user_id"`
	PropertyID  string    `json:"property_id"`
	Score       float64   `json:"score"`
	Rank        int       `json:"rank"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PropertySimilarity is one row of the property_similarities snapshot.
type PropertySimilarity struct {
	PropertyA   string    `json:"property_a"`
	PropertyB   string    `json:"property_b"`
	Sim         float64   `json:"sim"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PopularProperty is one row of the popular_properties snapshot.
type PopularProperty struct {
	PropertyID  string    `json:"property_id"`
	Score       float64   `json:"score"`
	Rank        int       `json:"rank"`
	GeneratedAt time.Time `json:"generated_at"`
}

type RecommendationItem struct {
	PropertyID string  `json:"property_id"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

const (
	RecommendationSourcePersonal = "personalized"
	RecommendationSourcePopular  = "popular"
	RecommendationSourceNone     = "none"
)

type RecommendationResponse struct {
	UserID      string               `json:"user_id"`
	Items       []RecommendationItem `json:"items"`
	Source      string               `json:"source"`
	GeneratedAt *time.Time           `json:"generated_at,omitempty"`
	CacheHit    bool                 `json:"cache_hit"`
}

type SimilarResponse struct {
	PropertyID  string               `json:"property_id"`
	Similar     []RecommendationItem `json:"similar"`
	GeneratedAt *time.Time           `json:"generated_at,omitempty"`
	CacheHit    bool                 `json:"cache_hit"`
}

type PopularResponse struct {
	Items       []RecommendationItem `json:"items"`
	GeneratedAt *time.Time           `json:"generated_at,omitempty"`
}

const (
	RecomputeStatusCompleted = "completed"
	RecomputeStatusFailed    = "failed"
)

// RecomputeResult summarises one recompute run. It is returned by the
// on-demand trigger, kept as the last known run and published as an event.
type RecomputeResult struct {
	RunID               uuid.UUID `json:"run_id"`
	Trigger             string    `json:"trigger"`
	Status              string    `json:"status"`
	Error               string    `json:"error,omitempty"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	DurationMs          int64     `json:"duration_ms"`
	ColdStart           bool      `json:"cold_start"`
	Interactions        int       `json:"interactions"`
	FilteredFacts       int       `json:"filtered_facts"`
	DroppedInteractions int       `json:"dropped_interactions"`
	Users               int       `json:"users"`
	Items               int       `json:"items"`
	SimilarityEdges     int       `json:"similarity_edges"`
	RecommendationRows  int       `json:"recommendation_rows"`
	FallbackRows        int       `json:"fallback_rows"`
	PopularRows         int       `json:"popular_rows"`
}

type RecomputeStatusResponse struct {
	Running bool             `json:"running"`
	LastRun *RecomputeResult `json:"last_run,omitempty"`
}
