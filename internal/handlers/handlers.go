package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Jobs           *JobsHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Recommendation: NewRecommendationHandler(services.Recommendations, logger),
		Jobs:           NewJobsHandler(services.Recompute, logger),
	}
}
