package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/services"
)

type JobsHandler struct {
	recompute services.RecomputeInterface
	logger    *logrus.Logger
}

func NewJobsHandler(recompute services.RecomputeInterface, logger *logrus.Logger) *JobsHandler {
	return &JobsHandler{
		recompute: recompute,
		logger:    logger,
	}
}

// Recompute runs the pipeline synchronously and returns the run summary. The
// run is detached from the request so a client disconnect does not abort it
// half way.
func (h *JobsHandler) Recompute(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.recompute.Recompute(ctx, services.TriggerAPI)
	if errors.Is(err, services.ErrRecomputeInProgress) {
		c.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"code":    "RECOMPUTE_IN_PROGRESS",
				"message": "A recompute is already running",
			},
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("On-demand recompute failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMPUTE_FAILED",
				"message": "Recompute failed, previous snapshots are still served",
			},
			"run": result,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *JobsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.recompute.Status())
}
