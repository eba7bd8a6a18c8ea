package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/services"
)

type RecommendationHandler struct {
	reader services.RecommendationReaderInterface
	logger *logrus.Logger
}

func NewRecommendationHandler(reader services.RecommendationReaderInterface, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		reader: reader,
		logger: logger,
	}
}

// Get returns the stored recommendations of a user. Users without a list get
// the popular snapshot, so a valid id never yields 404.
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user ID format",
			},
		})
		return
	}

	response, err := h.reader.GetUserRecommendations(c.Request.Context(), userID.String())
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to load recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMMENDATIONS_UNAVAILABLE",
				"message": "Failed to load recommendations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) Similar(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("propertyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_PROPERTY_ID",
				"message": "Invalid property ID format",
			},
		})
		return
	}

	response, err := h.reader.GetSimilarProperties(c.Request.Context(), propertyID.String())
	if err != nil {
		h.logger.WithError(err).WithField("property_id", propertyID).Error("Failed to load similar properties")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "SIMILAR_PROPERTIES_UNAVAILABLE",
				"message": "Failed to load similar properties",
			},
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) Popular(c *gin.Context) {
	response, err := h.reader.GetPopular(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load popular properties")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "POPULAR_PROPERTIES_UNAVAILABLE",
				"message": "Failed to load popular properties",
			},
		})
		return
	}

	c.JSON(http.StatusOK, response)
}
