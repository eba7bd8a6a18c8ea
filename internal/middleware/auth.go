package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/services"
)

const adminContextKey = "admin"

// AdminAuth requires a bearer JWT carrying the admin role.
func AdminAuth(validator services.AdminTokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "MISSING_AUTHORIZATION",
					"message": "Authorization header is required",
				},
			})
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_AUTHORIZATION_FORMAT",
					"message": "Authorization header must be in format 'Bearer <token>'",
				},
			})
			return
		}

		claims, err := validator.ValidateAdminToken(tokenParts[1])
		if err != nil {
			logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Rejected admin token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		c.Set(adminContextKey, claims.Name)
		c.Next()
	}
}

// AdminFromContext returns the name of the authenticated admin, if any.
func AdminFromContext(c *gin.Context) string {
	return c.GetString(adminContextKey)
}
