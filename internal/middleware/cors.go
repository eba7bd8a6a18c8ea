package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/temcen/stayrec/internal/config"
)

func CORS(cfg *config.Config) gin.HandlerFunc {
	return cors.New(corsConfig(cfg.Security.CORS))
}

// corsConfig maps the "*" origin to AllowAllOrigins; gin-contrib/cors rejects
// a wildcard combined with credentials.
func corsConfig(c config.CORSConfig) cors.Config {
	cfg := cors.Config{
		AllowMethods: c.AllowedMethods,
		AllowHeaders: c.AllowedHeaders,
	}

	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}

	cfg.AllowOrigins = c.AllowedOrigins
	cfg.AllowCredentials = true
	return cfg
}
