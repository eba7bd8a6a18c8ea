package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/config"
	"github.com/temcen/stayrec/internal/database"
	"github.com/temcen/stayrec/internal/handlers"
	"github.com/temcen/stayrec/internal/middleware"
	"github.com/temcen/stayrec/internal/services"
)

type App struct {
	config    *config.Config
	logger    *logrus.Logger
	db        *database.Database
	services  *services.Services
	handlers  *handlers.Handlers
	adminAuth services.AdminTokenValidator
	limiter   services.RateLimitChecker
	router    *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services
	if services.Auth != nil {
		app.adminAuth = services.Auth
	}
	if services.RateLimiter != nil {
		app.limiter = services.RateLimiter
	}

	// Initialize handlers
	app.handlers = handlers.New(app.logger, services)

	// Setup router
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

// Start launches the periodic recompute when the scheduler is enabled.
func (a *App) Start(ctx context.Context) {
	if a.services.Scheduler != nil {
		a.services.Scheduler.Start(ctx)
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if err := a.services.Close(); err != nil {
		a.logger.WithError(err).Warn("Error closing services")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsPath := a.config.Monitoring.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger, "/health", metricsPath))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Health check endpoint (no auth required)
	router.GET("/health", a.handlers.Health.Check)

	// Prometheus metrics endpoint (no auth required)
	if a.config.Monitoring.Enabled {
		router.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	}

	// Serving routes
	serving := router.Group("/")
	if a.limiter != nil {
		serving.Use(middleware.RateLimit(a.limiter, a.logger))
	}
	{
		serving.GET("/recommendations/:userId", a.handlers.Recommendation.Get)
		serving.GET("/similar/:propertyId", a.handlers.Recommendation.Similar)
		serving.GET("/popular", a.handlers.Recommendation.Popular)
	}

	// Job routes; the trigger is guarded when auth is enabled
	jobs := router.Group("/jobs")
	{
		recompute := []gin.HandlerFunc{a.handlers.Jobs.Recompute}
		if a.adminAuth != nil {
			recompute = append([]gin.HandlerFunc{middleware.AdminAuth(a.adminAuth, a.logger)}, recompute...)
		}
		jobs.POST("/recompute", recompute...)
		jobs.GET("/status", a.handlers.Jobs.Status)
	}

	a.router = router
}
