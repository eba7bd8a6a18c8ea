package services

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/database"
)

type checkFunc func(ctx context.Context) error

type HealthService struct {
	critical    map[string]checkFunc
	nonCritical map[string]checkFunc
	timeout     time.Duration
	logger      *logrus.Logger

	healthCheckStatus *prometheus.GaugeVec
	lastHealthCheck   *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
}

// NewHealthService checks Postgres as a critical dependency. Redis only backs
// the run lease and the read cache, so it and Neo4j are non-critical.
func NewHealthService(db *database.Database, reg prometheus.Registerer, logger *logrus.Logger) *HealthService {
	critical := map[string]checkFunc{
		"postgresql": func(ctx context.Context) error { return db.PG.Ping(ctx) },
	}
	nonCritical := map[string]checkFunc{
		"redis": func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() },
	}
	if db.Neo4j != nil {
		nonCritical["neo4j"] = func(ctx context.Context) error { return db.Neo4j.VerifyConnectivity(ctx) }
	}
	return newHealthService(critical, nonCritical, reg, logger)
}

func newHealthService(critical, nonCritical map[string]checkFunc, reg prometheus.Registerer, logger *logrus.Logger) *HealthService {
	hs := &HealthService{
		critical:    critical,
		nonCritical: nonCritical,
		timeout:     5 * time.Second,
		logger:      logger,
	}

	hs.healthCheckStatus = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"}), logger).(*prometheus.GaugeVec)

	hs.lastHealthCheck = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"}), logger).(*prometheus.GaugeVec)

	return hs
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for _, name := range sortedNames(s.critical) {
		if err := s.check(ctx, s.critical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	for _, name := range sortedNames(s.nonCritical) {
		if err := s.check(ctx, s.nonCritical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	return status
}

func (s *HealthService) check(ctx context.Context, fn checkFunc) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}

func sortedNames(checks map[string]checkFunc) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
