package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/pkg/models"
)

// PipelineMetrics exposes recompute and serving metrics to Prometheus.
type PipelineMetrics struct {
	runDuration        prometheus.Histogram
	runsTotal          *prometheus.CounterVec
	snapshotRows       *prometheus.GaugeVec
	droppedTotal       prometheus.Counter
	fallbackTotal      prometheus.Counter
	lastSuccess        prometheus.Gauge
	cacheRequestsTotal *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer, logger *logrus.Logger) *PipelineMetrics {
	m := &PipelineMetrics{
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recompute_duration_seconds",
			Help:    "Duration of recompute runs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recompute_runs_total",
			Help: "Recompute runs by outcome",
		}, []string{"status"}),
		snapshotRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "snapshot_rows",
			Help: "Rows written by the last successful recompute, per snapshot table",
		}, []string{"table"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recompute_dropped_interactions_total",
			Help: "Interactions dropped because their ids fell outside the vocabulary",
		}),
		fallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recompute_fallback_items_total",
			Help: "Recommendation items filled from the popular list",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recompute_last_success_timestamp_seconds",
			Help: "Unix time of the last successful recompute",
		}),
		cacheRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_cache_requests_total",
			Help: "Snapshot cache lookups by kind and result",
		}, []string{"kind", "result"}),
	}

	m.runDuration = register(reg, m.runDuration, logger).(prometheus.Histogram)
	m.runsTotal = register(reg, m.runsTotal, logger).(*prometheus.CounterVec)
	m.snapshotRows = register(reg, m.snapshotRows, logger).(*prometheus.GaugeVec)
	m.droppedTotal = register(reg, m.droppedTotal, logger).(prometheus.Counter)
	m.fallbackTotal = register(reg, m.fallbackTotal, logger).(prometheus.Counter)
	m.lastSuccess = register(reg, m.lastSuccess, logger).(prometheus.Gauge)
	m.cacheRequestsTotal = register(reg, m.cacheRequestsTotal, logger).(*prometheus.CounterVec)

	return m
}

// register returns the collector already registered under the same
// descriptor when there is one, so building the metrics twice is harmless.
func register(reg prometheus.Registerer, c prometheus.Collector, logger *logrus.Logger) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		logger.WithError(err).Warn("Failed to register metric")
	}
	return c
}

// ObserveRun records the outcome of a finished run.
func (m *PipelineMetrics) ObserveRun(result *models.RecomputeResult, duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())
	m.runsTotal.WithLabelValues(result.Status).Inc()

	if result.Status != models.RecomputeStatusCompleted {
		return
	}

	m.snapshotRows.WithLabelValues("user_recommendations").Set(float64(result.RecommendationRows))
	m.snapshotRows.WithLabelValues("property_similarities").Set(float64(result.SimilarityEdges))
	m.snapshotRows.WithLabelValues("popular_properties").Set(float64(result.PopularRows))
	m.droppedTotal.Add(float64(result.DroppedInteractions))
	m.fallbackTotal.Add(float64(result.FallbackRows))
	m.lastSuccess.Set(float64(result.FinishedAt.Unix()))
}

// ObserveCache counts a snapshot cache lookup.
func (m *PipelineMetrics) ObserveCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequestsTotal.WithLabelValues(kind, result).Inc()
}
