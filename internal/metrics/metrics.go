// ================================
// internal/metrics/metrics.go - Analysis metrics for MIRADOR-ROLLOUT
// ================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analyzer runs by outcome: ok, degraded, invalid, cached
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_analyses_total",
			Help: "Total number of rollout analyses by analyzer and outcome",
		},
		[]string{"analyzer", "outcome"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollout_analysis_duration_seconds",
			Help:    "Rollout analysis duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"analyzer"},
	)

	// Recommended actions, per decision kind (step, live)
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_decisions_total",
			Help: "Total number of recommended rollout actions",
		},
		[]string{"kind", "action"},
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_anomalies_detected_total",
			Help: "Total number of anomalies flagged by severity",
		},
		[]string{"severity"},
	)

	// Result cache
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_cache_requests_total",
			Help: "Total number of result cache requests",
		},
		[]string{"operation", "result"}, // get/set, hit/miss/error
	)

	// Metrics source queries
	SourceQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_source_queries_total",
			Help: "Total number of metrics source reads",
		},
		[]string{"source", "status"},
	)

	SourceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollout_source_query_duration_seconds",
			Help:    "Metrics source read duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"source"},
	)

	ActiveWebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rollout_websocket_connections_active",
			Help: "Number of active analysis stream connections",
		},
	)

	SettingsReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollout_settings_reloads_total",
			Help: "Total number of analyzer settings applied at runtime",
		},
	)
)
