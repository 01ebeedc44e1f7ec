// Package monitoring exposes the HTTP-level Prometheus metrics for
// MIRADOR-ROLLOUT and the /metrics endpoint.
//
// Usage:
//
//  1. Setup metrics when building the router:
//     router := gin.New()
//     router.Use(monitoring.HTTPMetricsMiddleware())
//     monitoring.SetupPrometheusMetrics(router, "/metrics")
//
//  2. Record failures outside the request path:
//     monitoring.RecordError("source", "prometheus")
//
// Available Metrics:
//
// HTTP Metrics:
//   - rollout_http_requests_total{method, endpoint, status_code}
//   - rollout_http_request_duration_seconds{method, endpoint}
//   - rollout_http_requests_in_flight
//
// Error Metrics:
//   - rollout_errors_total{type, component}
//
// Build Info:
//   - rollout_build_info{version, component, go_version}
//
// Analysis metrics (rollout_analyses_total and friends) live in
// internal/metrics and are registered on import.
package monitoring

import (
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platformbuilds/mirador-rollout/internal/version"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rollout_http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollout_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // type: http, source, cache, analysis
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, inFlight, errorsTotal)
}

// SetupPrometheusMetrics exposes the default registry on path.
func SetupPrometheusMetrics(router gin.IRoutes, path string) {
	if path == "" {
		path = "/metrics"
	}

	// Register build info (ignore if already registered)
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rollout_build_info",
		Help: "Build information for MIRADOR-ROLLOUT",
		ConstLabels: prometheus.Labels{
			"version":    version.Version,
			"component":  "mirador-rollout",
			"go_version": runtime.Version(),
		},
	}, func() float64 { return 1 }))

	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics. The endpoint label is
// the matched route template, so path parameters do not explode cardinality.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

		if status >= 400 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordError counts a failure outside the HTTP status path.
func RecordError(errType, component string) {
	errorsTotal.WithLabelValues(errType, component).Inc()
}
