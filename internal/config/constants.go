package config

import "time"

const (
	// Service information
	ServiceName = "mirador-rollout"
	APIVersion  = "v1"
	EnvPrefix   = "ROLLOUT"

	DefaultShutdownTimeout = 30 * time.Second
	DefaultAnalysisTimeout = 5 * time.Second

	// Rate limiting defaults
	DefaultRateLimit       = 600 // requests per window per client
	DefaultRateLimitWindow = time.Minute

	// WebSocket limits
	DefaultWSMaxConnections = 1000
	DefaultWSMessageSize    = 1048576 // 1MB
	DefaultWSPingInterval   = 30      // seconds

	DefaultCacheTTL = 300 // 5 minutes

	// Metrics source
	SourceStatic          = "static"
	SourcePrometheus      = "prometheus"
	DefaultSourceTimeout  = 10 * time.Second
	DefaultSourceStep     = time.Minute
	DefaultSourceLookback = 15 * time.Minute
)

// DefaultQueries returns PromQL for each tracked metric. The label matchers
// use the flag reference placeholders {{project}}, {{environment}} and {{flag}}.
func DefaultQueries() map[string]string {
	sel := `project="{{project}}",environment="{{environment}}",flag="{{flag}}"`
	q := make(map[string]string, 4)
	q["error_rate"] = `100 * sum(rate(http_requests_total{` + sel + `,code=~"5.."}[5m])) / sum(rate(http_requests_total{` + sel + `}[5m]))`
	q["response_time"] = `1000 * histogram_quantile(0.95, sum by (le) (rate(http_request_duration_seconds_bucket{` + sel + `}[5m])))`
	q["conversion_rate"] = `100 * sum(rate(conversions_total{` + sel + `}[5m])) / sum(rate(sessions_total{` + sel + `}[5m]))`
	q["user_count"] = `sum(active_users{` + sel + `})`
	return q
}
