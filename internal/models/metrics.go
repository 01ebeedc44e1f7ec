package models

import (
	"strings"
	"time"
	"unicode"
)

// Canonical metric names understood by the analyzers.
const (
	MetricErrorRate      = "error_rate"
	MetricResponseTime   = "response_time"
	MetricConversionRate = "conversion_rate"
	MetricUserCount      = "user_count"
)

// TrackedMetrics is the fixed feature order used by the predictor and the
// simulator projection.
var TrackedMetrics = []string{MetricErrorRate, MetricResponseTime, MetricConversionRate, MetricUserCount}

// MetricDataPoint is one timestamped sample of a named metric.
type MetricDataPoint struct {
	Timestamp  time.Time         `json:"timestamp"`
	MetricName string            `json:"metricName"`
	Value      float64           `json:"value"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// MetricSnapshot maps a canonical metric name to its current value.
type MetricSnapshot map[string]float64

// Get returns the value for name (normalised) or 0 when absent.
func (s MetricSnapshot) Get(name string) float64 {
	return s[NormalizeMetricName(name)]
}

// Clone returns an independent copy.
func (s MetricSnapshot) Clone() MetricSnapshot {
	out := make(MetricSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// NormalizeMetricName folds camelCase, PascalCase, kebab and dotted names into
// snake_case so "errorRate", "ErrorRate" and "error-rate" all match error_rate.
func NormalizeMetricName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	prevLower := false
	for _, r := range name {
		switch {
		case r == '-' || r == '.' || r == ' ' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// NormalizeLimits returns a copy of m keyed by canonical metric names.
func NormalizeLimits(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[NormalizeMetricName(k)] = v
	}
	return out
}
