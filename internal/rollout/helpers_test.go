package rollout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/models"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func flag() models.FlagRef {
	return models.FlagRef{ProjectKey: "checkout", Environment: "production", FeatureFlagKey: "new-payment-flow"}
}

// hourly builds one sample per hour for a metric starting at t0.
func hourly(name string, values ...float64) []models.MetricDataPoint {
	out := make([]models.MetricDataPoint, len(values))
	for i, v := range values {
		out[i] = models.MetricDataPoint{Timestamp: t0.Add(time.Duration(i) * time.Hour), MetricName: name, Value: v}
	}
	return out
}

func point(ts time.Time, name string, v float64) models.MetricDataPoint {
	return models.MetricDataPoint{Timestamp: ts, MetricName: name, Value: v}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultSettings(), logging.Nop())
	require.NoError(t, err)
	return e
}

func threeSteps() []models.RolloutStep {
	return []models.RolloutStep{
		{StepNumber: 1, Percentage: 10, Duration: models.Duration(time.Hour)},
		{StepNumber: 2, Percentage: 50, Duration: models.Duration(2 * time.Hour)},
		{StepNumber: 3, Percentage: 100, Duration: models.Duration(4 * time.Hour)},
	}
}
