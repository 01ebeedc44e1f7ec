package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/internal/models"
)

func TestRiskAnalyzer_Assess(t *testing.T) {
	var r RiskAnalyzer

	assert.Empty(t, r.Assess(models.MetricSnapshot{"error_rate": 0.5, "response_time": 120, "conversion_rate": 6}))
	assert.Empty(t, r.Assess(models.MetricSnapshot{}))

	factors := r.Assess(models.MetricSnapshot{"error_rate": 3, "response_time": 900, "conversion_rate": 1})
	require.Len(t, factors, 3)
	assert.Equal(t, models.RiskHigh, factors[0].Level)
	assert.Equal(t, models.RiskMedium, factors[1].Level)
	assert.Equal(t, "low conversion rate", factors[2].Name)
}

func TestRiskAnalyzer_AssessLimits(t *testing.T) {
	var r RiskAnalyzer
	snap := models.MetricSnapshot{"error_rate": 6, "response_time": 850}

	factors := r.AssessLimits(snap, map[string]float64{"errorRate": 5, "response_time": 1000, "cpu": 80})
	require.Len(t, factors, 2)
	assert.Equal(t, "error_rate over safety limit", factors[0].Name)
	assert.Equal(t, models.RiskHigh, factors[0].Level)
	assert.Equal(t, "response_time approaching safety limit", factors[1].Name)
	assert.Equal(t, models.RiskMedium, factors[1].Level)

	assert.Empty(t, r.AssessLimits(snap, map[string]float64{"error_rate": 0}))
}
