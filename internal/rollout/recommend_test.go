package rollout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/internal/models"
)

func recentErrors(n int, v float64) []models.MetricDataPoint {
	out := make([]models.MetricDataPoint, n)
	for i := range out {
		out[i] = point(t0.Add(time.Duration(i)*time.Minute), "error_rate", v)
	}
	return out
}

func TestRecommendation_GoalScaling(t *testing.T) {
	e := newTestEngine(t)

	cons := e.Recommender.Recommend(models.RolloutRecommendationRequest{
		FlagRef:              flag(),
		CurrentConfiguration: models.RolloutConfiguration{Steps: threeSteps()},
		OptimizationGoal:     "conservative",
	})
	steps := cons.RecommendedConfiguration.Steps
	require.Len(t, steps, 3)
	assert.Equal(t, []float64{7, 35, 70}, []float64{steps[0].Percentage, steps[1].Percentage, steps[2].Percentage})
	assert.Equal(t, 90*time.Minute, steps[0].Duration.Std())
	assert.Equal(t, 6*time.Hour, steps[2].Duration.Std())
	assert.Equal(t, "conservative", cons.RecommendedConfiguration.Strategy)
	assert.Len(t, cons.Adjustments, 6)

	aggr := e.Recommender.Recommend(models.RolloutRecommendationRequest{
		FlagRef:              flag(),
		CurrentConfiguration: models.RolloutConfiguration{Steps: threeSteps()},
		OptimizationGoal:     "aggressive",
	})
	steps = aggr.RecommendedConfiguration.Steps
	assert.Equal(t, []float64{13, 65, 100}, []float64{steps[0].Percentage, steps[1].Percentage, steps[2].Percentage})
	assert.Equal(t, 42*time.Minute, steps[0].Duration.Std())

	bal := e.Recommender.Recommend(models.RolloutRecommendationRequest{
		FlagRef:              flag(),
		CurrentConfiguration: models.RolloutConfiguration{Steps: threeSteps()},
	})
	assert.Equal(t, threeSteps(), bal.RecommendedConfiguration.Steps)
	assert.Empty(t, bal.Adjustments)
	assert.Equal(t, "balanced", bal.OptimizationGoal)
}

func TestRecommendation_InputNotMutated(t *testing.T) {
	e := newTestEngine(t)
	cfg := models.RolloutConfiguration{Steps: threeSteps()}
	_ = e.Recommender.Recommend(models.RolloutRecommendationRequest{FlagRef: flag(), CurrentConfiguration: cfg, OptimizationGoal: "aggressive"})
	assert.Equal(t, threeSteps(), cfg.Steps)
}

func TestRecommendation_Confidence(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name     string
		metrics  []models.MetricDataPoint
		expected float64
	}{
		{"lots of stable data clamps high", recentErrors(120, 0.2), 0.99},
		{"moderate data average errors", recentErrors(60, 1.0), 0.8},
		{"little unstable data", recentErrors(5, 3.0), 0.2},
		{"no data", nil, 0.4},
		{"some data", recentErrors(20, 1.0), 0.7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.Recommender.Recommend(models.RolloutRecommendationRequest{
				FlagRef:              flag(),
				CurrentMetrics:       tc.metrics,
				CurrentConfiguration: models.RolloutConfiguration{Steps: threeSteps()},
			})
			assert.InDelta(t, tc.expected, resp.Confidence, 1e-9)
			assert.GreaterOrEqual(t, resp.Confidence, 0.1)
			assert.LessOrEqual(t, resp.Confidence, 0.99)
		})
	}
}

func TestRecommendation_JustifiesLimitBreaches(t *testing.T) {
	e := newTestEngine(t)
	resp := e.Recommender.Recommend(models.RolloutRecommendationRequest{
		FlagRef:        flag(),
		CurrentMetrics: recentErrors(12, 2.5),
		CurrentConfiguration: models.RolloutConfiguration{
			Steps:        threeSteps(),
			SafetyLimits: map[string]float64{"error_rate": 2.0},
		},
		OptimizationGoal: "conservative",
	})

	assert.Contains(t, resp.Justifications[0], "Conservative goal")
	assert.Contains(t, resp.Justifications[len(resp.Justifications)-1], "Risk (high)")
	assert.InDelta(t, 0.5, resp.Confidence, 1e-9)
}

func TestRecommendation_Degrade(t *testing.T) {
	e := newTestEngine(t)
	cfg := models.RolloutConfiguration{Steps: threeSteps()}
	resp := e.Recommender.Degrade(models.RolloutRecommendationRequest{FlagRef: flag(), CurrentConfiguration: cfg}, "boom")
	assert.True(t, resp.Degraded)
	assert.Equal(t, cfg, resp.RecommendedConfiguration)
	assert.InDelta(t, 0.1, resp.Confidence, 1e-9)
}
