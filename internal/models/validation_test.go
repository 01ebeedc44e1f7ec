package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = FlagRef{ProjectKey: "shop", Environment: "prod", FeatureFlagKey: "new-cart"}

func steps(pcts ...float64) []RolloutStep {
	out := make([]RolloutStep, len(pcts))
	for i, p := range pcts {
		out[i] = RolloutStep{StepNumber: i + 1, Percentage: p, Duration: Duration(time.Hour)}
	}
	return out
}

func TestRolloutConfiguration_Validate(t *testing.T) {
	assert.ErrorIs(t, RolloutConfiguration{}.Validate(true), ErrEmptySteps)
	assert.NoError(t, RolloutConfiguration{}.Validate(false))
	assert.NoError(t, RolloutConfiguration{Steps: steps(5, 25, 25, 100)}.Validate(true))
	assert.ErrorIs(t, RolloutConfiguration{Steps: steps(10, 50, 30)}.Validate(true), ErrNonMonotonicSteps)
	assert.Error(t, RolloutConfiguration{Steps: steps(10, 120)}.Validate(true))
	assert.Error(t, RolloutConfiguration{Steps: steps(-1)}.Validate(true))

	dup := steps(10, 20)
	dup[1].StepNumber = 1
	assert.Error(t, RolloutConfiguration{Steps: dup}.Validate(true))

	// Ordering is by step number, not slice position.
	shuffled := []RolloutStep{{StepNumber: 2, Percentage: 50}, {StepNumber: 1, Percentage: 10}}
	assert.NoError(t, RolloutConfiguration{Steps: shuffled}.Validate(true))
}

func TestRequests_Validate(t *testing.T) {
	assert.ErrorIs(t, RealtimeAnalysisRequest{FlagRef: ref}.Validate(), ErrNoMetrics)
	assert.ErrorIs(t, RealtimeAnalysisRequest{RealtimeMetrics: []MetricDataPoint{{MetricName: "x"}}}.Validate(), ErrMissingFlagRef)
	assert.NoError(t, RealtimeAnalysisRequest{FlagRef: ref, RealtimeMetrics: []MetricDataPoint{{MetricName: "error_rate", Value: 1}}}.Validate())
	assert.Error(t, RealtimeAnalysisRequest{FlagRef: ref, RealtimeMetrics: []MetricDataPoint{{Value: 1}}}.Validate())

	assert.ErrorIs(t, RolloutSimulationRequest{FlagRef: ref}.Validate(), ErrEmptySteps)
	assert.NoError(t, RolloutSimulationRequest{FlagRef: ref, Configuration: RolloutConfiguration{Steps: steps(10, 100)}}.Validate())

	assert.ErrorIs(t, RolloutRecommendationRequest{FlagRef: ref, OptimizationGoal: "yolo"}.Validate(), ErrUnknownGoal)
	assert.NoError(t, RolloutRecommendationRequest{FlagRef: ref, OptimizationGoal: "Aggressive"}.Validate())

	assert.NoError(t, AnomalyDetectionRequest{FlagRef: ref}.Validate())
	assert.Error(t, AnomalyDetectionRequest{FlagRef: ref, LookbackDays: -2}.Validate())
	assert.NoError(t, RolloutPredictionRequest{FlagRef: ref}.Validate())
	assert.ErrorIs(t, LiveAnalysisRequest{}.Validate(), ErrMissingFlagRef)
}

func TestRolloutAction_Text(t *testing.T) {
	for _, a := range RolloutActions {
		b, err := a.MarshalText()
		require.NoError(t, err)
		var back RolloutAction
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, a, back)
	}
	var a RolloutAction
	assert.Error(t, a.UnmarshalText([]byte("continue")))
	_, err := RolloutAction(9).MarshalText()
	assert.Error(t, err)

	out, err := json.Marshal(AIDecision{Action: ActionRollback})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"recommendedAction":"rollback"`)
}

func TestLiveAction_Text(t *testing.T) {
	out, err := json.Marshal(RealtimeAnalysisResponse{RecommendedAction: LivePause})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"recommendedAction":"pause"`)

	var a LiveAction
	require.NoError(t, a.UnmarshalText([]byte("continue")))
	assert.Equal(t, LiveContinue, a)
	assert.Error(t, a.UnmarshalText([]byte("proceed")))
}

func TestDuration_JSON(t *testing.T) {
	var s RolloutStep
	require.NoError(t, json.Unmarshal([]byte(`{"stepNumber":1,"percentage":10,"duration":"1h30m"}`), &s))
	assert.Equal(t, 90*time.Minute, s.Duration.Std())

	require.NoError(t, json.Unmarshal([]byte(`{"duration":3600}`), &s))
	assert.Equal(t, time.Hour, s.Duration.Std())

	require.NoError(t, json.Unmarshal([]byte(`{"duration":"120"}`), &s))
	assert.Equal(t, 2*time.Minute, s.Duration.Std())

	assert.Error(t, json.Unmarshal([]byte(`{"duration":"soon"}`), &s))

	b, err := json.Marshal(RolloutStep{Duration: Duration(45 * time.Minute)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"duration":"45m0s"`)
}

func TestRolloutSimulationRequest_SimulationDaysBounds(t *testing.T) {
	req := RolloutSimulationRequest{FlagRef: ref, Configuration: RolloutConfiguration{Steps: steps(10, 100)}}

	req.SimulationDays = MaxSimulationDays
	assert.NoError(t, req.Validate())

	req.SimulationDays = MaxSimulationDays + 1
	assert.ErrorContains(t, req.Validate(), "must not exceed 365")

	req.SimulationDays = 5_000_000
	assert.Error(t, req.Validate())

	req.SimulationDays = -1
	assert.Error(t, req.Validate())
}
