package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/metricsource"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/rollout"
	"github.com/platformbuilds/mirador-rollout/pkg/cache"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

var ref = models.FlagRef{ProjectKey: "shop", Environment: "prod", FeatureFlagKey: "new-cart"}

func steps() []models.RolloutStep {
	return []models.RolloutStep{
		{StepNumber: 1, Percentage: 10, Duration: models.Duration(time.Hour)},
		{StepNumber: 2, Percentage: 50, Duration: models.Duration(2 * time.Hour)},
		{StepNumber: 3, Percentage: 100, Duration: models.Duration(4 * time.Hour)},
	}
}

func newService(t *testing.T, opts RolloutServiceOptions) *RolloutService {
	t.Helper()
	s, err := NewRolloutService(rollout.DefaultSettings(), opts, logger.NewNop())
	require.NoError(t, err)
	return s
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Recent(context.Context, models.FlagRef) ([]models.MetricDataPoint, error) {
	return nil, errors.New("connection refused")
}
func (failingSource) Ping(context.Context) error { return errors.New("connection refused") }

func TestRolloutService_Simulate(t *testing.T) {
	s := newService(t, RolloutServiceOptions{})
	resp, meta := s.Simulate(context.Background(), models.RolloutSimulationRequest{
		FlagRef:       ref,
		Configuration: models.RolloutConfiguration{Steps: steps()},
	})
	assert.Len(t, resp.Steps, 3)
	assert.False(t, meta.Cached)
	assert.False(t, meta.Degraded)
	assert.NotEmpty(t, meta.ID)
}

func TestAnalyze_TimeoutDegrades(t *testing.T) {
	s := newService(t, RolloutServiceOptions{Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)

	resp, meta := analyze(context.Background(), s, AnalyzerRealtime, ref, nil, false,
		func(e *rollout.Engine) models.RealtimeAnalysisResponse {
			<-release
			return models.RealtimeAnalysisResponse{RecommendedAction: models.LiveAccelerate}
		},
		func(e *rollout.Engine, reason string) models.RealtimeAnalysisResponse { return e.Realtime.Degrade(reason) },
		func(r models.RealtimeAnalysisResponse) bool { return r.Degraded },
	)

	assert.Equal(t, models.LivePause, resp.RecommendedAction)
	assert.GreaterOrEqual(t, resp.Confidence, 0.9)
	assert.Contains(t, resp.Reasoning, timeoutReason)
	assert.True(t, meta.Degraded)
}

func TestRolloutService_ResultCache(t *testing.T) {
	mem := cache.NewNoopValkeyCache(logger.NewNop())
	s := newService(t, RolloutServiceOptions{Cache: mem, ResultCacheTTL: time.Minute})
	req := models.RolloutRecommendationRequest{
		FlagRef:              ref,
		CurrentConfiguration: models.RolloutConfiguration{Steps: steps()},
		OptimizationGoal:     "conservative",
	}

	first, meta := s.Recommend(context.Background(), req)
	require.False(t, meta.Cached)
	second, meta := s.Recommend(context.Background(), req)
	assert.True(t, meta.Cached)
	assert.Equal(t, first, second)

	// New settings invalidate earlier entries.
	cfg := config.GetDefaultConfig().Engine
	cfg.ResultCacheTTL = time.Minute
	require.NoError(t, s.ApplyEngineConfig(cfg))
	_, meta = s.Recommend(context.Background(), req)
	assert.False(t, meta.Cached)
}

func TestRolloutService_CacheDisabledByDefault(t *testing.T) {
	s := newService(t, RolloutServiceOptions{Cache: cache.NewNoopValkeyCache(logger.NewNop())})
	req := models.RolloutPredictionRequest{FlagRef: ref, Configuration: models.RolloutConfiguration{Steps: steps()}}
	_, _ = s.PredictSuccess(context.Background(), req)
	_, meta := s.PredictSuccess(context.Background(), req)
	assert.False(t, meta.Cached)
}

func TestRolloutService_ApplyEngineConfig(t *testing.T) {
	s := newService(t, RolloutServiceOptions{})
	before := s.Engine()

	cfg := config.GetDefaultConfig().Engine
	cfg.Anomaly.Algorithm = "spectral_residual"
	cfg.Timeout = 2 * time.Second
	require.NoError(t, s.ApplyEngineConfig(cfg))
	assert.NotSame(t, before, s.Engine())
	assert.Equal(t, "spectral_residual", s.Engine().Anomaly.Algorithm())
	assert.Equal(t, 2*time.Second, s.Timeout())

	current := s.Engine()
	cfg.Anomaly.Algorithm = "bogus"
	assert.Error(t, s.ApplyEngineConfig(cfg))
	assert.Same(t, current, s.Engine())
}

func TestRolloutService_AnalyzeLive(t *testing.T) {
	src := metricsource.NewStaticSource(map[string]float64{"error_rate": 8, "response_time": 300})
	s := newService(t, RolloutServiceOptions{Source: src})

	resp, _, err := s.AnalyzeLive(context.Background(), models.LiveAnalysisRequest{
		FlagRef:             ref,
		ActiveConfiguration: models.RolloutConfiguration{SafetyLimits: map[string]float64{"error_rate": 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.LiveRollback, resp.RecommendedAction)
	assert.Equal(t, 8.0, resp.CurrentMetrics["error_rate"])

	broken := newService(t, RolloutServiceOptions{Source: failingSource{}})
	_, _, err = broken.AnalyzeLive(context.Background(), models.LiveAnalysisRequest{FlagRef: ref})
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	none := newService(t, RolloutServiceOptions{})
	_, _, err = none.AnalyzeLive(context.Background(), models.LiveAnalysisRequest{FlagRef: ref})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestRolloutService_DetectAnomalies(t *testing.T) {
	s := newService(t, RolloutServiceOptions{})
	resp, meta := s.DetectAnomalies(context.Background(), models.AnomalyDetectionRequest{FlagRef: ref})
	assert.False(t, resp.HasAnomalies)
	assert.Zero(t, resp.RiskScore)
	assert.False(t, meta.Degraded)
}
