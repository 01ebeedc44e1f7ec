package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/metrics"
	"github.com/platformbuilds/mirador-rollout/internal/metricsource"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/rollout"
	"github.com/platformbuilds/mirador-rollout/internal/tracing"
	"github.com/platformbuilds/mirador-rollout/pkg/cache"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// ErrSourceUnavailable wraps metrics source failures during live analysis.
var ErrSourceUnavailable = errors.New("metrics source unavailable")

const timeoutReason = "analysis timed out"

// Analyzer names used in metrics, spans and cache keys.
const (
	AnalyzerAnomaly        = "anomaly"
	AnalyzerPredictor      = "predictor"
	AnalyzerSimulator      = "simulator"
	AnalyzerRealtime       = "realtime"
	AnalyzerRecommendation = "recommendation"
)

// AnalysisMeta describes how a response was produced.
type AnalysisMeta struct {
	ID       string
	Cached   bool
	Degraded bool
	Duration time.Duration
}

// RolloutServiceOptions carries the optional collaborators of RolloutService.
type RolloutServiceOptions struct {
	Timeout        time.Duration
	ResultCacheTTL time.Duration
	Cache          cache.ValkeyCluster
	Source         metricsource.Source
	Tracer         *tracing.AnalysisTracer
}

// RolloutService runs the analyzers under a deadline, with tracing, metrics
// and an optional result cache. Analyzer settings can be swapped at runtime;
// calls in flight keep the engine they started with.
type RolloutService struct {
	engine     atomic.Pointer[rollout.Engine]
	timeout    atomic.Int64
	cacheTTL   atomic.Int64
	generation atomic.Uint64

	cache  cache.ValkeyCluster
	source metricsource.Source
	tracer *tracing.AnalysisTracer
	logger logger.Logger
}

// NewRolloutService creates the service with an engine built from settings.
func NewRolloutService(settings rollout.Settings, opts RolloutServiceOptions, log logger.Logger) (*RolloutService, error) {
	if log == nil {
		log = logger.NewNop()
	}
	s := &RolloutService{
		cache:  opts.Cache,
		source: opts.Source,
		tracer: opts.Tracer,
		logger: log,
	}
	if s.tracer == nil {
		s.tracer = tracing.NewAnalysisTracer(config.ServiceName)
	}
	if err := s.apply(settings, opts.Timeout, opts.ResultCacheTTL); err != nil {
		return nil, err
	}
	return s, nil
}

// ApplyEngineConfig rebuilds the engine from a reloaded engine section. The
// old engine stays in place when the new settings are invalid.
func (s *RolloutService) ApplyEngineConfig(cfg config.EngineConfig) error {
	if err := s.apply(cfg.Settings(), cfg.Timeout, cfg.ResultCacheTTL); err != nil {
		s.logger.Error("Rejected analyzer settings", "error", err)
		return err
	}
	metrics.SettingsReloads.Inc()
	s.logger.Info("Analyzer settings applied", "timeout", cfg.Timeout, "algorithm", cfg.Anomaly.Algorithm)
	return nil
}

func (s *RolloutService) apply(settings rollout.Settings, timeout, cacheTTL time.Duration) error {
	engine, err := rollout.NewEngine(settings, logging.FromCoreLogger(s.logger))
	if err != nil {
		return fmt.Errorf("build rollout engine: %w", err)
	}
	if timeout <= 0 {
		timeout = config.DefaultAnalysisTimeout
	}
	s.engine.Store(engine)
	s.timeout.Store(int64(timeout))
	s.cacheTTL.Store(int64(cacheTTL))
	s.generation.Add(1)
	return nil
}

// Engine returns the engine currently serving requests.
func (s *RolloutService) Engine() *rollout.Engine { return s.engine.Load() }

// Timeout returns the per-analysis deadline.
func (s *RolloutService) Timeout() time.Duration { return time.Duration(s.timeout.Load()) }

// Source returns the configured metrics source, or nil.
func (s *RolloutService) Source() metricsource.Source { return s.source }

func (s *RolloutService) DetectAnomalies(ctx context.Context, req models.AnomalyDetectionRequest) (models.AnomalyDetectionResponse, AnalysisMeta) {
	resp, meta := analyze(ctx, s, AnalyzerAnomaly, req.FlagRef, req, true,
		func(e *rollout.Engine) models.AnomalyDetectionResponse { return e.Anomaly.Detect(req) },
		func(e *rollout.Engine, reason string) models.AnomalyDetectionResponse { return e.Anomaly.Degrade(reason) },
		func(r models.AnomalyDetectionResponse) bool { return r.Degraded },
	)
	if !meta.Cached {
		for _, a := range resp.Anomalies {
			metrics.AnomaliesDetected.WithLabelValues(string(a.Severity)).Inc()
		}
	}
	return resp, meta
}

func (s *RolloutService) PredictSuccess(ctx context.Context, req models.RolloutPredictionRequest) (models.RolloutPredictionResponse, AnalysisMeta) {
	return analyze(ctx, s, AnalyzerPredictor, req.FlagRef, req, true,
		func(e *rollout.Engine) models.RolloutPredictionResponse { return e.Predictor.Predict(req) },
		func(e *rollout.Engine, reason string) models.RolloutPredictionResponse {
			return e.Predictor.Fallback(req, reason)
		},
		func(r models.RolloutPredictionResponse) bool { return r.Degraded },
	)
}

func (s *RolloutService) Simulate(ctx context.Context, req models.RolloutSimulationRequest) (models.RolloutSimulationResponse, AnalysisMeta) {
	resp, meta := analyze(ctx, s, AnalyzerSimulator, req.FlagRef, req, true,
		func(e *rollout.Engine) models.RolloutSimulationResponse { return e.Simulator.Simulate(req) },
		func(e *rollout.Engine, reason string) models.RolloutSimulationResponse {
			return e.Simulator.Degrade(req, reason)
		},
		func(r models.RolloutSimulationResponse) bool { return r.Degraded },
	)
	if !meta.Cached {
		for _, st := range resp.Steps {
			metrics.DecisionsTotal.WithLabelValues("step", st.Decision.Action.String()).Inc()
		}
	}
	return resp, meta
}

func (s *RolloutService) Recommend(ctx context.Context, req models.RolloutRecommendationRequest) (models.RolloutRecommendations, AnalysisMeta) {
	return analyze(ctx, s, AnalyzerRecommendation, req.FlagRef, req, true,
		func(e *rollout.Engine) models.RolloutRecommendations { return e.Recommender.Recommend(req) },
		func(e *rollout.Engine, reason string) models.RolloutRecommendations {
			return e.Recommender.Degrade(req, reason)
		},
		func(r models.RolloutRecommendations) bool { return r.Degraded },
	)
}

// AnalyzeRealtime is never cached: the answer depends on the moment it is asked.
func (s *RolloutService) AnalyzeRealtime(ctx context.Context, req models.RealtimeAnalysisRequest) (models.RealtimeAnalysisResponse, AnalysisMeta) {
	return s.realtime(ctx, req.FlagRef, func(e *rollout.Engine) models.RealtimeAnalysisResponse {
		return e.Realtime.Analyze(req)
	})
}

// AnalyzeLive reads the current metrics from the configured source and runs
// the realtime decision on them. Source failures are returned, wrapped in
// ErrSourceUnavailable; they are not degraded into a decision.
func (s *RolloutService) AnalyzeLive(ctx context.Context, req models.LiveAnalysisRequest) (models.RealtimeAnalysisResponse, AnalysisMeta, error) {
	if s.source == nil {
		return models.RealtimeAnalysisResponse{}, AnalysisMeta{}, fmt.Errorf("%w: none configured", ErrSourceUnavailable)
	}

	points, err := s.readSource(ctx, req.FlagRef)
	if err != nil {
		return models.RealtimeAnalysisResponse{}, AnalysisMeta{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	snapshot := models.LatestSnapshot(points)

	resp, meta := s.realtime(ctx, req.FlagRef, func(e *rollout.Engine) models.RealtimeAnalysisResponse {
		return e.Realtime.AnalyzeSnapshot(snapshot, req.ActiveConfiguration)
	})
	return resp, meta, nil
}

func (s *RolloutService) realtime(ctx context.Context, ref models.FlagRef, call func(*rollout.Engine) models.RealtimeAnalysisResponse) (models.RealtimeAnalysisResponse, AnalysisMeta) {
	resp, meta := analyze(ctx, s, AnalyzerRealtime, ref, nil, false,
		call,
		func(e *rollout.Engine, reason string) models.RealtimeAnalysisResponse { return e.Realtime.Degrade(reason) },
		func(r models.RealtimeAnalysisResponse) bool { return r.Degraded },
	)
	metrics.DecisionsTotal.WithLabelValues("live", resp.RecommendedAction.String()).Inc()
	return resp, meta
}

func (s *RolloutService) readSource(ctx context.Context, ref models.FlagRef) ([]models.MetricDataPoint, error) {
	ctx, span := s.tracer.StartSourceSpan(ctx, s.source.Name())
	defer span.End()

	start := time.Now()
	points, err := s.source.Recent(ctx, ref)
	metrics.SourceQueryDuration.WithLabelValues(s.source.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceQueriesTotal.WithLabelValues(s.source.Name(), "error").Inc()
		s.tracer.RecordError(span, err)
		s.logger.Warn("Metrics source read failed", "source", s.source.Name(), "flag", ref.FeatureFlagKey, "error", err)
		return nil, err
	}
	metrics.SourceQueriesTotal.WithLabelValues(s.source.Name(), "success").Inc()
	return points, nil
}

// analyze runs call under the service deadline. When the deadline passes
// first, the caller gets degrade's answer and the computation is abandoned.
// Successful, non-degraded results are cached when cacheable and a TTL is set.
func analyze[Resp any](
	ctx context.Context,
	s *RolloutService,
	analyzer string,
	ref models.FlagRef,
	req any,
	cacheable bool,
	call func(*rollout.Engine) Resp,
	degrade func(*rollout.Engine, string) Resp,
	degraded func(Resp) bool,
) (Resp, AnalysisMeta) {
	meta := AnalysisMeta{ID: uuid.NewString()}
	engine := s.engine.Load()
	start := time.Now()

	ctx, span := s.tracer.StartAnalysisSpan(ctx, analyzer, ref)
	defer span.End()

	ttl := time.Duration(s.cacheTTL.Load())
	var key string
	if cacheable && ttl > 0 && s.cache != nil {
		key = s.cacheKey(analyzer, req)
	}
	if key != "" {
		if resp, ok := lookupCached[Resp](ctx, s, key); ok {
			meta.Cached = true
			meta.Duration = time.Since(start)
			metrics.AnalysesTotal.WithLabelValues(analyzer, "cached").Inc()
			s.tracer.RecordCacheResult(span, true)
			return resp, meta
		}
	}

	deadline, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	done := make(chan Resp, 1)
	go func() { done <- call(engine) }()

	var resp Resp
	select {
	case resp = <-done:
	case <-deadline.Done():
		s.logger.Warn("Analysis deadline exceeded; returning safe default",
			"analyzer", analyzer, "flag", ref.FeatureFlagKey, "timeout", s.Timeout())
		resp = degrade(engine, timeoutReason)
	}

	meta.Degraded = degraded(resp)
	meta.Duration = time.Since(start)
	outcome := "ok"
	if meta.Degraded {
		outcome = "degraded"
	}
	metrics.AnalysesTotal.WithLabelValues(analyzer, outcome).Inc()
	metrics.AnalysisDuration.WithLabelValues(analyzer).Observe(meta.Duration.Seconds())
	s.tracer.RecordAnalysisResult(span, meta.Duration, outcome)

	if key != "" && !meta.Degraded {
		if err := s.cache.CacheQueryResult(ctx, key, resp, ttl); err != nil {
			s.logger.Warn("Failed to cache analysis result", "analyzer", analyzer, "error", err)
		}
	}
	return resp, meta
}

func lookupCached[Resp any](ctx context.Context, s *RolloutService, key string) (Resp, bool) {
	var resp Resp
	data, err := s.cache.GetCachedQueryResult(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Result cache read failed", "error", err)
		}
		return resp, false
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		s.logger.Warn("Discarding unreadable cached result", "error", err)
		return resp, false
	}
	return resp, true
}

// cacheKey hashes the analyzer, the settings generation and the full request.
func (s *RolloutService) cacheKey(analyzer string, req any) string {
	body, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(analyzer))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(s.generation.Load(), 10)))
	h.Write([]byte{0})
	h.Write(body)
	return analyzer + ":" + hex.EncodeToString(h.Sum(nil))
}
