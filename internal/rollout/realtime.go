package rollout

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// Live metrics this healthy are grounds for accelerating.
const (
	accelerateErrorRate    = 0.1
	accelerateResponseTime = 100.0

	degradedPauseConfidence = 0.95
)

// RealtimeDecisionEngine turns the latest live metrics into an immediate
// action. On any internal failure it recommends pausing.
type RealtimeDecisionEngine struct {
	log logging.Logger
}

func NewRealtimeDecisionEngine(log logging.Logger) *RealtimeDecisionEngine {
	return &RealtimeDecisionEngine{log: log}
}

func (e *RealtimeDecisionEngine) Analyze(req models.RealtimeAnalysisRequest) models.RealtimeAnalysisResponse {
	return e.AnalyzeSnapshot(models.LatestSnapshot(req.RealtimeMetrics), req.ActiveConfiguration)
}

// AnalyzeSnapshot decides from an already-resolved snapshot, as produced by a
// metrics source.
func (e *RealtimeDecisionEngine) AnalyzeSnapshot(s models.MetricSnapshot, cfg models.RolloutConfiguration) models.RealtimeAnalysisResponse {
	return guard(e.log, "realtime", func() (models.RealtimeAnalysisResponse, error) {
		return e.analyze(s, cfg)
	}, func(reason string) models.RealtimeAnalysisResponse {
		resp := e.Degrade(reason)
		resp.CurrentMetrics = s
		return resp
	})
}

// Degrade is the fail-safe verdict: pause with high confidence.
func (e *RealtimeDecisionEngine) Degrade(reason string) models.RealtimeAnalysisResponse {
	return models.RealtimeAnalysisResponse{
		RecommendedAction: models.LivePause,
		Confidence:        degradedPauseConfidence,
		Alerts:            []models.MetricAlert{},
		Reasoning:         "Live analysis failed (" + reason + "); pausing the rollout until metrics can be evaluated",
		CurrentMetrics:    models.MetricSnapshot{},
		NextCheckIn:       models.Duration(nextCheckIn(models.LivePause)),
		Degraded:          true,
		AnalyzedAt:        time.Now().UTC(),
	}
}

func (e *RealtimeDecisionEngine) analyze(s models.MetricSnapshot, cfg models.RolloutConfiguration) (models.RealtimeAnalysisResponse, error) {
	for name, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.RealtimeAnalysisResponse{}, fmt.Errorf("metric %s has non-finite value", name)
		}
	}

	alerts := deriveAlerts(s, cfg.SafetyLimits)
	var critical, warnings int
	for _, a := range alerts {
		switch a.Severity {
		case models.AlertCritical:
			critical++
		case models.AlertWarning:
			warnings++
		}
	}

	var action models.LiveAction
	var reasoning string
	switch {
	case critical > 0:
		action = models.LiveRollback
		reasoning = fmt.Sprintf("%d metric(s) exceed 150%% of their safety limit", critical)
	case warnings > 1:
		action = models.LivePause
		reasoning = fmt.Sprintf("%d metrics exceed their safety limits", warnings)
	case warnings == 1:
		action = models.LiveContinue
		reasoning = "One metric exceeds its safety limit; continue while monitoring it closely"
	case healthyEnoughToAccelerate(s):
		action = models.LiveAccelerate
		reasoning = "No alerts and metrics are excellent; the rollout can be accelerated"
	default:
		action = models.LiveContinue
		reasoning = "All metrics are within their safety limits"
	}

	confidence := 0.8
	if action == models.LiveRollback {
		confidence = 0.95
	}
	if len(alerts) > 2 {
		confidence -= 0.2
	}
	if len(alerts) == 0 {
		confidence += 0.1
	}

	return models.RealtimeAnalysisResponse{
		RecommendedAction: action,
		Confidence:        clampProbability(confidence),
		Alerts:            alerts,
		Reasoning:         reasoning,
		CurrentMetrics:    s,
		NextCheckIn:       models.Duration(nextCheckIn(action)),
		AnalyzedAt:        time.Now().UTC(),
	}, nil
}

// deriveAlerts emits one alert per limited metric whose value exceeds its
// limit, ordered by metric name.
func deriveAlerts(s models.MetricSnapshot, limits map[string]float64) []models.MetricAlert {
	limits = models.NormalizeLimits(limits)
	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)

	alerts := []models.MetricAlert{}
	for _, name := range names {
		limit := limits[name]
		v, ok := s[name]
		if !ok || v <= limit {
			continue
		}
		level := models.AlertWarning
		if v > 1.5*limit {
			level = models.AlertCritical
		}
		alerts = append(alerts, models.MetricAlert{
			MetricName:   name,
			CurrentValue: v,
			Threshold:    limit,
			Severity:     level,
			Message:      fmt.Sprintf("%s %s: %.3f exceeds safety limit %.3f", strings.ToUpper(string(level)), name, v, limit),
		})
	}
	return alerts
}

// healthyEnoughToAccelerate requires both signals to be reported; a missing
// metric never counts as a healthy one.
func healthyEnoughToAccelerate(s models.MetricSnapshot) bool {
	errRate, okErr := s[models.MetricErrorRate]
	respTime, okRT := s[models.MetricResponseTime]
	return okErr && okRT && errRate < accelerateErrorRate && respTime < accelerateResponseTime
}

func nextCheckIn(a models.LiveAction) time.Duration {
	switch a {
	case models.LiveRollback:
		return 0
	case models.LivePause:
		return 5 * time.Minute
	case models.LiveContinue:
		return 15 * time.Minute
	case models.LiveAccelerate:
		return 30 * time.Minute
	}
	panic(fmt.Sprintf("rollout: unhandled live action %d", a))
}
