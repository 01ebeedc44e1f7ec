package rollout

import (
	"fmt"
	"strings"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// Values assumed for the synthetic feature vector when the configuration is
// silent about a metric.
const (
	defaultErrorRate      = 1.0
	defaultResponseTime   = 200.0
	defaultConversionRate = 10.0
	defaultUserCount      = 1000.0
)

// SuccessPredictor estimates the probability that a full rollout succeeds.
//
// The classifier is refitted from the request's history on every call and
// discarded afterwards. That keeps the analyzer stateless and trivially
// parallel at the cost of a fit per request, bounded by
// PredictorSettings.Iterations over at most one row per day of history.
type SuccessPredictor struct {
	settings PredictorSettings
	risk     RiskAnalyzer
	log      logging.Logger
}

func NewSuccessPredictor(s PredictorSettings, log logging.Logger) *SuccessPredictor {
	return &SuccessPredictor{settings: s, log: log}
}

func (p *SuccessPredictor) Predict(req models.RolloutPredictionRequest) models.RolloutPredictionResponse {
	return guard(p.log, "predictor", func() (models.RolloutPredictionResponse, error) {
		return p.predict(req), nil
	}, func(reason string) models.RolloutPredictionResponse {
		return p.Fallback(req, reason)
	})
}

// Fallback is the heuristic prediction, marked degraded, with a caution.
func (p *SuccessPredictor) Fallback(req models.RolloutPredictionRequest, reason string) models.RolloutPredictionResponse {
	days := models.AggregateDaily(req.HistoricalData)
	resp := p.respond(req, days, HeuristicProbability(req.Configuration), models.ModelHeuristic)
	resp.Degraded = true
	resp.Recommendations = append(resp.Recommendations, "Prediction model unavailable ("+reason+"); probability is a heuristic estimate")
	return resp
}

func (p *SuccessPredictor) predict(req models.RolloutPredictionRequest) models.RolloutPredictionResponse {
	days := models.AggregateDaily(req.HistoricalData)
	if len(days) < p.settings.MinTrainingDays {
		p.log.Debug("Not enough history for a fitted model, using heuristic",
			"flag", req.FeatureFlagKey, "days", len(days), "required", p.settings.MinTrainingDays)
		return p.respond(req, days, HeuristicProbability(req.Configuration), models.ModelHeuristic)
	}

	x := make([][]float64, len(days))
	y := make([]float64, len(days))
	for i, d := range days {
		x[i] = featureRow(d.Means)
		if d.OverallMu > p.settings.QualityBar {
			y[i] = 1
		}
	}

	model, err := fitLogistic(x, y, fitOptions{
		learningRate: p.settings.LearningRate,
		iterations:   p.settings.Iterations,
		l2:           p.settings.L2,
	})
	if err != nil {
		p.log.Warn("Model fitting failed, using heuristic", "flag", req.FeatureFlagKey, "error", err)
		return p.Fallback(req, err.Error())
	}

	synthetic := syntheticSnapshot(req.Configuration, days)
	prob := model.predict(featureRow(synthetic))
	return p.respond(req, days, prob, models.ModelLogisticRegression)
}

func (p *SuccessPredictor) respond(req models.RolloutPredictionRequest, days []models.DailyAggregate, prob float64, model string) models.RolloutPredictionResponse {
	prob = clampProbability(prob)

	current := syntheticSnapshot(req.Configuration, days)
	if len(days) > 0 {
		current = completeSnapshot(days[len(days)-1].Means, current)
	}
	factors := p.risk.Assess(current)

	return models.RolloutPredictionResponse{
		SuccessProbability: prob,
		RiskFactors:        factors,
		Recommendations:    predictionRecommendations(prob, factors),
		ExpectedMetrics:    expectedMetrics(req.Configuration, days),
		EstimatedDuration:  models.Duration(req.Configuration.TotalDuration()),
		Model:              model,
		TrainingDays:       len(days),
	}
}

// HeuristicProbability is the rule-based success estimate used without a model.
func HeuristicProbability(cfg models.RolloutConfiguration) float64 {
	prob := 0.75
	switch strings.ToLower(cfg.Strategy) {
	case models.StrategyConservative:
		prob += 0.10
	case models.StrategyAggressive:
		prob -= 0.15
	}
	if models.NormalizeLimits(cfg.SafetyLimits)[models.MetricErrorRate] > 2.0 {
		prob -= 0.10
	}
	return clampProbability(prob)
}

func featureRow(s models.MetricSnapshot) []float64 {
	row := make([]float64, len(models.TrackedMetrics))
	for i, name := range models.TrackedMetrics {
		row[i] = s[name]
	}
	return row
}

// syntheticSnapshot turns the configuration's limits and targets into a
// feature vector, borrowing the historical user count when no target is set.
func syntheticSnapshot(cfg models.RolloutConfiguration, days []models.DailyAggregate) models.MetricSnapshot {
	limits := models.NormalizeLimits(cfg.SafetyLimits)
	targets := models.NormalizeLimits(cfg.TargetMetrics)

	s := models.MetricSnapshot{
		models.MetricErrorRate:      defaultErrorRate,
		models.MetricResponseTime:   defaultResponseTime,
		models.MetricConversionRate: defaultConversionRate,
		models.MetricUserCount:      defaultUserCount,
	}
	if v, ok := limits[models.MetricErrorRate]; ok {
		s[models.MetricErrorRate] = v
	}
	if v, ok := limits[models.MetricResponseTime]; ok {
		s[models.MetricResponseTime] = v
	}
	if v, ok := targets[models.MetricConversionRate]; ok {
		s[models.MetricConversionRate] = v
	}
	if v, ok := targets[models.MetricUserCount]; ok {
		s[models.MetricUserCount] = v
	} else if mean, ok := historicalMean(days, models.MetricUserCount); ok {
		s[models.MetricUserCount] = mean
	}
	return s
}

func historicalMean(days []models.DailyAggregate, name string) (float64, bool) {
	var sum float64
	var n int
	for _, d := range days {
		if v, ok := d.Means[name]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func completeSnapshot(observed, fallback models.MetricSnapshot) models.MetricSnapshot {
	out := fallback.Clone()
	for _, name := range models.TrackedMetrics {
		if v, ok := observed[name]; ok {
			out[name] = v
		}
	}
	return out
}

func expectedMetrics(cfg models.RolloutConfiguration, days []models.DailyAggregate) map[string]float64 {
	synthetic := syntheticSnapshot(cfg, days)
	out := make(map[string]float64, len(models.TrackedMetrics))
	for _, name := range models.TrackedMetrics {
		if mean, ok := historicalMean(days, name); ok {
			out[name] = round2(mean)
			continue
		}
		out[name] = synthetic[name]
	}
	return out
}

func predictionRecommendations(prob float64, factors []models.RiskFactor) []string {
	var recs []string
	switch {
	case prob > 0.8:
		recs = append(recs, fmt.Sprintf("High success probability (%.0f%%): proceed with the planned rollout", prob*100))
	case prob >= 0.6:
		recs = append(recs, fmt.Sprintf("Moderate success probability (%.0f%%): proceed with caution and monitor closely", prob*100))
	default:
		recs = append(recs, fmt.Sprintf("Low success probability (%.0f%%): revise the rollout configuration before proceeding", prob*100))
	}
	for _, f := range factors {
		if f.Level == models.RiskHigh {
			recs = append(recs, fmt.Sprintf("Address %s before rolling out: %s", f.Name, f.Description))
		}
	}
	return recs
}
