package rollout

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// RecommendationEngine proposes an adjusted rollout configuration for an
// optimization goal.
type RecommendationEngine struct {
	risk RiskAnalyzer
	log  logging.Logger
}

func NewRecommendationEngine(log logging.Logger) *RecommendationEngine {
	return &RecommendationEngine{log: log}
}

func (e *RecommendationEngine) Recommend(req models.RolloutRecommendationRequest) models.RolloutRecommendations {
	return guard(e.log, "recommendation", func() (models.RolloutRecommendations, error) {
		return e.recommend(req), nil
	}, func(reason string) models.RolloutRecommendations {
		return e.Degrade(req, reason)
	})
}

// Degrade keeps the current configuration and reports minimum confidence.
func (e *RecommendationEngine) Degrade(req models.RolloutRecommendationRequest, reason string) models.RolloutRecommendations {
	return models.RolloutRecommendations{
		RecommendedConfiguration: req.CurrentConfiguration.Clone(),
		Adjustments:              []models.StepAdjustment{},
		Justifications:           []string{"Recommendation unavailable (" + reason + "); keeping the current configuration"},
		Confidence:               minProbability,
		OptimizationGoal:         goalOf(req),
		Degraded:                 true,
	}
}

func goalOf(req models.RolloutRecommendationRequest) string {
	goal := strings.ToLower(strings.TrimSpace(req.OptimizationGoal))
	if goal == "" {
		return models.StrategyBalanced
	}
	return goal
}

func (e *RecommendationEngine) recommend(req models.RolloutRecommendationRequest) models.RolloutRecommendations {
	goal := goalOf(req)
	cfg := req.CurrentConfiguration.Clone()
	var justifications []string
	adjustments := []models.StepAdjustment{}

	var pctFactor, durFactor float64
	switch goal {
	case models.StrategyConservative:
		pctFactor, durFactor = 0.7, 1.5
		justifications = append(justifications, "Conservative goal: step percentages scaled to 70% and durations to 150%")
	case models.StrategyAggressive:
		pctFactor, durFactor = 1.3, 0.7
		justifications = append(justifications, "Aggressive goal: step percentages scaled to 130% (capped at 100%) and durations to 70%")
	default:
		pctFactor, durFactor = 1, 1
		justifications = append(justifications, "Balanced goal: step percentages and durations left unchanged")
	}

	if pctFactor != 1 || durFactor != 1 {
		for i, s := range cfg.Steps {
			pct := round2(math.Min(100, s.Percentage*pctFactor))
			dur := time.Duration(float64(s.Duration.Std()) * durFactor).Round(time.Second)
			if pct != s.Percentage {
				adjustments = append(adjustments, models.StepAdjustment{
					StepNumber: s.StepNumber, Field: "percentage",
					From: fmt.Sprintf("%.2f", s.Percentage), To: fmt.Sprintf("%.2f", pct),
				})
			}
			if dur != s.Duration.Std() {
				adjustments = append(adjustments, models.StepAdjustment{
					StepNumber: s.StepNumber, Field: "duration",
					From: s.Duration.Std().String(), To: dur.String(),
				})
			}
			cfg.Steps[i].Percentage = pct
			cfg.Steps[i].Duration = models.Duration(dur)
		}
		cfg.Strategy = goal
	}

	confidence := 0.7
	n := len(req.CurrentMetrics)
	switch {
	case n > 100:
		confidence += 0.2
		justifications = append(justifications, fmt.Sprintf("%d recent data points give strong evidence (+0.2)", n))
	case n > 50:
		confidence += 0.1
		justifications = append(justifications, fmt.Sprintf("%d recent data points give moderate evidence (+0.1)", n))
	case n < 10:
		confidence -= 0.3
		justifications = append(justifications, fmt.Sprintf("Only %d recent data point(s); confidence reduced (-0.3)", n))
	default:
		justifications = append(justifications, fmt.Sprintf("%d recent data points", n))
	}

	if errRate, ok := meanOf(req.CurrentMetrics, models.MetricErrorRate); ok {
		switch {
		case errRate < 0.5:
			confidence += 0.1
			justifications = append(justifications, fmt.Sprintf("Error rate is stable at %.3f (+0.1)", errRate))
		case errRate > 2.0:
			confidence -= 0.2
			justifications = append(justifications, fmt.Sprintf("Error rate is unstable at %.3f (-0.2)", errRate))
		default:
			justifications = append(justifications, fmt.Sprintf("Error rate averages %.3f", errRate))
		}
	}

	current := models.LatestSnapshot(req.CurrentMetrics)
	for _, f := range e.risk.AssessLimits(current, req.CurrentConfiguration.SafetyLimits) {
		justifications = append(justifications, fmt.Sprintf("Risk (%s): %s", f.Level, f.Description))
	}

	return models.RolloutRecommendations{
		RecommendedConfiguration: cfg,
		Adjustments:              adjustments,
		Justifications:           justifications,
		Confidence:               clampProbability(confidence),
		OptimizationGoal:         goal,
	}
}

func meanOf(points []models.MetricDataPoint, name string) (float64, bool) {
	var sum float64
	var n int
	for _, p := range points {
		if models.NormalizeMetricName(p.MetricName) == name {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
