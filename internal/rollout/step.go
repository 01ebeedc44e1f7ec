package rollout

import (
	"fmt"
	"math"
	"time"

	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// StepDecisionEngine decides what to do after one rollout step given that
// step's metrics and the safety limits.
type StepDecisionEngine struct {
	settings DecisionSettings
}

func NewStepDecisionEngine(s DecisionSettings) StepDecisionEngine {
	return StepDecisionEngine{settings: s}
}

// Limits resolves the error-rate and response-time limits, falling back to
// the configured defaults for missing or non-positive values.
func (e StepDecisionEngine) Limits(limits map[string]float64) (errLimit, rtLimit float64) {
	limits = models.NormalizeLimits(limits)
	errLimit, rtLimit = e.settings.DefaultErrorRateLimit, e.settings.DefaultResponseTimeLimit
	if v := limits[models.MetricErrorRate]; v > 0 {
		errLimit = v
	}
	if v := limits[models.MetricResponseTime]; v > 0 {
		rtLimit = v
	}
	return errLimit, rtLimit
}

// Decide applies the rules in priority order; the first match wins.
func (e StepDecisionEngine) Decide(s models.MetricSnapshot, limits map[string]float64) models.AIDecision {
	errLimit, rtLimit := e.Limits(limits)
	errRate := s[models.MetricErrorRate]
	respTime := s[models.MetricResponseTime]

	considerations := []string{
		fmt.Sprintf("error rate %.3f against limit %.3f (%.0f%%)", errRate, errLimit, 100*errRate/errLimit),
		fmt.Sprintf("response time %.1f against limit %.1f (%.0f%%)", respTime, rtLimit, 100*respTime/rtLimit),
	}
	if v, ok := s[models.MetricConversionRate]; ok {
		considerations = append(considerations, fmt.Sprintf("conversion rate %.3f", v))
	}

	switch {
	case errRate > 1.5*errLimit || respTime > 1.5*rtLimit:
		return models.AIDecision{
			Action:         models.ActionRollback,
			Confidence:     0.9,
			Rationale:      "Metrics exceed 150% of a safety limit; roll back this step",
			Considerations: considerations,
		}
	case errRate > errLimit || respTime > rtLimit:
		return models.AIDecision{
			Action:         models.ActionPause,
			Confidence:     0.8,
			Rationale:      "Metrics exceed a safety limit; pause and investigate before continuing",
			Considerations: considerations,
		}
	case errRate < 0.5*errLimit && respTime < 0.7*rtLimit:
		return models.AIDecision{
			Action:         models.ActionAccelerate,
			Confidence:     0.7,
			Rationale:      "Metrics are well inside safety limits; the step can be shortened",
			Considerations: considerations,
		}
	default:
		return models.AIDecision{
			Action:         models.ActionProceed,
			Confidence:     0.8,
			Rationale:      "Metrics are within safety limits; proceed as planned",
			Considerations: considerations,
		}
	}
}

// AdjustDuration scales a step's planned duration by the decision taken.
func AdjustDuration(a models.RolloutAction, d time.Duration) time.Duration {
	switch a {
	case models.ActionProceed:
		return d
	case models.ActionPause:
		return time.Duration(math.Round(float64(d) * 1.5))
	case models.ActionAccelerate:
		return time.Duration(math.Round(float64(d) * 0.7))
	case models.ActionRollback:
		return 0
	}
	panic(fmt.Sprintf("rollout: unhandled action %d", a))
}
