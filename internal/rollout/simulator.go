package rollout

import (
	"fmt"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// Drift factors applied per step, scaled by percentage/100.
const (
	driftErrorRate      = 0.10
	driftResponseTime   = 0.05
	driftConversionRate = 0.20
)

// Baseline values assumed when the caller does not supply one.
var defaultBaseline = models.MetricSnapshot{
	models.MetricErrorRate:      0.5,
	models.MetricResponseTime:   150,
	models.MetricConversionRate: 5,
}

// RolloutSimulator replays a rollout plan step by step against a drift model,
// asking the StepDecisionEngine for a decision at every step.
type RolloutSimulator struct {
	settings SimulatorSettings
	steps    StepDecisionEngine
	log      logging.Logger
}

func NewRolloutSimulator(s SimulatorSettings, steps StepDecisionEngine, log logging.Logger) *RolloutSimulator {
	return &RolloutSimulator{settings: s, steps: steps, log: log}
}

func (r *RolloutSimulator) Simulate(req models.RolloutSimulationRequest) models.RolloutSimulationResponse {
	return guard(r.log, "simulator", func() (models.RolloutSimulationResponse, error) {
		return r.simulate(req), nil
	}, func(reason string) models.RolloutSimulationResponse {
		return r.Degrade(req, reason)
	})
}

// Degrade pauses every step and reports the minimum success probability.
func (r *RolloutSimulator) Degrade(req models.RolloutSimulationRequest, reason string) models.RolloutSimulationResponse {
	steps := models.SortedSteps(req.Configuration.Steps)
	out := make([]models.SimulatedStep, len(steps))
	var total time.Duration
	for i, s := range steps {
		adjusted := AdjustDuration(models.ActionPause, s.Duration.Std())
		total += adjusted
		out[i] = models.SimulatedStep{
			Step: s,
			Decision: models.AIDecision{
				Action:         models.ActionPause,
				Confidence:     0.9,
				Rationale:      "Simulation unavailable; hold each step for manual review",
				Considerations: []string{reason},
			},
			PredictedMetrics: models.MetricSnapshot{},
			AdjustedDuration: models.Duration(adjusted),
		}
	}
	return models.RolloutSimulationResponse{
		Steps: out,
		Prediction: models.RolloutPrediction{
			SuccessProbability: minProbability,
			RiskFactors: []models.RiskFactor{{
				Name:        "simulation unavailable",
				Level:       models.RiskHigh,
				Impact:      0.5,
				Description: reason,
			}},
			ExpectedMetrics: map[string]float64{},
		},
		RecommendedAdjustments: []string{"Simulation failed (" + reason + "); proceed manually and pause between steps"},
		Projections:            map[string][]models.ProjectionPoint{},
		TotalAdjustedDuration:  models.Duration(total),
		SimulationDays:         r.days(req),
		Degraded:               true,
	}
}

func (r *RolloutSimulator) days(req models.RolloutSimulationRequest) int {
	if req.SimulationDays > 0 {
		return min(req.SimulationDays, r.settings.MaxDays)
	}
	return r.settings.DefaultDays
}

func (r *RolloutSimulator) simulate(req models.RolloutSimulationRequest) models.RolloutSimulationResponse {
	baseline := defaultBaseline.Clone()
	for name, v := range models.LatestSnapshot(req.BaselineMetrics) {
		baseline[name] = v
	}

	limits := req.Configuration.SafetyLimits
	steps := foldSteps(models.SortedSteps(req.Configuration.Steps), baseline,
		func(prev models.MetricSnapshot, step models.RolloutStep) models.SimulatedStep {
			predicted := Drift(prev, step.Percentage)
			decision := r.steps.Decide(predicted, limits)
			return models.SimulatedStep{
				Step:             step,
				Decision:         decision,
				PredictedMetrics: predicted,
				AdjustedDuration: models.Duration(AdjustDuration(decision.Action, step.Duration.Std())),
			}
		})

	var rollbacks, pauses int
	var total time.Duration
	for _, s := range steps {
		total += s.AdjustedDuration.Std()
		switch s.Decision.Action {
		case models.ActionRollback:
			rollbacks++
		case models.ActionPause:
			pauses++
		case models.ActionProceed, models.ActionAccelerate:
		}
	}

	prob := clampProbability(0.8 - 0.3*float64(rollbacks) - 0.1*float64(pauses))
	factors := []models.RiskFactor{}
	if rollbacks > 0 {
		factors = append(factors, models.RiskFactor{
			Name:        "rollback necessary",
			Level:       models.RiskHigh,
			Impact:      0.4,
			Description: fmt.Sprintf("%d step(s) breach 150%% of a safety limit under the drift model", rollbacks),
		})
	}
	if pauses*2 > len(steps) {
		factors = append(factors, models.RiskFactor{
			Name:        "multiple pauses",
			Level:       models.RiskMedium,
			Impact:      0.2,
			Description: fmt.Sprintf("%d of %d steps are expected to pause", pauses, len(steps)),
		})
	}

	expected := map[string]float64{}
	if n := len(steps); n > 0 {
		for k, v := range steps[n-1].PredictedMetrics {
			expected[k] = round2(v)
		}
	}

	days := r.days(req)
	r.log.Debug("Simulation finished", "flag", req.FeatureFlagKey, "steps", len(steps), "rollbacks", rollbacks, "pauses", pauses, "probability", prob)
	return models.RolloutSimulationResponse{
		Steps: steps,
		Prediction: models.RolloutPrediction{
			SuccessProbability: prob,
			RiskFactors:        factors,
			ExpectedMetrics:    expected,
		},
		RecommendedAdjustments: simulationAdjustments(steps, prob, pauses),
		Projections:            project(steps, days),
		TotalAdjustedDuration:  models.Duration(total),
		SimulationDays:         days,
	}
}

// foldSteps threads the metric snapshot through the steps in order. Each
// step sees only the previous step's predicted metrics.
func foldSteps(steps []models.RolloutStep, initial models.MetricSnapshot,
	next func(prev models.MetricSnapshot, step models.RolloutStep) models.SimulatedStep) []models.SimulatedStep {
	out := make([]models.SimulatedStep, 0, len(steps))
	acc := initial
	for _, step := range steps {
		s := next(acc, step)
		out = append(out, s)
		acc = s.PredictedMetrics
	}
	return out
}

// Drift projects metrics after exposing percentage% of traffic. The input
// snapshot is not modified.
func Drift(prev models.MetricSnapshot, percentage float64) models.MetricSnapshot {
	p := percentage / 100
	next := prev.Clone()
	next[models.MetricErrorRate] = prev[models.MetricErrorRate] * (1 + driftErrorRate*p)
	next[models.MetricResponseTime] = prev[models.MetricResponseTime] * (1 + driftResponseTime*p)
	next[models.MetricConversionRate] = prev[models.MetricConversionRate] * (1 + driftConversionRate*p)
	return next
}

func simulationAdjustments(steps []models.SimulatedStep, prob float64, pauses int) []string {
	var adj []string
	if prob < 0.6 {
		adj = append(adj, "Halve the rollout speed: double each step's duration and add monitoring checkpoints")
	}
	for _, s := range steps {
		if s.Decision.Action == models.ActionRollback {
			adj = append(adj, fmt.Sprintf("Lower the percentage target of step %d (%.0f%%) or tighten the fix before reaching it",
				s.Step.StepNumber, s.Step.Percentage))
			break
		}
	}
	if pauses > 0 {
		adj = append(adj, fmt.Sprintf("Plan for %d pause(s): add manual checkpoints between steps", pauses))
	}
	var fast []string
	for _, s := range steps {
		if s.Decision.Action == models.ActionAccelerate {
			fast = append(fast, fmt.Sprint(s.Step.StepNumber))
		}
	}
	if len(fast) > 0 {
		adj = append(adj, "Steps "+strings.Join(fast, ", ")+" can be shortened by about 30%")
	}
	if len(adj) == 0 {
		adj = append(adj, "Current plan looks safe; no adjustments recommended")
	}
	return adj
}

// project repeats each step's predicted metrics over a share of the simulated
// days proportional to the step's planned duration.
func project(steps []models.SimulatedStep, days int) map[string][]models.ProjectionPoint {
	out := make(map[string][]models.ProjectionPoint)
	if len(steps) == 0 || days <= 0 {
		return out
	}

	weights := make([]float64, len(steps))
	var total float64
	for i, s := range steps {
		weights[i] = float64(s.Step.Duration.Std())
		total += weights[i]
	}
	if total == 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}
	shares := apportion(weights, total, days)

	for _, name := range models.TrackedMetrics {
		if _, ok := steps[0].PredictedMetrics[name]; !ok {
			continue
		}
		series := make([]models.ProjectionPoint, 0, days)
		day := 1
		for i, s := range steps {
			for k := 0; k < shares[i]; k++ {
				series = append(series, models.ProjectionPoint{Day: day, Value: s.PredictedMetrics[name]})
				day++
			}
		}
		out[name] = series
	}
	return out
}

// apportion splits days across weights with the largest-remainder method so
// the shares always sum to days.
func apportion(weights []float64, total float64, days int) []int {
	shares := make([]int, len(weights))
	remainders := make([]float64, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := w / total * float64(days)
		shares[i] = int(exact)
		remainders[i] = exact - float64(shares[i])
		assigned += shares[i]
	}
	for assigned < days {
		best := 0
		for i := range remainders {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		shares[best]++
		remainders[best] = -1
		assigned++
	}
	return shares
}
