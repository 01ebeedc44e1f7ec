package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrMissingFlagRef    = errors.New("projectKey and featureFlagKey are required")
	ErrEmptySteps        = errors.New("configuration must contain at least one step")
	ErrNonMonotonicSteps = errors.New("step percentages must be non-decreasing")
	ErrNoMetrics         = errors.New("at least one metric data point is required")
	ErrUnknownGoal       = errors.New("optimizationGoal must be conservative, balanced or aggressive")
)

// MaxSimulationDays bounds the projection horizon a simulation request may ask for.
const MaxSimulationDays = 365

func (f FlagRef) Validate() error {
	if strings.TrimSpace(f.ProjectKey) == "" || strings.TrimSpace(f.FeatureFlagKey) == "" {
		return ErrMissingFlagRef
	}
	return nil
}

// Validate checks step ranges and ordering. Steps are compared in step-number
// order; percentages that go down are rejected rather than corrected.
func (c RolloutConfiguration) Validate(requireSteps bool) error {
	if len(c.Steps) == 0 {
		if requireSteps {
			return ErrEmptySteps
		}
		return nil
	}
	seen := make(map[int]struct{}, len(c.Steps))
	for _, s := range c.Steps {
		if s.Percentage < 0 || s.Percentage > 100 || math.IsNaN(s.Percentage) {
			return fmt.Errorf("step %d: percentage %.2f outside [0,100]", s.StepNumber, s.Percentage)
		}
		if s.Duration < 0 {
			return fmt.Errorf("step %d: duration must not be negative", s.StepNumber)
		}
		if _, dup := seen[s.StepNumber]; dup {
			return fmt.Errorf("step %d: duplicate step number", s.StepNumber)
		}
		seen[s.StepNumber] = struct{}{}
	}
	ordered := SortedSteps(c.Steps)
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Percentage < ordered[i-1].Percentage {
			return fmt.Errorf("%w: step %d (%.2f%%) follows step %d (%.2f%%)", ErrNonMonotonicSteps,
				ordered[i].StepNumber, ordered[i].Percentage, ordered[i-1].StepNumber, ordered[i-1].Percentage)
		}
	}
	return nil
}

func validatePoints(points []MetricDataPoint, required bool) error {
	if required && len(points) == 0 {
		return ErrNoMetrics
	}
	for i, p := range points {
		if strings.TrimSpace(p.MetricName) == "" {
			return fmt.Errorf("metric point %d: metricName is required", i)
		}
	}
	return nil
}

func (r AnomalyDetectionRequest) Validate() error {
	if err := r.FlagRef.Validate(); err != nil {
		return err
	}
	if r.LookbackDays < 0 {
		return errors.New("lookbackDays must not be negative")
	}
	return validatePoints(r.MetricHistory, false)
}

func (r RolloutPredictionRequest) Validate() error {
	if err := r.FlagRef.Validate(); err != nil {
		return err
	}
	if err := r.Configuration.Validate(false); err != nil {
		return err
	}
	return validatePoints(r.HistoricalData, false)
}

func (r RolloutSimulationRequest) Validate() error {
	if err := r.FlagRef.Validate(); err != nil {
		return err
	}
	if err := r.Configuration.Validate(true); err != nil {
		return err
	}
	if r.SimulationDays < 0 {
		return errors.New("simulationDays must not be negative")
	}
	if r.SimulationDays > MaxSimulationDays {
		return fmt.Errorf("simulationDays must not exceed %d", MaxSimulationDays)
	}
	return validatePoints(r.BaselineMetrics, false)
}

func (r RolloutRecommendationRequest) Validate() error {
	if err := r.FlagRef.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(r.OptimizationGoal) {
	case "", StrategyConservative, StrategyBalanced, StrategyAggressive:
	default:
		return ErrUnknownGoal
	}
	if err := r.CurrentConfiguration.Validate(false); err != nil {
		return err
	}
	return validatePoints(r.CurrentMetrics, false)
}

func (r RealtimeAnalysisRequest) Validate() error {
	if err := r.FlagRef.Validate(); err != nil {
		return err
	}
	return validatePoints(r.RealtimeMetrics, true)
}

func (r LiveAnalysisRequest) Validate() error {
	return r.FlagRef.Validate()
}
