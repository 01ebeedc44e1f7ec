// Package rollout implements the rollout intelligence analyzers: anomaly
// detection, success prediction, risk analysis, per-step decisions, rollout
// simulation, live decisions and configuration recommendations.
//
// Every analyzer is a pure function of its request and its Settings. Nothing
// learned from one call is visible to the next; in particular the success
// predictor refits its classifier on every call (see SuccessPredictor).
package rollout

import (
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/rollout/detect"
)

// Settings tunes every analyzer. It is configuration only and is never
// mutated by an analysis.
type Settings struct {
	Anomaly   AnomalySettings
	Predictor PredictorSettings
	Decision  DecisionSettings
	Simulator SimulatorSettings
}

type AnomalySettings struct {
	Algorithm    string
	LookbackDays int
	MinPoints    int
	Detector     detect.Params
}

type PredictorSettings struct {
	MinTrainingDays int
	QualityBar      float64
	LearningRate    float64
	Iterations      int
	L2              float64
}

// DecisionSettings holds the safety limits assumed when a configuration does
// not set one.
type DecisionSettings struct {
	DefaultErrorRateLimit    float64
	DefaultResponseTimeLimit float64
}

type SimulatorSettings struct {
	DefaultDays int
	MaxDays     int
}

func DefaultSettings() Settings {
	return Settings{
		Anomaly: AnomalySettings{
			Algorithm:    detect.AlgorithmTrendResidual,
			LookbackDays: 7,
			MinPoints:    5,
			Detector:     detect.DefaultParams(),
		},
		Predictor: PredictorSettings{
			MinTrainingDays: 5,
			QualityBar:      0.8,
			LearningRate:    0.1,
			Iterations:      500,
			L2:              0.01,
		},
		Decision: DecisionSettings{
			DefaultErrorRateLimit:    5.0,
			DefaultResponseTimeLimit: 1000.0,
		},
		Simulator: SimulatorSettings{DefaultDays: 30, MaxDays: models.MaxSimulationDays},
	}
}

// withDefaults fills zero values so a partially populated Settings is usable.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Anomaly.Algorithm == "" {
		s.Anomaly.Algorithm = d.Anomaly.Algorithm
	}
	if s.Anomaly.LookbackDays <= 0 {
		s.Anomaly.LookbackDays = d.Anomaly.LookbackDays
	}
	if s.Anomaly.MinPoints < 3 {
		s.Anomaly.MinPoints = d.Anomaly.MinPoints
	}
	if s.Anomaly.Detector == (detect.Params{}) {
		s.Anomaly.Detector = d.Anomaly.Detector
	}
	if s.Predictor.MinTrainingDays <= 0 {
		s.Predictor.MinTrainingDays = d.Predictor.MinTrainingDays
	}
	if s.Predictor.QualityBar <= 0 {
		s.Predictor.QualityBar = d.Predictor.QualityBar
	}
	if s.Predictor.L2 <= 0 {
		s.Predictor.L2 = d.Predictor.L2
	}
	if s.Predictor.LearningRate <= 0 {
		s.Predictor.LearningRate = d.Predictor.LearningRate
	}
	if s.Predictor.Iterations <= 0 {
		s.Predictor.Iterations = d.Predictor.Iterations
	}
	if s.Decision.DefaultErrorRateLimit <= 0 {
		s.Decision.DefaultErrorRateLimit = d.Decision.DefaultErrorRateLimit
	}
	if s.Decision.DefaultResponseTimeLimit <= 0 {
		s.Decision.DefaultResponseTimeLimit = d.Decision.DefaultResponseTimeLimit
	}
	if s.Simulator.MaxDays <= 0 || s.Simulator.MaxDays > d.Simulator.MaxDays {
		s.Simulator.MaxDays = d.Simulator.MaxDays
	}
	if s.Simulator.DefaultDays <= 0 {
		s.Simulator.DefaultDays = d.Simulator.DefaultDays
	}
	s.Simulator.DefaultDays = min(s.Simulator.DefaultDays, s.Simulator.MaxDays)
	return s
}
