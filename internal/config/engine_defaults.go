package config

import (
	"github.com/platformbuilds/mirador-rollout/internal/rollout"
	"github.com/platformbuilds/mirador-rollout/internal/rollout/detect"
)

// Settings converts the engine section into analyzer settings. Zero-valued
// fields fall back to rollout.DefaultSettings when the engine is built.
func (e EngineConfig) Settings() rollout.Settings {
	return rollout.Settings{
		Anomaly: rollout.AnomalySettings{
			Algorithm:    e.Anomaly.Algorithm,
			LookbackDays: e.Anomaly.LookbackDays,
			MinPoints:    e.Anomaly.MinPoints,
			Detector: detect.Params{
				Threshold:         e.Anomaly.Threshold,
				Sensitivity:       e.Anomaly.Sensitivity,
				Window:            e.Anomaly.Window,
				ScaleFloorRatio:   e.Anomaly.ScaleFloorRatio,
				SaliencyThreshold: e.Anomaly.SaliencyThreshold,
			},
		},
		Predictor: rollout.PredictorSettings{
			MinTrainingDays: e.Predictor.MinTrainingDays,
			QualityBar:      e.Predictor.QualityBar,
			LearningRate:    e.Predictor.LearningRate,
			Iterations:      e.Predictor.Iterations,
			L2:              e.Predictor.L2,
		},
		Decision: rollout.DecisionSettings{
			DefaultErrorRateLimit:    e.Decision.DefaultErrorRateLimit,
			DefaultResponseTimeLimit: e.Decision.DefaultResponseTimeLimit,
		},
		Simulator: rollout.SimulatorSettings{
			DefaultDays: e.Simulator.DefaultDays,
			MaxDays:     e.Simulator.MaxDays,
		},
	}
}
