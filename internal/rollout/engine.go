package rollout

import (
	"fmt"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// Engine bundles the analyzers built from one Settings value. An Engine is
// immutable; to apply new settings build a new one.
type Engine struct {
	settings Settings

	Anomaly     *AnomalyDetector
	Predictor   *SuccessPredictor
	Steps       StepDecisionEngine
	Simulator   *RolloutSimulator
	Realtime    *RealtimeDecisionEngine
	Recommender *RecommendationEngine
}

func NewEngine(s Settings, log logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Nop()
	}
	s = s.withDefaults()

	anomaly, err := NewAnomalyDetector(s.Anomaly, logging.With(log, "analyzer", "anomaly"))
	if err != nil {
		return nil, fmt.Errorf("anomaly detector: %w", err)
	}
	steps := NewStepDecisionEngine(s.Decision)
	return &Engine{
		settings:    s,
		Anomaly:     anomaly,
		Predictor:   NewSuccessPredictor(s.Predictor, logging.With(log, "analyzer", "predictor")),
		Steps:       steps,
		Simulator:   NewRolloutSimulator(s.Simulator, steps, logging.With(log, "analyzer", "simulator")),
		Realtime:    NewRealtimeDecisionEngine(logging.With(log, "analyzer", "realtime")),
		Recommender: NewRecommendationEngine(logging.With(log, "analyzer", "recommendation")),
	}, nil
}

func (e *Engine) Settings() Settings { return e.settings }

// ModelInfo describes one analyzer for the models endpoint.
type ModelInfo struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Fallback    string            `json:"fallback"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// Models lists the analyzers and their current parameters.
func (e *Engine) Models() []ModelInfo {
	s := e.settings
	return []ModelInfo{
		{
			Name:        "anomaly-detector",
			Type:        e.Anomaly.Algorithm(),
			Description: "Unsupervised per-metric trend deviation detector with margin-based severity",
			Fallback:    "no anomalies, risk 0, data-insufficient recommendation",
			Parameters: map[string]string{
				"lookbackDays": fmt.Sprint(s.Anomaly.LookbackDays),
				"minPoints":    fmt.Sprint(s.Anomaly.MinPoints),
				"threshold":    fmt.Sprint(s.Anomaly.Detector.Threshold),
				"sensitivity":  fmt.Sprint(s.Anomaly.Detector.Sensitivity),
			},
		},
		{
			Name:        "success-predictor",
			Type:        models.ModelLogisticRegression,
			Description: "Per-request logistic regression over daily error rate, response time, conversion and users",
			Fallback:    "heuristic success rate by strategy and error-rate limit",
			Parameters: map[string]string{
				"minTrainingDays": fmt.Sprint(s.Predictor.MinTrainingDays),
				"qualityBar":      fmt.Sprint(s.Predictor.QualityBar),
				"iterations":      fmt.Sprint(s.Predictor.Iterations),
			},
		},
		{
			Name:        "step-decision",
			Type:        "rules",
			Description: "Priority rules over error rate and response time against safety limits",
			Fallback:    "none (pure rules)",
			Parameters: map[string]string{
				"defaultErrorRateLimit":    fmt.Sprint(s.Decision.DefaultErrorRateLimit),
				"defaultResponseTimeLimit": fmt.Sprint(s.Decision.DefaultResponseTimeLimit),
			},
		},
		{
			Name:        "rollout-simulator",
			Type:        "drift-fold",
			Description: "Chained drift model folded over the rollout steps",
			Fallback:    "pause every step, probability 0.1",
			Parameters: map[string]string{
				"defaultDays": fmt.Sprint(s.Simulator.DefaultDays),
				"maxDays":     fmt.Sprint(s.Simulator.MaxDays),
			},
		},
		{
			Name:        "realtime-decision",
			Type:        "rules",
			Description: "Safety-limit alerts on live metrics mapped to continue, pause, accelerate or rollback",
			Fallback:    "pause with confidence 0.95",
		},
		{
			Name:        "recommendation",
			Type:        "rules",
			Description: "Goal-driven step scaling with data-volume and stability confidence",
			Fallback:    "current configuration, confidence 0.1",
		},
	}
}
