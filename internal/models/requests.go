package models

import "time"

// FlagRef identifies the flag and environment an analysis is about.
type FlagRef struct {
	ProjectKey     string `json:"projectKey" binding:"required"`
	Environment    string `json:"environment"`
	FeatureFlagKey string `json:"featureFlagKey" binding:"required"`
}

type AnomalyDetectionRequest struct {
	FlagRef
	MetricHistory []MetricDataPoint `json:"metricHistory"`
	LookbackDays  int               `json:"lookbackDays,omitempty"`
}

type AnomalyDetectionResponse struct {
	HasAnomalies    bool           `json:"hasAnomalies"`
	Anomalies       []AnomalyAlert `json:"anomalies"`
	RiskScore       float64        `json:"riskScore"`
	Recommendations []string       `json:"recommendations"`
	Degraded        bool           `json:"degraded,omitempty"`
	AnalyzedAt      time.Time      `json:"analyzedAt"`
}

type RolloutPredictionRequest struct {
	FlagRef
	Configuration  RolloutConfiguration `json:"configuration"`
	HistoricalData []MetricDataPoint    `json:"historicalData"`
	UserAttributes map[string]string    `json:"userAttributes,omitempty"`
}

// Prediction models reported in RolloutPredictionResponse.Model.
const (
	ModelLogisticRegression = "logistic_regression"
	ModelHeuristic          = "heuristic"
)

type RolloutPredictionResponse struct {
	SuccessProbability float64            `json:"successProbability"`
	RiskFactors        []RiskFactor       `json:"riskFactors"`
	Recommendations    []string           `json:"recommendations"`
	ExpectedMetrics    map[string]float64 `json:"expectedMetrics"`
	EstimatedDuration  Duration           `json:"estimatedDuration"`
	Model              string             `json:"model"`
	TrainingDays       int                `json:"trainingDays"`
	Degraded           bool               `json:"degraded,omitempty"`
}

type RolloutSimulationRequest struct {
	FlagRef
	Configuration   RolloutConfiguration `json:"configuration"`
	BaselineMetrics []MetricDataPoint    `json:"baselineMetrics"`
	SimulationDays  int                  `json:"simulationDays,omitempty"`
}

// SimulatedStep is the output-only record for one step of a simulation.
type SimulatedStep struct {
	Step             RolloutStep    `json:"step"`
	Decision         AIDecision     `json:"aiDecision"`
	PredictedMetrics MetricSnapshot `json:"predictedMetrics"`
	AdjustedDuration Duration       `json:"adjustedDuration"`
}

type ProjectionPoint struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

type RolloutSimulationResponse struct {
	Steps                  []SimulatedStep              `json:"steps"`
	Prediction             RolloutPrediction            `json:"prediction"`
	RecommendedAdjustments []string                     `json:"recommendedAdjustments"`
	Projections            map[string][]ProjectionPoint `json:"projections"`
	TotalAdjustedDuration  Duration                     `json:"totalAdjustedDuration"`
	SimulationDays         int                          `json:"simulationDays"`
	Degraded               bool                         `json:"degraded,omitempty"`
}

type RolloutRecommendationRequest struct {
	FlagRef
	CurrentMetrics       []MetricDataPoint    `json:"currentMetrics"`
	CurrentConfiguration RolloutConfiguration `json:"currentConfiguration"`
	OptimizationGoal     string               `json:"optimizationGoal"`
}

// StepAdjustment records one field changed by the recommendation engine.
type StepAdjustment struct {
	StepNumber int    `json:"stepNumber"`
	Field      string `json:"field"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type RolloutRecommendations struct {
	RecommendedConfiguration RolloutConfiguration `json:"recommendedConfiguration"`
	Adjustments              []StepAdjustment     `json:"adjustments"`
	Justifications           []string             `json:"justifications"`
	Confidence               float64              `json:"confidence"`
	OptimizationGoal         string               `json:"optimizationGoal"`
	Degraded                 bool                 `json:"degraded,omitempty"`
}

type RealtimeAnalysisRequest struct {
	FlagRef
	RealtimeMetrics     []MetricDataPoint    `json:"realtimeMetrics"`
	ActiveConfiguration RolloutConfiguration `json:"activeConfiguration"`
}

// LiveAnalysisRequest asks the service to pull the snapshot from its metrics source.
type LiveAnalysisRequest struct {
	FlagRef
	ActiveConfiguration RolloutConfiguration `json:"activeConfiguration"`
}

type RealtimeAnalysisResponse struct {
	RecommendedAction LiveAction     `json:"recommendedAction"`
	Confidence        float64        `json:"confidence"`
	Alerts            []MetricAlert  `json:"alerts"`
	Reasoning         string         `json:"reasoning"`
	CurrentMetrics    MetricSnapshot `json:"currentMetrics"`
	NextCheckIn       Duration       `json:"nextCheckIn"`
	Degraded          bool           `json:"degraded,omitempty"`
	AnalyzedAt        time.Time      `json:"analyzedAt"`
}
