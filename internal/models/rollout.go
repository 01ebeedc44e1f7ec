package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Strategy labels recognised by the heuristics.
const (
	StrategyConservative = "conservative"
	StrategyBalanced     = "balanced"
	StrategyAggressive   = "aggressive"
)

// Duration carries a time.Duration on the wire as "1h30m" (or plain seconds).
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		if parsed, err := time.ParseDuration(s); err == nil {
			*d = Duration(parsed)
			return nil
		}
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid duration %q", s)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// RolloutStep is one stage of a progressive rollout.
type RolloutStep struct {
	StepNumber int      `json:"stepNumber"`
	Percentage float64  `json:"percentage"`
	Duration   Duration `json:"duration"`
	Conditions []string `json:"conditions,omitempty"`
}

// RolloutConfiguration is the caller's rollout plan.
type RolloutConfiguration struct {
	Steps         []RolloutStep      `json:"steps"`
	TargetMetrics map[string]float64 `json:"targetMetrics,omitempty"`
	SafetyLimits  map[string]float64 `json:"safetyLimits,omitempty"`
	Strategy      string             `json:"strategy,omitempty"`
}

// TotalDuration sums every step's planned duration.
func (c RolloutConfiguration) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range c.Steps {
		total += s.Duration.Std()
	}
	return total
}

// Clone deep-copies the configuration so analyzers never alias caller input.
func (c RolloutConfiguration) Clone() RolloutConfiguration {
	out := RolloutConfiguration{
		TargetMetrics: cloneFloatMap(c.TargetMetrics),
		SafetyLimits:  cloneFloatMap(c.SafetyLimits),
		Strategy:      c.Strategy,
	}
	if c.Steps != nil {
		out.Steps = make([]RolloutStep, len(c.Steps))
		for i, s := range c.Steps {
			s.Conditions = append([]string(nil), s.Conditions...)
			out.Steps[i] = s
		}
	}
	return out
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Severity grades an anomaly alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Weight is the contribution of one alert to the overall risk score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.8
	case SeverityMedium:
		return 0.6
	default:
		return 0.3
	}
}

// AnomalyAlert is one anomalous sample.
type AnomalyAlert struct {
	MetricName    string    `json:"metricName"`
	ObservedValue float64   `json:"observedValue"`
	ExpectedValue float64   `json:"expectedValue"`
	Deviation     float64   `json:"deviation"`
	MarginScore   float64   `json:"marginScore"`
	Severity      Severity  `json:"severity"`
	DetectedAt    time.Time `json:"detectedAt"`
	Description   string    `json:"description"`
}

// RiskLevel is the qualitative level of a risk factor.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type RiskFactor struct {
	Name        string    `json:"name"`
	Level       RiskLevel `json:"level"`
	Impact      float64   `json:"impact"`
	Description string    `json:"description"`
}

// AIDecision is the verdict for one step evaluation.
type AIDecision struct {
	Action         RolloutAction `json:"recommendedAction"`
	Confidence     float64       `json:"confidence"`
	Rationale      string        `json:"rationale"`
	Considerations []string      `json:"considerations"`
}

// RolloutPrediction aggregates a simulation or prediction outcome.
type RolloutPrediction struct {
	SuccessProbability float64            `json:"successProbability"`
	RiskFactors        []RiskFactor       `json:"riskFactors"`
	ExpectedMetrics    map[string]float64 `json:"expectedMetrics"`
}

// AlertLevel grades a live safety-limit breach.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// MetricAlert is raised when a live metric breaches its safety limit.
type MetricAlert struct {
	MetricName   string     `json:"metricName"`
	CurrentValue float64    `json:"currentValue"`
	Threshold    float64    `json:"threshold"`
	Severity     AlertLevel `json:"severity"`
	Message      string     `json:"message"`
}
