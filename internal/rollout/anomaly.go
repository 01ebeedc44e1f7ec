package rollout

import (
	"fmt"
	"sort"
	"time"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/internal/rollout/detect"
)

const insufficientDataMessage = "Data insufficient for anomaly detection; collect more metric history before relying on this analysis"

// AnomalyDetector scans metric history for points that leave their expected
// trend and grades them by margin.
type AnomalyDetector struct {
	settings AnomalySettings
	detector detect.SeriesDetector
	log      logging.Logger
}

func NewAnomalyDetector(s AnomalySettings, log logging.Logger) (*AnomalyDetector, error) {
	d, err := detect.New(s.Algorithm, s.Detector)
	if err != nil {
		return nil, err
	}
	return &AnomalyDetector{settings: s, detector: d, log: log}, nil
}

// Algorithm names the series detector in use.
func (a *AnomalyDetector) Algorithm() string { return a.detector.Name() }

func (a *AnomalyDetector) Detect(req models.AnomalyDetectionRequest) models.AnomalyDetectionResponse {
	return guard(a.log, "anomaly", func() (models.AnomalyDetectionResponse, error) {
		return a.detect(req)
	}, a.Degrade)
}

// Degrade is the safe response: no anomalies, no risk, plus a caution.
func (a *AnomalyDetector) Degrade(reason string) models.AnomalyDetectionResponse {
	resp := insufficientResponse()
	resp.Degraded = true
	resp.Recommendations = append(resp.Recommendations, "Anomaly analysis was skipped: "+reason)
	return resp
}

func insufficientResponse() models.AnomalyDetectionResponse {
	return models.AnomalyDetectionResponse{
		HasAnomalies:    false,
		Anomalies:       []models.AnomalyAlert{},
		RiskScore:       0,
		Recommendations: []string{insufficientDataMessage},
		AnalyzedAt:      time.Now().UTC(),
	}
}

func (a *AnomalyDetector) detect(req models.AnomalyDetectionRequest) (models.AnomalyDetectionResponse, error) {
	days := req.LookbackDays
	if days <= 0 {
		days = a.settings.LookbackDays
	}
	groups := models.GroupByMetric(models.Window(req.MetricHistory, time.Duration(days)*24*time.Hour))

	names := make([]string, 0, len(groups))
	for name, pts := range groups {
		if len(pts) >= a.settings.MinPoints {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return insufficientResponse(), nil
	}
	sort.Strings(names)

	alerts := []models.AnomalyAlert{}
	perMetric := map[string]int{}
	for _, name := range names {
		pts := groups[name]
		values := make([]float64, len(pts))
		for i, p := range pts {
			values[i] = p.Value
		}
		results, err := a.detector.Detect(values)
		if err != nil {
			return models.AnomalyDetectionResponse{}, fmt.Errorf("metric %s: %w", name, err)
		}
		for i, r := range results {
			if !r.IsAnomaly {
				continue
			}
			sev := severityForMargin(r.Margin)
			alerts = append(alerts, models.AnomalyAlert{
				MetricName:    name,
				ObservedValue: pts[i].Value,
				ExpectedValue: r.Expected,
				Deviation:     pts[i].Value - r.Expected,
				MarginScore:   r.Margin,
				Severity:      sev,
				DetectedAt:    pts[i].Timestamp,
				Description: fmt.Sprintf("%s anomaly in %s: observed %.3f, expected %.3f",
					sev, name, pts[i].Value, r.Expected),
			})
			perMetric[name]++
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].DetectedAt.Before(alerts[j].DetectedAt) })

	risk := riskScore(alerts)
	a.log.Debug("Anomaly detection finished", "flag", req.FeatureFlagKey, "metrics", len(names), "alerts", len(alerts), "risk", risk)
	return models.AnomalyDetectionResponse{
		HasAnomalies:    len(alerts) > 0,
		Anomalies:       alerts,
		RiskScore:       risk,
		Recommendations: anomalyRecommendations(alerts, perMetric, names, risk, days),
		AnalyzedAt:      time.Now().UTC(),
	}, nil
}

func severityForMargin(m float64) models.Severity {
	switch {
	case m >= 0.8:
		return models.SeverityCritical
	case m >= 0.6:
		return models.SeverityHigh
	case m >= 0.4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func riskScore(alerts []models.AnomalyAlert) float64 {
	if len(alerts) == 0 {
		return 0
	}
	var sum float64
	for _, al := range alerts {
		sum += al.Severity.Weight()
	}
	return sum / float64(len(alerts))
}

func anomalyRecommendations(alerts []models.AnomalyAlert, perMetric map[string]int, names []string, risk float64, days int) []string {
	if len(alerts) == 0 {
		return []string{fmt.Sprintf("No anomalies detected in the last %d day(s); metrics follow their expected trend", days)}
	}
	var critical, high int
	for _, al := range alerts {
		switch al.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityHigh:
			high++
		}
	}

	recs := []string{fmt.Sprintf("%d anomalous data point(s) detected across %d metric(s)", len(alerts), len(perMetric))}
	if critical > 0 {
		recs = append(recs, fmt.Sprintf("%d critical anomaly(ies): pause the rollout or prepare a rollback", critical))
	}
	if high > 0 {
		recs = append(recs, fmt.Sprintf("%d high-severity anomaly(ies): investigate before increasing exposure", high))
	}
	if risk > 0.7 {
		recs = append(recs, "Overall anomaly risk is elevated; slow the rollout until metrics stabilise")
	}
	for _, name := range names {
		if n := perMetric[name]; n > 0 {
			recs = append(recs, fmt.Sprintf("Review %s: %d anomalous point(s)", name, n))
		}
	}
	return recs
}
