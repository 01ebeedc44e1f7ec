package rollout

import (
	"fmt"
	"sort"

	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// Fixed risk thresholds applied to a metric snapshot.
const (
	riskErrorRate      = 2.0
	riskResponseTime   = 500.0
	riskConversionRate = 5.0

	approachingLimitRatio = 0.8
)

// RiskAnalyzer derives qualitative risk factors from metric values.
type RiskAnalyzer struct{}

// Assess applies the three fixed checks: error rate, response time and
// conversion rate.
func (RiskAnalyzer) Assess(s models.MetricSnapshot) []models.RiskFactor {
	factors := []models.RiskFactor{}
	if v, ok := s[models.MetricErrorRate]; ok && v > riskErrorRate {
		factors = append(factors, models.RiskFactor{
			Name:        "elevated error rate",
			Level:       models.RiskHigh,
			Impact:      0.3,
			Description: fmt.Sprintf("error rate %.2f is above %.1f", v, riskErrorRate),
		})
	}
	if v, ok := s[models.MetricResponseTime]; ok && v > riskResponseTime {
		factors = append(factors, models.RiskFactor{
			Name:        "slow response time",
			Level:       models.RiskMedium,
			Impact:      0.2,
			Description: fmt.Sprintf("response time %.0f is above %.0f", v, riskResponseTime),
		})
	}
	if v, ok := s[models.MetricConversionRate]; ok && v < riskConversionRate {
		factors = append(factors, models.RiskFactor{
			Name:        "low conversion rate",
			Level:       models.RiskMedium,
			Impact:      0.15,
			Description: fmt.Sprintf("conversion rate %.2f is below %.1f", v, riskConversionRate),
		})
	}
	return factors
}

// AssessLimits compares each limited metric with its safety limit. A breach is
// High; a value at 80% of the limit or more is Medium.
func (RiskAnalyzer) AssessLimits(s models.MetricSnapshot, limits map[string]float64) []models.RiskFactor {
	limits = models.NormalizeLimits(limits)
	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)

	factors := []models.RiskFactor{}
	for _, name := range names {
		limit := limits[name]
		v, ok := s[name]
		if !ok || limit <= 0 {
			continue
		}
		ratio := v / limit
		switch {
		case ratio > 1:
			factors = append(factors, models.RiskFactor{
				Name:        name + " over safety limit",
				Level:       models.RiskHigh,
				Impact:      0.4,
				Description: fmt.Sprintf("%s is %.2f against a limit of %.2f", name, v, limit),
			})
		case ratio >= approachingLimitRatio:
			factors = append(factors, models.RiskFactor{
				Name:        name + " approaching safety limit",
				Level:       models.RiskMedium,
				Impact:      0.2,
				Description: fmt.Sprintf("%s is at %.0f%% of its safety limit", name, ratio*100),
			})
		}
	}
	return factors
}
