package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMetricName(t *testing.T) {
	for in, want := range map[string]string{
		"error_rate":     "error_rate",
		"errorRate":      "error_rate",
		"ErrorRate":      "error_rate",
		"error-rate":     "error_rate",
		" response.time": "response_time",
		"user__count_":   "user_count",
		"p99":            "p99",
	} {
		assert.Equal(t, want, NormalizeMetricName(in), in)
	}
}

func TestWindow_AnchorsAtNewestPoint(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []MetricDataPoint{
		{Timestamp: base, MetricName: "a"},
		{Timestamp: base.Add(10 * 24 * time.Hour), MetricName: "a"},
		{Timestamp: base.Add(12 * 24 * time.Hour), MetricName: "a"},
	}
	got := Window(points, 7*24*time.Hour)
	require.Len(t, got, 2)
	assert.Equal(t, points[1].Timestamp, got[0].Timestamp)
	assert.Len(t, Window(points, 0), 3)
}

func TestAggregateDaily(t *testing.T) {
	day1 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	points := []MetricDataPoint{
		{Timestamp: day2, MetricName: "error_rate", Value: 4},
		{Timestamp: day1, MetricName: "error_rate", Value: 1},
		{Timestamp: day1.Add(time.Hour), MetricName: "errorRate", Value: 3},
		{Timestamp: day1, MetricName: "response_time", Value: 200},
	}
	days := AggregateDaily(points)
	require.Len(t, days, 2)
	assert.Equal(t, 2.0, days[0].Means["error_rate"])
	assert.Equal(t, 200.0, days[0].Means["response_time"])
	assert.Equal(t, 68.0, days[0].OverallMu)
	assert.Equal(t, 3, days[0].Samples)
	assert.Equal(t, 4.0, days[1].Means["error_rate"])
}

func TestLatestSnapshot(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := LatestSnapshot([]MetricDataPoint{
		{Timestamp: base.Add(time.Minute), MetricName: "error_rate", Value: 1},
		{Timestamp: base, MetricName: "ErrorRate", Value: 7},
		{Timestamp: base, MetricName: "response_time", Value: 120},
	})
	assert.Equal(t, MetricSnapshot{"error_rate": 1, "response_time": 120}, snap)
	assert.Equal(t, 120.0, snap.Get("responseTime"))
}

func TestConfiguration_CloneIsIndependent(t *testing.T) {
	cfg := RolloutConfiguration{
		Steps:        []RolloutStep{{StepNumber: 1, Percentage: 10, Conditions: []string{"no errors"}}},
		SafetyLimits: map[string]float64{"error_rate": 2},
	}
	c := cfg.Clone()
	c.Steps[0].Percentage = 90
	c.Steps[0].Conditions[0] = "changed"
	c.SafetyLimits["error_rate"] = 9
	assert.Equal(t, 10.0, cfg.Steps[0].Percentage)
	assert.Equal(t, "no errors", cfg.Steps[0].Conditions[0])
	assert.Equal(t, 2.0, cfg.SafetyLimits["error_rate"])
	assert.Equal(t, 3*time.Hour, RolloutConfiguration{Steps: []RolloutStep{
		{Duration: Duration(time.Hour)}, {Duration: Duration(2 * time.Hour)},
	}}.TotalDuration())
}
