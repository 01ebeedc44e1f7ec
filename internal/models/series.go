package models

import (
	"sort"
	"time"
)

// SortedSteps returns a copy of steps ordered by step number.
func SortedSteps(steps []RolloutStep) []RolloutStep {
	out := append([]RolloutStep(nil), steps...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out
}

// SortByTime returns a copy of points ordered by timestamp (stable).
func SortByTime(points []MetricDataPoint) []MetricDataPoint {
	out := append([]MetricDataPoint(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// GroupByMetric splits points into per-metric series keyed by canonical name,
// each ordered by timestamp.
func GroupByMetric(points []MetricDataPoint) map[string][]MetricDataPoint {
	groups := make(map[string][]MetricDataPoint)
	for _, p := range SortByTime(points) {
		name := NormalizeMetricName(p.MetricName)
		groups[name] = append(groups[name], p)
	}
	return groups
}

// Window keeps the points no older than lookback relative to the newest point.
func Window(points []MetricDataPoint, lookback time.Duration) []MetricDataPoint {
	if len(points) == 0 || lookback <= 0 {
		return append([]MetricDataPoint(nil), points...)
	}
	newest := points[0].Timestamp
	for _, p := range points[1:] {
		if p.Timestamp.After(newest) {
			newest = p.Timestamp
		}
	}
	cutoff := newest.Add(-lookback)
	out := make([]MetricDataPoint, 0, len(points))
	for _, p := range points {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// LatestSnapshot takes the most recent value of every metric.
func LatestSnapshot(points []MetricDataPoint) MetricSnapshot {
	snap := make(MetricSnapshot)
	latest := make(map[string]time.Time)
	for _, p := range points {
		name := NormalizeMetricName(p.MetricName)
		if ts, ok := latest[name]; ok && p.Timestamp.Before(ts) {
			continue
		}
		latest[name] = p.Timestamp
		snap[name] = p.Value
	}
	return snap
}

// DailyAggregate is the per-day mean of each metric plus the mean of all
// samples recorded that day.
type DailyAggregate struct {
	Day       time.Time
	Means     MetricSnapshot
	OverallMu float64
	Samples   int
}

// AggregateDaily buckets points by UTC calendar day, oldest first.
func AggregateDaily(points []MetricDataPoint) []DailyAggregate {
	type acc struct {
		sums   map[string]float64
		counts map[string]int
		total  float64
		n      int
	}
	days := make(map[time.Time]*acc)
	for _, p := range points {
		day := p.Timestamp.UTC().Truncate(24 * time.Hour)
		a, ok := days[day]
		if !ok {
			a = &acc{sums: map[string]float64{}, counts: map[string]int{}}
			days[day] = a
		}
		name := NormalizeMetricName(p.MetricName)
		a.sums[name] += p.Value
		a.counts[name]++
		a.total += p.Value
		a.n++
	}

	out := make([]DailyAggregate, 0, len(days))
	for day, a := range days {
		means := make(MetricSnapshot, len(a.sums))
		for name, sum := range a.sums {
			means[name] = sum / float64(a.counts[name])
		}
		out = append(out, DailyAggregate{Day: day, Means: means, OverallMu: a.total / float64(a.n), Samples: a.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
