package metricsource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-rollout/internal/models"
)

// StaticSource serves fixed values, the same for every flag. It backs local
// runs and tests.
type StaticSource struct {
	mu     sync.RWMutex
	values models.MetricSnapshot
	now    func() time.Time
}

func NewStaticSource(values map[string]float64) *StaticSource {
	s := &StaticSource{values: models.MetricSnapshot{}, now: time.Now}
	for k, v := range values {
		s.values[models.NormalizeMetricName(k)] = v
	}
	return s
}

func (s *StaticSource) Name() string { return "static" }

// Set replaces the value served for metric.
func (s *StaticSource) Set(metric string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[models.NormalizeMetricName(metric)] = value
}

func (s *StaticSource) Recent(ctx context.Context, ref models.FlagRef) ([]models.MetricDataPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.values) == 0 {
		return nil, ErrNoData
	}

	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)

	at := s.now().UTC()
	points := make([]models.MetricDataPoint, 0, len(names))
	for _, name := range names {
		points = append(points, models.MetricDataPoint{
			Timestamp:  at,
			MetricName: name,
			Value:      s.values[name],
			Tags:       map[string]string{"source": "static", "flag": ref.FeatureFlagKey},
		})
	}
	return points, nil
}

func (s *StaticSource) Ping(context.Context) error { return nil }
