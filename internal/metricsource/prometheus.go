package metricsource

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"golang.org/x/sync/errgroup"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// PrometheusSource runs one range query per tracked metric. Queries may use
// the placeholders {{project}}, {{environment}} and {{flag}}.
type PrometheusSource struct {
	api       v1.API
	transport *caTransport
	queries   map[string]string
	step      time.Duration
	lookback  time.Duration
	timeout   time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewPrometheusSource(cfg config.MetricsSourceConfig, log logger.Logger) (*PrometheusSource, error) {
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("prometheus source has no queries")
	}
	if log == nil {
		log = logger.NewNop()
	}
	transport, err := newCATransport(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("prometheus TLS: %w", err)
	}
	client, err := api.NewClient(api.Config{Address: cfg.Address, RoundTripper: transport})
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	queries := make(map[string]string, len(cfg.Queries))
	for name, q := range cfg.Queries {
		queries[models.NormalizeMetricName(name)] = q
	}
	s := &PrometheusSource{
		api:       v1.NewAPI(client),
		transport: transport,
		queries:   queries,
		step:      cfg.Step,
		lookback:  cfg.Lookback,
		timeout:   cfg.Timeout,
		logger:    log,
		now:       time.Now,
	}
	if s.step <= 0 {
		s.step = config.DefaultSourceStep
	}
	if s.lookback <= 0 {
		s.lookback = config.DefaultSourceLookback
	}
	if s.timeout <= 0 {
		s.timeout = config.DefaultSourceTimeout
	}
	return s, nil
}

func (s *PrometheusSource) Name() string { return "prometheus" }

// Close stops the CA bundle watcher and drops idle connections.
func (s *PrometheusSource) Close() error { return s.transport.Close() }

func (s *PrometheusSource) Recent(ctx context.Context, ref models.FlagRef) ([]models.MetricDataPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names := make([]string, 0, len(s.queries))
	for name := range s.queries {
		names = append(names, name)
	}
	sort.Strings(names)

	end := s.now()
	r := v1.Range{Start: end.Add(-s.lookback), End: end, Step: s.step}
	results := make([][]models.MetricDataPoint, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		query := renderQuery(s.queries[name], ref)
		g.Go(func() error {
			value, warnings, err := s.api.QueryRange(gctx, query, r)
			if err != nil {
				return fmt.Errorf("query %s: %w", name, err)
			}
			if len(warnings) > 0 {
				s.logger.Warn("Prometheus query returned warnings", "metric", name, "warnings", warnings)
			}
			results[i] = toPoints(name, value)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var points []models.MetricDataPoint
	for _, r := range results {
		points = append(points, r...)
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return models.SortByTime(points), nil
}

func (s *PrometheusSource) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.api.Buildinfo(ctx); err != nil {
		return fmt.Errorf("prometheus unreachable: %w", err)
	}
	return nil
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func renderQuery(tmpl string, ref models.FlagRef) string {
	return strings.NewReplacer(
		"{{project}}", labelEscaper.Replace(ref.ProjectKey),
		"{{environment}}", labelEscaper.Replace(ref.Environment),
		"{{flag}}", labelEscaper.Replace(ref.FeatureFlagKey),
	).Replace(tmpl)
}

// toPoints flattens a query result. NaN samples (0/0 ratios) are dropped.
func toPoints(name string, value model.Value) []models.MetricDataPoint {
	var out []models.MetricDataPoint
	add := func(ts model.Time, v model.SampleValue, metric model.Metric) {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}
		out = append(out, models.MetricDataPoint{
			Timestamp:  ts.Time().UTC(),
			MetricName: name,
			Value:      f,
			Tags:       labels(metric),
		})
	}

	switch v := value.(type) {
	case model.Matrix:
		for _, stream := range v {
			for _, pair := range stream.Values {
				add(pair.Timestamp, pair.Value, stream.Metric)
			}
		}
	case model.Vector:
		for _, sample := range v {
			add(sample.Timestamp, sample.Value, sample.Metric)
		}
	case *model.Scalar:
		add(v.Timestamp, v.Value, nil)
	}
	return out
}

func labels(m model.Metric) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = string(v)
	}
	return out
}
