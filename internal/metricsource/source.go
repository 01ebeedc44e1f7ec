// Package metricsource supplies the current metrics of a flag rollout for
// live analysis.
package metricsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/platformbuilds/mirador-rollout/internal/config"
	"github.com/platformbuilds/mirador-rollout/internal/models"
	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

// ErrNoData is returned when a source has nothing for the requested flag.
var ErrNoData = errors.New("metrics source returned no data")

// Source reads recent metric samples for a flag.
type Source interface {
	Name() string
	// Recent returns the samples inside the source's lookback window.
	Recent(ctx context.Context, ref models.FlagRef) ([]models.MetricDataPoint, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// New builds the source selected by cfg.Type.
func New(cfg config.MetricsSourceConfig, log logger.Logger) (Source, error) {
	switch cfg.Type {
	case "", config.SourceStatic:
		return NewStaticSource(cfg.Static), nil
	case config.SourcePrometheus:
		return NewPrometheusSource(cfg, log)
	default:
		return nil, fmt.Errorf("unknown metrics source type %q", cfg.Type)
	}
}
