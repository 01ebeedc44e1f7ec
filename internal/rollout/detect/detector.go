// Package detect holds the single-channel anomaly detectors used by the
// rollout anomaly analyzer. A detector scores every point of a series with a
// flag, an expected value and a margin in [0,1].
package detect

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrSeriesTooShort = errors.New("series too short")
	ErrNonFinite      = errors.New("series contains non-finite values")
)

// Result is the per-point verdict of a detector.
type Result struct {
	IsAnomaly bool
	Expected  float64
	Margin    float64
	// Score is the raw detector statistic (robust z or saliency score).
	Score float64
}

// SeriesDetector scores a single-channel series ordered by time.
type SeriesDetector interface {
	Name() string
	Detect(values []float64) ([]Result, error)
}

// Params tunes the detectors.
type Params struct {
	// Threshold is the minimum margin for a point to be flagged.
	Threshold float64
	// Sensitivity in [0,1]; higher values produce larger margins for the same deviation.
	Sensitivity float64
	// Window is the number of neighbours considered on each side of a point.
	Window int
	// ScaleFloorRatio bounds the residual scale from below as a fraction of the expected value.
	ScaleFloorRatio float64
	// SaliencyThreshold gates spectral residual flags.
	SaliencyThreshold float64
}

func DefaultParams() Params {
	return Params{
		Threshold:         0.35,
		Sensitivity:       0.5,
		Window:            12,
		ScaleFloorRatio:   0.05,
		SaliencyThreshold: 1.0,
	}
}

const (
	AlgorithmTrendResidual    = "trend_residual"
	AlgorithmSpectralResidual = "spectral_residual"
)

// Algorithms lists the names accepted by New.
var Algorithms = []string{AlgorithmTrendResidual, AlgorithmSpectralResidual}

// New returns the detector registered under algorithm.
func New(algorithm string, p Params) (SeriesDetector, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmTrendResidual:
		return NewTrendResidual(p), nil
	case AlgorithmSpectralResidual:
		return NewSpectralResidual(p), nil
	default:
		return nil, fmt.Errorf("unknown anomaly algorithm %q", algorithm)
	}
}

func checkFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	return nil
}

// marginConstant maps sensitivity to the half-saturation point of z/(z+k).
func marginConstant(sensitivity float64) float64 {
	s := math.Max(0, math.Min(1, sensitivity))
	return 2 + 6*(1-s)
}
