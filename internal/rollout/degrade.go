package rollout

import (
	"fmt"
	"math"

	"github.com/platformbuilds/mirador-rollout/internal/logging"
)

const (
	minProbability = 0.1
	maxProbability = 0.99
)

// guard runs an analyzer body and converts any error or panic into that
// analyzer's safe response. Failures are logged and never propagated.
func guard[T any](log logging.Logger, analyzer string, run func() (T, error), degrade func(reason string) T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Analyzer panicked, returning safe default", "analyzer", analyzer, "panic", fmt.Sprint(r))
			out = degrade(fmt.Sprintf("internal error: %v", r))
		}
	}()

	res, err := run()
	if err != nil {
		log.Warn("Analyzer failed, returning safe default", "analyzer", analyzer, "error", err)
		return degrade(err.Error())
	}
	return res
}

// clampProbability bounds a probability or confidence to [0.1, 0.99]; NaN
// collapses to the lower bound.
func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return minProbability
	}
	return math.Max(minProbability, math.Min(maxProbability, p))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
