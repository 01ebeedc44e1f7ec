package detect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	madToSigma = 1.4826
	minScale   = 1e-3
)

// TrendResidual compares each point with a robust local trend fitted on its
// neighbours only. Expected value and scale for point i never depend on the
// value at i, so the margin grows monotonically with that point's deviation.
type TrendResidual struct {
	params Params
}

func NewTrendResidual(p Params) *TrendResidual {
	if p.Window <= 0 {
		p.Window = DefaultParams().Window
	}
	return &TrendResidual{params: p}
}

func (d *TrendResidual) Name() string { return AlgorithmTrendResidual }

func (d *TrendResidual) Detect(values []float64) ([]Result, error) {
	if len(values) < 3 {
		return nil, ErrSeriesTooShort
	}
	if err := checkFinite(values); err != nil {
		return nil, err
	}

	k := marginConstant(d.params.Sensitivity)
	out := make([]Result, len(values))
	for i, v := range values {
		expected, scale := d.baseline(values, i)
		z := math.Abs(v-expected) / scale
		margin := z / (z + k)
		out[i] = Result{
			IsAnomaly: margin >= d.params.Threshold,
			Expected:  expected,
			Margin:    margin,
			Score:     z,
		}
	}
	return out, nil
}

// baseline fits a Theil-Sen line through the neighbours of i and returns the
// prediction at i plus a MAD-based residual scale.
func (d *TrendResidual) baseline(values []float64, i int) (expected, scale float64) {
	lo := max(0, i-d.params.Window)
	hi := min(len(values)-1, i+d.params.Window)

	xs := make([]float64, 0, hi-lo)
	ys := make([]float64, 0, hi-lo)
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		xs = append(xs, float64(j))
		ys = append(ys, values[j])
	}

	slope, intercept := theilSen(xs, ys)
	expected = intercept + slope*float64(i)

	resid := make([]float64, len(xs))
	for j := range xs {
		resid[j] = math.Abs(ys[j] - (intercept + slope*xs[j]))
	}
	scale = madToSigma * median(resid)
	floor := math.Max(d.params.ScaleFloorRatio*math.Abs(expected), minScale)
	return expected, math.Max(scale, floor)
}

func theilSen(xs, ys []float64) (slope, intercept float64) {
	slopes := make([]float64, 0, len(xs)*(len(xs)-1)/2)
	for a := 0; a < len(xs); a++ {
		for b := a + 1; b < len(xs); b++ {
			if dx := xs[b] - xs[a]; dx != 0 {
				slopes = append(slopes, (ys[b]-ys[a])/dx)
			}
		}
	}
	if len(slopes) > 0 {
		slope = median(slopes)
	}
	offsets := make([]float64, len(xs))
	for j := range xs {
		offsets[j] = ys[j] - slope*xs[j]
	}
	return slope, median(offsets)
}

// median sorts x in place.
func median(x []float64) float64 {
	switch len(x) {
	case 0:
		return 0
	case 1:
		return x[0]
	}
	sort.Float64s(x)
	if len(x)%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, x, nil)
	}
	mid := len(x) / 2
	return (x[mid-1] + x[mid]) / 2
}
