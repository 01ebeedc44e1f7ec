package detect

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

const (
	srExtendPoints   = 5
	srGradientPoints = 5
	srAverageWindow  = 3
	srScoreWindow    = 21
)

// SpectralResidual flags points whose spectral-residual saliency stands out
// from the preceding saliency window. Expected values and margins come from
// the robust trend so severity grading is shared with TrendResidual.
type SpectralResidual struct {
	params Params
	trend  *TrendResidual
}

func NewSpectralResidual(p Params) *SpectralResidual {
	return &SpectralResidual{params: p, trend: NewTrendResidual(p)}
}

func (d *SpectralResidual) Name() string { return AlgorithmSpectralResidual }

func (d *SpectralResidual) Detect(values []float64) ([]Result, error) {
	base, err := d.trend.Detect(values)
	if err != nil {
		return nil, err
	}
	scores := saliencyScores(values)
	for i := range base {
		base[i].Score = scores[i]
		base[i].IsAnomaly = scores[i] >= d.params.SaliencyThreshold && base[i].Margin >= d.params.Threshold
	}
	return base, nil
}

// saliencyScores returns (s_i - mean(s_{i-w..i-1})) / mean for the saliency map s.
func saliencyScores(values []float64) []float64 {
	extended := extendSeries(values)
	sal := saliencyMap(extended)[:len(values)]

	scores := make([]float64, len(values))
	for i := range sal {
		lo := max(0, i-srScoreWindow)
		window := sal[lo:i]
		if len(window) == 0 {
			continue
		}
		mean := stat.Mean(window, nil)
		if mean <= 1e-12 {
			continue
		}
		scores[i] = (sal[i] - mean) / mean
	}
	return scores
}

// extendSeries appends estimated points past the end so the last real sample
// is not at the FFT boundary.
func extendSeries(values []float64) []float64 {
	n := len(values)
	last := values[n-1]
	m := min(srGradientPoints, n-1)
	var grad float64
	for k := 1; k <= m; k++ {
		grad += (last - values[n-1-k]) / float64(k)
	}
	if m > 0 {
		grad /= float64(m)
	}
	next := values[max(0, n-m-1)] + grad*float64(m)

	out := make([]float64, 0, n+srExtendPoints)
	out = append(out, values...)
	for i := 0; i < srExtendPoints; i++ {
		out = append(out, next)
	}
	return out
}

func saliencyMap(x []float64) []float64 {
	fft := fourier.NewFFT(len(x))
	coeff := fft.Coefficients(nil, x)

	logAmp := make([]float64, len(coeff))
	for i, c := range coeff {
		logAmp[i] = math.Log(cmplx.Abs(c) + 1e-8)
	}
	avg := movingAverage(logAmp, srAverageWindow)

	for i, c := range coeff {
		amp := cmplx.Abs(c)
		if amp == 0 {
			continue
		}
		residual := math.Exp(logAmp[i] - avg[i])
		coeff[i] = complex(residual*real(c)/amp, residual*imag(c)/amp)
	}

	seq := fft.Sequence(nil, coeff)
	for i, v := range seq {
		seq[i] = math.Abs(v)
	}
	return seq
}

func movingAverage(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := max(0, i-w/2)
		hi := min(len(x), i+w/2+1)
		out[i] = stat.Mean(x[lo:hi], nil)
	}
	return out
}
