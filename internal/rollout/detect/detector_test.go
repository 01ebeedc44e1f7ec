package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendResidual_SingleSpike(t *testing.T) {
	d := NewTrendResidual(DefaultParams())
	res, err := d.Detect([]float64{10, 10, 10, 10, 10, 10, 100})
	require.NoError(t, err)
	require.Len(t, res, 7)

	for i := 0; i < 6; i++ {
		assert.False(t, res[i].IsAnomaly, "point %d", i)
		assert.InDelta(t, 10, res[i].Expected, 1e-9)
	}
	assert.True(t, res[6].IsAnomaly)
	assert.InDelta(t, 10, res[6].Expected, 1e-9)
	assert.Greater(t, res[6].Margin, 0.8)
}

func TestTrendResidual_FollowsLinearTrend(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100 + 5*float64(i)
	}
	res, err := NewTrendResidual(DefaultParams()).Detect(values)
	require.NoError(t, err)
	for i, r := range res {
		assert.False(t, r.IsAnomaly, "point %d", i)
		assert.InDelta(t, values[i], r.Expected, 1e-6)
	}
}

func TestTrendResidual_MarginMonotoneInDeviation(t *testing.T) {
	d := NewTrendResidual(DefaultParams())
	prev := -1.0
	for _, spike := range []float64{10.5, 11, 12, 15, 20, 40, 80, 1000} {
		res, err := d.Detect([]float64{10, 10.1, 9.9, 10, 10.2, spike, 9.8, 10.1})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res[5].Margin, prev, "spike %.1f", spike)
		prev = res[5].Margin
	}
}

func TestTrendResidual_Errors(t *testing.T) {
	d := NewTrendResidual(DefaultParams())
	_, err := d.Detect([]float64{1, 2})
	assert.ErrorIs(t, err, ErrSeriesTooShort)

	_, err = d.Detect([]float64{1, math.NaN(), 3, 4})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestSpectralResidual_FlagsSpike(t *testing.T) {
	values := []float64{10, 11, 10, 9, 10, 11, 10, 9, 10, 11, 10, 9, 60, 10, 11, 10}
	res, err := NewSpectralResidual(DefaultParams()).Detect(values)
	require.NoError(t, err)

	flagged := 0
	for i, r := range res {
		if r.IsAnomaly {
			flagged++
			assert.Equal(t, 12, i)
		}
	}
	assert.Equal(t, 1, flagged)
	assert.Greater(t, res[12].Score, DefaultParams().SaliencyThreshold)
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New("isolation_forest", DefaultParams())
	assert.Error(t, err)

	d, err := New("", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, AlgorithmTrendResidual, d.Name())
}
