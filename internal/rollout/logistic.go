package rollout

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	errSingleClass = errors.New("training labels contain a single class")
	errDiverged    = errors.New("logistic regression diverged")
)

// logisticModel is an L2-regularised logistic regression over standardised
// features. It lives only for the duration of one prediction call.
type logisticModel struct {
	mean    []float64
	std     []float64
	weights []float64
	bias    float64
}

type fitOptions struct {
	learningRate float64
	iterations   int
	l2           float64
}

// fitLogistic runs deterministic batch gradient descent from zero weights.
// Cost is O(iterations x rows x features).
func fitLogistic(x [][]float64, y []float64, opts fitOptions) (*logisticModel, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("feature and label counts differ")
	}
	if floats.Min(y) == floats.Max(y) {
		return nil, errSingleClass
	}

	cols := len(x[0])
	m := &logisticModel{
		mean:    make([]float64, cols),
		std:     make([]float64, cols),
		weights: make([]float64, cols),
	}
	column := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i := range x {
			column[i] = x[i][j]
		}
		mu, sd := stat.MeanStdDev(column, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		m.mean[j], m.std[j] = mu, sd
	}

	z := make([][]float64, len(x))
	for i := range x {
		z[i] = m.standardise(x[i])
	}

	n := float64(len(z))
	grad := make([]float64, cols)
	for it := 0; it < opts.iterations; it++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, row := range z {
			diff := sigmoid(floats.Dot(m.weights, row)+m.bias) - y[i]
			floats.AddScaled(grad, diff, row)
			gradBias += diff
		}
		floats.Scale(1/n, grad)
		floats.AddScaled(grad, opts.l2, m.weights)
		floats.AddScaled(m.weights, -opts.learningRate, grad)
		m.bias -= opts.learningRate * gradBias / n
	}

	if floats.HasNaN(m.weights) || math.IsNaN(m.bias) || math.IsInf(m.bias, 0) {
		return nil, errDiverged
	}
	return m, nil
}

func (m *logisticModel) standardise(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - m.mean[j]) / m.std[j]
	}
	return out
}

func (m *logisticModel) predict(row []float64) float64 {
	return sigmoid(floats.Dot(m.weights, m.standardise(row)) + m.bias)
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
