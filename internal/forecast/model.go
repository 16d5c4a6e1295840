package forecast

import (
	"fmt"
	"math"
)

// Model maps a batch of normalized sequences (batch, time, features) to one output row per sample.
// Implementations must be safe for concurrent use; they are shared read-only after load.
type Model interface {
	Predict(x [][][]float64) ([][]float64, error)
}

// LinearModel is an autoregressive linear model: y = bias + sum(w[t] * x[t]) over one feature.
type LinearModel struct {
	weights []float64
	bias    float64
}

// NewLinearModel builds a linear model over len(weights) time steps.
func NewLinearModel(weights []float64, bias float64) (*LinearModel, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("linear: no weights")
	}
	w := make([]float64, len(weights))
	copy(w, weights)
	return &LinearModel{weights: w, bias: bias}, nil
}

// TimeStep returns the window length the model consumes.
func (m *LinearModel) TimeStep() int { return len(m.weights) }

func (m *LinearModel) Predict(x [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for b, seq := range x {
		if len(seq) != len(m.weights) {
			return nil, fmt.Errorf("linear: sample %d has %d steps, want %d", b, len(seq), len(m.weights))
		}
		y := m.bias
		for t, step := range seq {
			if len(step) != 1 {
				return nil, fmt.Errorf("linear: sample %d step %d has %d features, want 1", b, t, len(step))
			}
			y += m.weights[t] * step[0]
		}
		out[b] = []float64{y}
	}
	return out, nil
}

// Activation names accepted on dense layers.
const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
)

// DenseLayer is a fully connected layer: activation(x·Kernel + Bias).
type DenseLayer struct {
	Kernel     [][]float64 // in × out
	Bias       []float64   // out
	Activation string
}

func (d *DenseLayer) validate(in int) (int, error) {
	if len(d.Kernel) != in {
		return 0, fmt.Errorf("dense kernel has %d rows, want %d", len(d.Kernel), in)
	}
	out := len(d.Bias)
	if out == 0 {
		return 0, fmt.Errorf("dense bias is empty")
	}
	for i, row := range d.Kernel {
		if len(row) != out {
			return 0, fmt.Errorf("dense kernel row %d has %d columns, want %d", i, len(row), out)
		}
	}
	switch d.Activation {
	case "", ActivationLinear, ActivationReLU, ActivationTanh, ActivationSigmoid:
	default:
		return 0, fmt.Errorf("dense activation %q is not supported", d.Activation)
	}
	return out, nil
}

func (d *DenseLayer) forward(x []float64) []float64 {
	out := make([]float64, len(d.Bias))
	copy(out, d.Bias)
	for i, xi := range x {
		row := d.Kernel[i]
		for j := range out {
			out[j] += xi * row[j]
		}
	}
	for j, v := range out {
		out[j] = activate(d.Activation, v)
	}
	return out
}

func activate(name string, v float64) float64 {
	switch name {
	case ActivationReLU:
		return math.Max(0, v)
	case ActivationTanh:
		return math.Tanh(v)
	case ActivationSigmoid:
		return sigmoid(v)
	default:
		return v
	}
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

var _ Model = (*LinearModel)(nil)
