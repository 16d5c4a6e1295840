package forecast

import (
	"fmt"
	"math"
)

// LSTMLayer holds one recurrent layer's weights in Keras layout. Gate blocks are ordered
// input, forget, cell, output along the 4*units axis.
type LSTMLayer struct {
	Kernel          [][]float64 // in × 4u
	RecurrentKernel [][]float64 // u × 4u
	Bias            []float64   // 4u
}

func (l *LSTMLayer) units() int { return len(l.Bias) / 4 }

func (l *LSTMLayer) validate(in int) (int, error) {
	if len(l.Bias) == 0 || len(l.Bias)%4 != 0 {
		return 0, fmt.Errorf("lstm bias length %d is not a positive multiple of 4", len(l.Bias))
	}
	u := l.units()
	if len(l.Kernel) != in {
		return 0, fmt.Errorf("lstm kernel has %d rows, want %d", len(l.Kernel), in)
	}
	for i, row := range l.Kernel {
		if len(row) != 4*u {
			return 0, fmt.Errorf("lstm kernel row %d has %d columns, want %d", i, len(row), 4*u)
		}
	}
	if len(l.RecurrentKernel) != u {
		return 0, fmt.Errorf("lstm recurrent kernel has %d rows, want %d", len(l.RecurrentKernel), u)
	}
	for i, row := range l.RecurrentKernel {
		if len(row) != 4*u {
			return 0, fmt.Errorf("lstm recurrent kernel row %d has %d columns, want %d", i, len(row), 4*u)
		}
	}
	return u, nil
}

// run feeds seq through the layer and returns every hidden state.
func (l *LSTMLayer) run(seq [][]float64) [][]float64 {
	u := l.units()
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)
	states := make([][]float64, len(seq))

	for t, x := range seq {
		copy(z, l.Bias)
		for i, xi := range x {
			row := l.Kernel[i]
			for j := range z {
				z[j] += xi * row[j]
			}
		}
		for i, hi := range h {
			row := l.RecurrentKernel[i]
			for j := range z {
				z[j] += hi * row[j]
			}
		}

		next := make([]float64, u)
		for k := 0; k < u; k++ {
			in := sigmoid(z[k])
			forget := sigmoid(z[u+k])
			cand := math.Tanh(z[2*u+k])
			out := sigmoid(z[3*u+k])
			c[k] = forget*c[k] + in*cand
			next[k] = out * math.Tanh(c[k])
		}
		h = next
		states[t] = next
	}
	return states
}

// LSTMModel is a stack of LSTM layers followed by dense layers. Every LSTM layer but the last
// returns sequences; the dense head reads the final hidden state.
type LSTMModel struct {
	timeStep int
	features int
	layers   []LSTMLayer
	dense    []DenseLayer
}

// NewLSTMModel validates the layer shapes and builds the model. The head must end in a single output.
func NewLSTMModel(timeStep, features int, layers []LSTMLayer, dense []DenseLayer) (*LSTMModel, error) {
	if timeStep <= 0 {
		return nil, fmt.Errorf("lstm: time_step must be positive, got %d", timeStep)
	}
	if features <= 0 {
		features = 1
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("lstm: at least one recurrent layer is required")
	}
	in := features
	for i := range layers {
		u, err := layers[i].validate(in)
		if err != nil {
			return nil, fmt.Errorf("lstm: layer %d: %w", i, err)
		}
		in = u
	}
	for i := range dense {
		out, err := dense[i].validate(in)
		if err != nil {
			return nil, fmt.Errorf("lstm: dense %d: %w", i, err)
		}
		in = out
	}
	if in != 1 {
		return nil, fmt.Errorf("lstm: model produces %d outputs, want 1", in)
	}
	return &LSTMModel{timeStep: timeStep, features: features, layers: layers, dense: dense}, nil
}

// TimeStep returns the window length the model was trained on.
func (m *LSTMModel) TimeStep() int { return m.timeStep }

func (m *LSTMModel) Predict(x [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for b, seq := range x {
		if len(seq) != m.timeStep {
			return nil, fmt.Errorf("lstm: sample %d has %d steps, want %d", b, len(seq), m.timeStep)
		}
		for t, step := range seq {
			if len(step) != m.features {
				return nil, fmt.Errorf("lstm: sample %d step %d has %d features, want %d", b, t, len(step), m.features)
			}
		}
		states := seq
		for i := range m.layers {
			states = m.layers[i].run(states)
		}
		y := states[len(states)-1]
		for i := range m.dense {
			y = m.dense[i].forward(y)
		}
		out[b] = y
	}
	return out, nil
}

var _ Model = (*LSTMModel)(nil)
