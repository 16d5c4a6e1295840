package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinMaxScalerRoundTrip(t *testing.T) {
	s, err := NewMinMaxScaler([]float64{10}, []float64{110}, [2]float64{0, 1})
	require.NoError(t, err)

	scaled, err := s.Transform([][]float64{{10}, {60}, {110}, {135}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1.25}, column(scaled), 1e-12)

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, 60, 110, 135}, column(back), 1e-9)
}

func TestMinMaxScalerFeatureRange(t *testing.T) {
	s, err := NewMinMaxScaler([]float64{0}, []float64{10}, [2]float64{-1, 1})
	require.NoError(t, err)
	out, err := s.Transform([][]float64{{0}, {5}, {10}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, column(out), 1e-12)
}

func TestMinMaxScalerConstantFeature(t *testing.T) {
	s, err := NewMinMaxScaler([]float64{5}, []float64{5}, [2]float64{0, 1})
	require.NoError(t, err)
	out, err := s.Transform([][]float64{{5}, {6}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, column(out))
}

func TestScalerRejectsWrongWidth(t *testing.T) {
	s, err := NewStandardScaler([]float64{1}, []float64{2})
	require.NoError(t, err)
	_, err = s.Transform([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestStandardScaler(t *testing.T) {
	s, err := NewStandardScaler([]float64{100}, []float64{20})
	require.NoError(t, err)
	out, err := s.Transform([][]float64{{80}, {100}, {140}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 2}, column(out), 1e-12)

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{80, 100, 140}, column(back), 1e-9)
}

func TestLinearModel(t *testing.T) {
	m, err := NewLinearModel([]float64{0.5, 0.25, 0.25}, 1)
	require.NoError(t, err)

	out, err := m.Predict([][][]float64{{{4}, {8}, {12}}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1 + 2 + 2 + 3}}, out)

	_, err = m.Predict([][][]float64{{{4}, {8}}})
	assert.Error(t, err)
}

func TestLSTMSingleUnitMatchesClosedForm(t *testing.T) {
	// only the cell candidate reads the input; every gate sits at sigmoid(0) = 0.5
	layer := LSTMLayer{
		Kernel:          [][]float64{{0, 0, 1, 0}},
		RecurrentKernel: [][]float64{{0, 0, 0, 0}},
		Bias:            []float64{0, 0, 0, 0},
	}
	head := DenseLayer{Kernel: [][]float64{{2}}, Bias: []float64{1}}
	m, err := NewLSTMModel(2, 1, []LSTMLayer{layer}, []DenseLayer{head})
	require.NoError(t, err)

	x1, x2 := 0.3, -0.8
	out, err := m.Predict([][][]float64{{{x1}, {x2}}})
	require.NoError(t, err)

	c1 := 0.5 * math.Tanh(x1)
	c2 := 0.5*c1 + 0.5*math.Tanh(x2)
	want := 2*(0.5*math.Tanh(c2)) + 1
	require.Len(t, out, 1)
	assert.InDelta(t, want, out[0][0], 1e-12)
}

func TestLSTMGateOrder(t *testing.T) {
	// a saturated-closed input gate keeps the cell empty regardless of input
	layer := LSTMLayer{
		Kernel:          [][]float64{{0, 0, 1, 0}},
		RecurrentKernel: [][]float64{{0, 0, 0, 0}},
		Bias:            []float64{-1000, 0, 0, 0},
	}
	m, err := NewLSTMModel(3, 1, []LSTMLayer{layer}, []DenseLayer{{Kernel: [][]float64{{1}}, Bias: []float64{0}}})
	require.NoError(t, err)

	out, err := m.Predict([][][]float64{{{5}, {5}, {5}}})
	require.NoError(t, err)
	assert.InDelta(t, 0, out[0][0], 1e-12)
}

func TestLSTMStackedShapes(t *testing.T) {
	l1 := LSTMLayer{
		Kernel:          [][]float64{make([]float64, 8)},
		RecurrentKernel: [][]float64{make([]float64, 8), make([]float64, 8)},
		Bias:            make([]float64, 8),
	}
	l2 := LSTMLayer{
		Kernel:          [][]float64{make([]float64, 4), make([]float64, 4)},
		RecurrentKernel: [][]float64{make([]float64, 4)},
		Bias:            make([]float64, 4),
	}
	head := DenseLayer{Kernel: [][]float64{{1}}, Bias: []float64{3}, Activation: ActivationReLU}

	m, err := NewLSTMModel(4, 1, []LSTMLayer{l1, l2}, []DenseLayer{head})
	require.NoError(t, err)
	out, err := m.Predict([][][]float64{{{1}, {2}, {3}, {4}}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3}}, out)

	// second layer reading the wrong width
	_, err = NewLSTMModel(4, 1, []LSTMLayer{l1, l1}, []DenseLayer{head})
	assert.Error(t, err)
}

func TestLSTMRequiresSingleOutput(t *testing.T) {
	layer := LSTMLayer{
		Kernel:          [][]float64{make([]float64, 4)},
		RecurrentKernel: [][]float64{make([]float64, 4)},
		Bias:            make([]float64, 4),
	}
	_, err := NewLSTMModel(1, 1, []LSTMLayer{layer}, []DenseLayer{{Kernel: [][]float64{{1, 1}}, Bias: []float64{0, 0}}})
	assert.Error(t, err)
}

func column(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, r := range x {
		out[i] = r[0]
	}
	return out
}
