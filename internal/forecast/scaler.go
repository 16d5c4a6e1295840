package forecast

import (
	"fmt"
)

// Scaler maps values between raw price space and the normalized space a model was trained in.
// Inputs and outputs are column-major rows: one row per sample, one column per feature.
type Scaler interface {
	Transform(x [][]float64) ([][]float64, error)
	InverseTransform(x [][]float64) ([][]float64, error)
}

// MinMaxScaler rescales each feature into FeatureRange, the same way sklearn's MinMaxScaler does.
type MinMaxScaler struct {
	scale []float64
	min   []float64
}

// NewMinMaxScaler builds a scaler from fitted per-feature minima and maxima.
func NewMinMaxScaler(dataMin, dataMax []float64, featureRange [2]float64) (*MinMaxScaler, error) {
	if len(dataMin) == 0 || len(dataMin) != len(dataMax) {
		return nil, fmt.Errorf("minmax: data_min has %d features, data_max has %d", len(dataMin), len(dataMax))
	}
	if featureRange[0] >= featureRange[1] {
		return nil, fmt.Errorf("minmax: feature_range min %v must be below max %v", featureRange[0], featureRange[1])
	}
	s := &MinMaxScaler{
		scale: make([]float64, len(dataMin)),
		min:   make([]float64, len(dataMin)),
	}
	for i := range dataMin {
		span := dataMax[i] - dataMin[i]
		if span < 0 {
			return nil, fmt.Errorf("minmax: feature %d has data_max below data_min", i)
		}
		// constant features keep unit scale
		if span == 0 {
			span = 1
		}
		s.scale[i] = (featureRange[1] - featureRange[0]) / span
		s.min[i] = featureRange[0] - dataMin[i]*s.scale[i]
	}
	return s, nil
}

// Features returns the number of columns the scaler was fitted on.
func (s *MinMaxScaler) Features() int { return len(s.scale) }

func (s *MinMaxScaler) Transform(x [][]float64) ([][]float64, error) {
	return applyColumns(x, len(s.scale), func(j int, v float64) float64 {
		return v*s.scale[j] + s.min[j]
	})
}

func (s *MinMaxScaler) InverseTransform(x [][]float64) ([][]float64, error) {
	return applyColumns(x, len(s.scale), func(j int, v float64) float64 {
		return (v - s.min[j]) / s.scale[j]
	})
}

// StandardScaler centers and scales each feature: (x - mean) / scale.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler builds a scaler from fitted per-feature means and standard deviations.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("standard: mean has %d features, scale has %d", len(mean), len(scale))
	}
	sc := make([]float64, len(scale))
	for i, v := range scale {
		if v < 0 {
			return nil, fmt.Errorf("standard: feature %d has negative scale", i)
		}
		if v == 0 {
			v = 1
		}
		sc[i] = v
	}
	m := make([]float64, len(mean))
	copy(m, mean)
	return &StandardScaler{mean: m, scale: sc}, nil
}

// Features returns the number of columns the scaler was fitted on.
func (s *StandardScaler) Features() int { return len(s.scale) }

func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	return applyColumns(x, len(s.scale), func(j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	})
}

func (s *StandardScaler) InverseTransform(x [][]float64) ([][]float64, error) {
	return applyColumns(x, len(s.scale), func(j int, v float64) float64 {
		return v*s.scale[j] + s.mean[j]
	})
}

func applyColumns(x [][]float64, features int, fn func(j int, v float64) float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != features {
			return nil, fmt.Errorf("row %d has %d features, scaler expects %d", i, len(row), features)
		}
		r := make([]float64, features)
		for j, v := range row {
			r[j] = fn(j, v)
		}
		out[i] = r
	}
	return out, nil
}

var (
	_ Scaler = (*MinMaxScaler)(nil)
	_ Scaler = (*StandardScaler)(nil)
)
