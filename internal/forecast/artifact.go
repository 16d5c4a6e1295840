package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact type tags written by the training pipeline.
const (
	ModelTypeLSTM      = "lstm"
	ModelTypeLinear    = "linear"
	ScalerTypeMinMax   = "minmax"
	ScalerTypeStandard = "standard"
)

// Loader reads serialized artifacts. Paths are relative to the loader's root.
// A missing file must surface as an error wrapping fs.ErrNotExist.
type Loader interface {
	LoadModel(path string) (Model, error)
	LoadScaler(path string) (Scaler, error)
}

type modelFile struct {
	Type     string      `json:"type"`
	TimeStep int         `json:"time_step"`
	Features int         `json:"features"`
	Layers   []lstmJSON  `json:"layers"`
	Dense    []denseJSON `json:"dense"`
	Weights  []float64   `json:"weights"`
	Bias     float64     `json:"bias"`
}

type lstmJSON struct {
	Units           int         `json:"units"`
	Kernel          [][]float64 `json:"kernel"`
	RecurrentKernel [][]float64 `json:"recurrent_kernel"`
	Bias            []float64   `json:"bias"`
}

type denseJSON struct {
	Kernel     [][]float64 `json:"kernel"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

type scalerFile struct {
	Type         string    `json:"type"`
	FeatureRange []float64 `json:"feature_range"`
	DataMin      []float64 `json:"data_min"`
	DataMax      []float64 `json:"data_max"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// DecodeModel parses a model artifact and checks it consumes TimeStep prices of one feature.
func DecodeModel(data []byte) (Model, error) {
	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if f.TimeStep != TimeStep {
		return nil, fmt.Errorf("model time_step %d does not match window length %d", f.TimeStep, TimeStep)
	}
	if f.Features > 1 {
		return nil, fmt.Errorf("model expects %d features, prices carry 1", f.Features)
	}

	switch strings.ToLower(f.Type) {
	case ModelTypeLSTM:
		layers := make([]LSTMLayer, len(f.Layers))
		for i, l := range f.Layers {
			if l.Units != 0 && l.Units*4 != len(l.Bias) {
				return nil, fmt.Errorf("lstm layer %d declares %d units but bias has %d entries", i, l.Units, len(l.Bias))
			}
			layers[i] = LSTMLayer{Kernel: l.Kernel, RecurrentKernel: l.RecurrentKernel, Bias: l.Bias}
		}
		dense := make([]DenseLayer, len(f.Dense))
		for i, d := range f.Dense {
			dense[i] = DenseLayer{Kernel: d.Kernel, Bias: d.Bias, Activation: strings.ToLower(d.Activation)}
		}
		m, err := NewLSTMModel(f.TimeStep, 1, layers, dense)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ModelTypeLinear:
		if len(f.Weights) != f.TimeStep {
			return nil, fmt.Errorf("linear model has %d weights, want %d", len(f.Weights), f.TimeStep)
		}
		m, err := NewLinearModel(f.Weights, f.Bias)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model type %q", f.Type)
	}
}

// DecodeScaler parses a single-feature scaler artifact.
func DecodeScaler(data []byte) (Scaler, error) {
	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}

	switch strings.ToLower(f.Type) {
	case ScalerTypeMinMax:
		fr := [2]float64{0, 1}
		if len(f.FeatureRange) != 0 {
			if len(f.FeatureRange) != 2 {
				return nil, fmt.Errorf("feature_range must have 2 entries, got %d", len(f.FeatureRange))
			}
			fr = [2]float64{f.FeatureRange[0], f.FeatureRange[1]}
		}
		if len(f.DataMin) != 1 {
			return nil, fmt.Errorf("minmax scaler fitted on %d features, want 1", len(f.DataMin))
		}
		s, err := NewMinMaxScaler(f.DataMin, f.DataMax, fr)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ScalerTypeStandard:
		if len(f.Mean) != 1 {
			return nil, fmt.Errorf("standard scaler fitted on %d features, want 1", len(f.Mean))
		}
		s, err := NewStandardScaler(f.Mean, f.Scale)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown scaler type %q", f.Type)
	}
}

// FileLoader reads JSON artifacts from a directory.
type FileLoader struct {
	root string
}

// NewFileLoader returns a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{root: dir}
}

func (l *FileLoader) LoadModel(path string) (Model, error) {
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return nil, err
	}
	return DecodeModel(data)
}

func (l *FileLoader) LoadScaler(path string) (Scaler, error) {
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return nil, err
	}
	return DecodeScaler(data)
}

func (l *FileLoader) resolve(path string) string {
	if filepath.IsAbs(path) || l.root == "" {
		return path
	}
	return filepath.Join(l.root, path)
}

// ArtifactName expands a naming pattern such as "{symbol}_lstm_model.json".
func ArtifactName(pattern, symbol string) string {
	return strings.ReplaceAll(pattern, "{symbol}", symbol)
}

var _ Loader = (*FileLoader)(nil)
