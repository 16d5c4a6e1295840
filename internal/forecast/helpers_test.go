package forecast

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
)

// identityScaler leaves values untouched so tests can reason in price space.
type identityScaler struct{}

func (identityScaler) Transform(x [][]float64) ([][]float64, error)        { return clone2(x), nil }
func (identityScaler) InverseTransform(x [][]float64) ([][]float64, error) { return clone2(x), nil }

func clone2(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, r := range x {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// recordingModel returns fn(window) and remembers every window it saw.
type recordingModel struct {
	mu      sync.Mutex
	fn      func(window []float64) float64
	windows [][]float64
	failAt  int // 1-based call that fails; 0 never
	shape   [2]int
}

func (m *recordingModel) Predict(x [][][]float64) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := make([]float64, len(x[0]))
	for i, step := range x[0] {
		w[i] = step[0]
	}
	m.windows = append(m.windows, w)
	if m.failAt > 0 && len(m.windows) == m.failAt {
		return nil, errors.New("boom")
	}
	if m.shape != [2]int{} {
		out := make([][]float64, m.shape[0])
		for i := range out {
			out[i] = make([]float64, m.shape[1])
		}
		return out, nil
	}
	return [][]float64{{m.fn(w)}}, nil
}

func (m *recordingModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func lastPlusOne(w []float64) float64 { return w[len(w)-1] + 1 }

func mean(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s / float64(len(w))
}

func ramp(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

// memLoader serves artifacts from memory. Unknown paths are fs.ErrNotExist.
type memLoader struct {
	models  map[string]Model
	scalers map[string]Scaler
	broken  map[string]bool
}

func newMemLoader() *memLoader {
	return &memLoader{
		models:  map[string]Model{},
		scalers: map[string]Scaler{},
		broken:  map[string]bool{},
	}
}

func (l *memLoader) LoadModel(path string) (Model, error) {
	if l.broken[path] {
		return nil, fmt.Errorf("corrupt %s", path)
	}
	m, ok := l.models[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return m, nil
}

func (l *memLoader) LoadScaler(path string) (Scaler, error) {
	if l.broken[path] {
		return nil, fmt.Errorf("corrupt %s", path)
	}
	s, ok := l.scalers[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return s, nil
}
