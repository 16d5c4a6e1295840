package forecast

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/errs"
)

func testConfig(symbols ...string) RegistryConfig {
	cfg := DefaultRegistryConfig()
	cfg.Symbols = symbols
	return cfg
}

func addPair(l *memLoader, symbol string, m Model) {
	l.models[ArtifactName("{symbol}_lstm_model.json", symbol)] = m
	l.scalers[ArtifactName("{symbol}_minmax_scaler.json", symbol)] = identityScaler{}
}

func TestResolveBeforeLoad(t *testing.T) {
	reg := NewRegistry(testConfig("AAPL"), newMemLoader())
	_, err := reg.Resolve("AAPL")
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))
}

func TestResolveSpecificThenGeneric(t *testing.T) {
	l := newMemLoader()
	aapl := &recordingModel{fn: mean}
	addPair(l, "AAPL", aapl)
	addPair(l, "stock", &recordingModel{fn: mean})
	l.models["stock_lstm_model.json"] = &recordingModel{fn: mean}

	reg := NewRegistry(testConfig("AAPL", "MSFT"), l)
	stats, err := reg.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Absent)
	assert.True(t, stats.Generic)

	p, err := reg.Resolve("aapl")
	require.NoError(t, err)
	assert.Equal(t, SourceSpecific, p.Source)
	assert.Equal(t, "AAPL", p.Symbol)
	assert.Same(t, aapl, p.Model)

	p, err = reg.Resolve("MSFT")
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, p.Source)
	assert.Equal(t, "MSFT", p.Symbol)

	p, err = reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, p.Source)
}

func TestResolveUnknownWithoutGeneric(t *testing.T) {
	l := newMemLoader()
	addPair(l, "AAPL", &recordingModel{fn: mean})
	reg := NewRegistry(testConfig("AAPL"), l)
	_, err := reg.Load(t.Context())
	require.NoError(t, err)

	_, err = reg.Resolve("UNKNOWN")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = reg.Resolve("")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestCorruptArtifactsMarkSymbolUnavailable(t *testing.T) {
	l := newMemLoader()
	addPair(l, "AAPL", &recordingModel{fn: mean})
	addPair(l, "TSLA", &recordingModel{fn: mean})
	l.broken["TSLA_minmax_scaler.json"] = true

	reg := NewRegistry(testConfig("AAPL", "TSLA"), l)
	stats, err := reg.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []string{"TSLA"}, reg.Snapshot().Failed())

	_, err = reg.Resolve("TSLA")
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))

	_, err = reg.Resolve("AAPL")
	assert.NoError(t, err)
}

func TestCorruptSymbolFallsBackToGeneric(t *testing.T) {
	l := newMemLoader()
	addPair(l, "TSLA", &recordingModel{fn: mean})
	l.broken["TSLA_lstm_model.json"] = true
	l.models["stock_lstm_model.json"] = &recordingModel{fn: mean}
	l.scalers["stock_minmax_scaler.json"] = identityScaler{}

	reg := NewRegistry(testConfig("TSLA"), l)
	_, err := reg.Load(t.Context())
	require.NoError(t, err)

	p, err := reg.Resolve("TSLA")
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, p.Source)
}

func TestNoPartialPairs(t *testing.T) {
	l := newMemLoader()
	l.models["AAPL_lstm_model.json"] = &recordingModel{fn: mean}

	reg := NewRegistry(testConfig("AAPL"), l)
	stats, err := reg.Load(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.Loaded)
	assert.Empty(t, reg.Snapshot().Symbols())

	_, err = reg.Resolve("AAPL")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestReloadSwapsSnapshot(t *testing.T) {
	l := newMemLoader()
	addPair(l, "AAPL", &recordingModel{fn: mean})
	reg := NewRegistry(testConfig("AAPL", "MSFT"), l)

	first, err := reg.Load(t.Context())
	require.NoError(t, err)
	old := reg.Snapshot()

	addPair(l, "MSFT", &recordingModel{fn: mean})
	second, err := reg.Reload(t.Context())
	require.NoError(t, err)

	assert.Greater(t, second.Version, first.Version)
	assert.Equal(t, []string{"AAPL"}, old.Symbols())
	assert.Equal(t, []string{"AAPL", "MSFT"}, reg.Snapshot().Symbols())
}

func TestConcurrentResolveDuringReload(t *testing.T) {
	l := newMemLoader()
	for _, s := range []string{"AAPL", "MSFT", "GOOGL"} {
		addPair(l, s, &recordingModel{fn: mean})
	}
	reg := NewRegistry(testConfig("AAPL", "MSFT", "GOOGL"), l)
	_, err := reg.Load(t.Context())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := reg.Resolve("MSFT"); err != nil {
					t.Errorf("resolve: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := reg.Reload(t.Context())
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestCustomPolicyWithoutFallback(t *testing.T) {
	l := newMemLoader()
	l.models["stock_lstm_model.json"] = &recordingModel{fn: mean}
	l.scalers["stock_minmax_scaler.json"] = identityScaler{}

	reg := NewRegistry(testConfig(), l, WithPolicy(SpecificStrategy{}))
	_, err := reg.Load(t.Context())
	require.NoError(t, err)
	_, err = reg.Resolve("XYZ")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()

	weights := make([]float64, TimeStep)
	weights[TimeStep-1] = 1
	writeJSON(t, filepath.Join(dir, "AAPL_lstm_model.json"), map[string]any{
		"type": "linear", "time_step": TimeStep, "weights": weights, "bias": 0.1,
	})
	writeJSON(t, filepath.Join(dir, "AAPL_minmax_scaler.json"), map[string]any{
		"type": "minmax", "feature_range": []float64{0, 1}, "data_min": []float64{0}, "data_max": []float64{100},
	})
	writeJSON(t, filepath.Join(dir, "MSFT_lstm_model.json"), map[string]any{
		"type": "linear", "time_step": 60, "weights": make([]float64, 60),
	})
	writeJSON(t, filepath.Join(dir, "MSFT_minmax_scaler.json"), map[string]any{
		"type": "minmax", "data_min": []float64{0}, "data_max": []float64{1},
	})

	loader := NewFileLoader(dir)
	_, err := loader.LoadModel("NOPE_lstm_model.json")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	cfg := testConfig("AAPL", "MSFT", "GOOGL")
	cfg.GenericModel = ""
	reg := NewRegistry(cfg, loader)
	stats, err := reg.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Absent)
	assert.False(t, stats.Generic)

	p, err := reg.Resolve("AAPL")
	require.NoError(t, err)

	// scaled last price 0.5 + bias 0.1 maps back to 60
	got, err := PredictNext(ramp(TimeStep, -49), p.Model, p.Scaler)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, got, 1e-9)
}

func TestDecodeRejectsUnknownTypes(t *testing.T) {
	_, err := DecodeModel([]byte(`{"type":"transformer","time_step":100}`))
	assert.Error(t, err)
	_, err = DecodeScaler([]byte(`{"type":"robust"}`))
	assert.Error(t, err)
	_, err = DecodeModel([]byte(`not json`))
	assert.Error(t, err)
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
