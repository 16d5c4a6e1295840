package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/errs"
)

func TestForecastRejectsBadWindowBeforeCallingModel(t *testing.T) {
	f := NewForecaster(0)
	for _, n := range []int{0, 1, 99, 101, 250} {
		m := &recordingModel{fn: lastPlusOne}
		_, err := f.Forecast(ramp(n, 1), 5, m, identityScaler{})
		require.Error(t, err, "len=%d", n)
		assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
		assert.Zero(t, m.calls())
	}
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	f := NewForecaster(365)
	for _, days := range []int{-3, 0, 366, 1000} {
		m := &recordingModel{fn: lastPlusOne}
		_, err := f.Forecast(ramp(TimeStep, 1), days, m, identityScaler{})
		require.Error(t, err, "days=%d", days)
		assert.True(t, errors.Is(err, errs.ErrInvalidArgument))
		assert.Zero(t, m.calls())
	}
}

func TestForecastCardinality(t *testing.T) {
	f := NewForecaster(0)
	for _, days := range []int{1, 5, 30, 365} {
		m := &recordingModel{fn: lastPlusOne}
		out, err := f.Forecast(ramp(TimeStep, 1), days, m, identityScaler{})
		require.NoError(t, err)
		assert.Len(t, out, days)
		assert.Equal(t, days, m.calls())
	}
}

func TestForecastSlidesWindow(t *testing.T) {
	seed := ramp(TimeStep, 1) // 1..100
	m := &recordingModel{fn: lastPlusOne}

	out, err := NewForecaster(0).Forecast(seed, 3, m, identityScaler{})
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 102, 103}, out)

	require.Len(t, m.windows, 3)
	assert.Equal(t, seed, m.windows[0])
	assert.Equal(t, append(append([]float64{}, seed[1:]...), 101), m.windows[1])
	assert.Equal(t, append(append([]float64{}, seed[2:]...), 101, 102), m.windows[2])
}

func TestForecastWindowsAreAlwaysTimeStepLong(t *testing.T) {
	m := &recordingModel{fn: mean}
	_, err := NewForecaster(0).Forecast(ramp(TimeStep, 10), 120, m, identityScaler{})
	require.NoError(t, err)
	for i, w := range m.windows {
		assert.Len(t, w, TimeStep, "call %d", i)
	}
	// after more than TimeStep days the window is made only of predictions
	assert.NotContains(t, m.windows[119], 10.0)
}

func TestForecastDoesNotMutateInput(t *testing.T) {
	seed := ramp(TimeStep, 50)
	before := append([]float64(nil), seed...)

	_, err := NewForecaster(0).Forecast(seed, 10, &recordingModel{fn: lastPlusOne}, identityScaler{})
	require.NoError(t, err)
	assert.Equal(t, before, seed)
}

func TestForecastIsDeterministic(t *testing.T) {
	seed := ramp(TimeStep, 3)
	f := NewForecaster(0)
	a, err := f.Forecast(seed, 20, &recordingModel{fn: mean}, identityScaler{})
	require.NoError(t, err)
	b, err := f.Forecast(seed, 20, &recordingModel{fn: mean}, identityScaler{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestForecastSingleDayMatchesPredictNext(t *testing.T) {
	seed := ramp(TimeStep, 7)
	next, err := PredictNext(seed, &recordingModel{fn: mean}, identityScaler{})
	require.NoError(t, err)

	out, err := NewForecaster(0).Forecast(seed, 1, &recordingModel{fn: mean}, identityScaler{})
	require.NoError(t, err)
	assert.Equal(t, []float64{next}, out)
}

func TestForecastFailsWholeOnStepError(t *testing.T) {
	m := &recordingModel{fn: lastPlusOne, failAt: 4}
	out, err := NewForecaster(0).Forecast(ramp(TimeStep, 1), 10, m, identityScaler{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
	assert.Equal(t, 4, m.calls())
}

func TestForecastWithoutArtifacts(t *testing.T) {
	_, err := NewForecaster(0).Forecast(ramp(TimeStep, 1), 1, nil, identityScaler{})
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))
}

func TestForecastThroughFallbackPair(t *testing.T) {
	loader := newMemLoader()
	generic := &recordingModel{fn: func(w []float64) float64 { return 42 }}
	loader.models["stock_lstm_model.json"] = generic
	loader.scalers["stock_minmax_scaler.json"] = identityScaler{}

	cfg := DefaultRegistryConfig()
	cfg.Symbols = []string{"AAPL"}
	reg := NewRegistry(cfg, loader)
	_, err := reg.Load(t.Context())
	require.NoError(t, err)

	pair, err := reg.Resolve("XYZ")
	require.NoError(t, err)
	assert.Equal(t, SourceGeneric, pair.Source)

	out, err := NewForecaster(0).Forecast(ramp(TimeStep, 1), 3, pair.Model, pair.Scaler)
	require.NoError(t, err)
	assert.Equal(t, []float64{42, 42, 42}, out)
	assert.Equal(t, 3, generic.calls())
}

func TestForecastThroughSpecificPair(t *testing.T) {
	loader := newMemLoader()
	xyz := &recordingModel{fn: mean}
	addPair(loader, "XYZ", xyz)
	addPair(loader, "stock", &recordingModel{fn: lastPlusOne})

	reg := NewRegistry(testConfig("XYZ"), loader)
	_, err := reg.Load(t.Context())
	require.NoError(t, err)

	pair, err := reg.Resolve("XYZ")
	require.NoError(t, err)
	assert.Equal(t, SourceSpecific, pair.Source)

	window := make([]float64, TimeStep)
	for i := range window {
		window[i] = 100
	}
	out, err := NewForecaster(0).Forecast(window, 3, pair.Model, pair.Scaler)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100, 100}, out)

	require.Equal(t, 3, xyz.calls())
	for _, w := range xyz.windows {
		assert.Len(t, w, TimeStep)
	}
}
