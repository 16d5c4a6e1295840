package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"StockCast/internal/domain/models"
	"StockCast/internal/forecast"
	"StockCast/internal/services/agents"
	"StockCast/pkg/cache"
)

// stubLoader serves artifacts from memory. Unknown paths are fs.ErrNotExist.
type stubLoader struct {
	mu      sync.Mutex
	models  map[string]forecast.Model
	scalers map[string]forecast.Scaler
}

func newStubLoader() *stubLoader {
	return &stubLoader{models: map[string]forecast.Model{}, scalers: map[string]forecast.Scaler{}}
}

func (l *stubLoader) add(t *testing.T, symbol string, bias float64) {
	t.Helper()
	weights := make([]float64, forecast.TimeStep)
	weights[forecast.TimeStep-1] = 1
	m, err := forecast.NewLinearModel(weights, bias)
	require.NoError(t, err)
	s, err := forecast.NewMinMaxScaler([]float64{0}, []float64{1}, [2]float64{0, 1})
	require.NoError(t, err)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.models[forecast.ArtifactName("{symbol}_lstm_model.json", symbol)] = m
	l.scalers[forecast.ArtifactName("{symbol}_minmax_scaler.json", symbol)] = s
}

func (l *stubLoader) LoadModel(path string) (forecast.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.models[path]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
}

func (l *stubLoader) LoadScaler(path string) (forecast.Scaler, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.scalers[path]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
}

func loadedRegistry(t *testing.T, l *stubLoader, symbols ...string) *forecast.Registry {
	t.Helper()
	cfg := forecast.DefaultRegistryConfig()
	cfg.Symbols = symbols
	reg := forecast.NewRegistry(cfg, l)
	_, err := reg.Load(t.Context())
	require.NoError(t, err)
	return reg
}

func ramp(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func newMemCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(100))
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

type recordingPublisher struct {
	mu   sync.Mutex
	recs []*models.ForecastRecord
	err  error
}

func (p *recordingPublisher) PublishForecast(_ context.Context, rec *models.ForecastRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

type failingStore struct{}

func (failingStore) Save(context.Context, *models.ForecastRecord) error {
	return errors.New("clickhouse down")
}

func (failingStore) Recent(context.Context, string, int) ([]*models.ForecastRecord, error) {
	return nil, errors.New("clickhouse down")
}

// fakeMarket returns a fixed series and counts upstream calls. When release is set, calls signal
// entered and block until release is closed or their ctx ends.
type fakeMarket struct {
	mu      sync.Mutex
	bars    []models.PriceBar
	err     error
	calls   int
	from    time.Time
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (m *fakeMarket) DailyCloses(ctx context.Context, _ string, from, _ time.Time) ([]models.PriceBar, error) {
	if m.release != nil {
		m.entered <- struct{}{}
		select {
		case <-m.release:
		case <-ctx.Done():
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.from = from
	m.ctxErr = ctx.Err()
	if m.ctxErr != nil {
		return nil, m.ctxErr
	}
	return m.bars, m.err
}

func (m *fakeMarket) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func barsOf(closes ...float64) []models.PriceBar {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = models.PriceBar{Date: day.AddDate(0, 0, i), Close: c}
	}
	return out
}

// fakeAgent answers with text, optionally waiting for release first.
type fakeAgent struct {
	mu      sync.Mutex
	text    string
	err     error
	calls   int
	release chan struct{}
}

func (a *fakeAgent) Name() string { return "Aggregator Agent" }

func (a *fakeAgent) Run(ctx context.Context, _ string) (agents.Result, error) {
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return agents.Result{}, ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return agents.Result{}, a.err
	}
	return agents.TextResult(a.text), nil
}

func (a *fakeAgent) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
