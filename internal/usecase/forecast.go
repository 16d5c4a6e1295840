package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"StockCast/internal/domain/errs"
	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/forecast"
	"StockCast/pkg/cache"
	"StockCast/pkg/logger"
)

const forecastCachePrefix = "forecast"

// ForecastUseCase serves single-step and multi-step predictions and owns their side effects.
type ForecastUseCase struct {
	registry   *forecast.Registry
	forecaster *forecast.Forecaster

	cache     cache.Service
	cacheTTL  time.Duration
	publisher domrepo.EventPublisher
	store     domrepo.ForecastStore
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// ForecastOption configures ForecastUseCase.
type ForecastOption func(*ForecastUseCase)

// WithForecastCache caches completed forecasts for ttl. A zero ttl disables caching.
func WithForecastCache(c cache.Service, ttl time.Duration) ForecastOption {
	return func(uc *ForecastUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

func WithForecastPublisher(p domrepo.EventPublisher) ForecastOption {
	return func(uc *ForecastUseCase) { uc.publisher = p }
}

func WithForecastStore(s domrepo.ForecastStore) ForecastOption {
	return func(uc *ForecastUseCase) { uc.store = s }
}

func WithForecastMetrics(m domrepo.Metrics) ForecastOption {
	return func(uc *ForecastUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

func WithForecastLogger(l *logger.Logger) ForecastOption {
	return func(uc *ForecastUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

func NewForecastUseCase(reg *forecast.Registry, fc *forecast.Forecaster, opts ...ForecastOption) *ForecastUseCase {
	uc := &ForecastUseCase{
		registry:   reg,
		forecaster: fc,
		metrics:    nopMetrics{},
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// PredictNext predicts the price that follows a 100-price window.
func (uc *ForecastUseCase) PredictNext(ctx context.Context, symbol string, window []float64) (float64, error) {
	start := time.Now()
	pair, err := uc.registry.Resolve(symbol)
	if err != nil {
		uc.fail("single", "", symbol, err)
		return 0, err
	}
	price, err := forecast.PredictNext(window, pair.Model, pair.Scaler)
	if err != nil {
		uc.fail("single", string(pair.Source), symbol, err)
		return 0, err
	}
	uc.metrics.RecordForecast("single", string(pair.Source), "ok", 1)
	uc.metrics.RecordLatency("predict", time.Since(start))
	return price, nil
}

// Forecast rolls the model forward days steps from initial. Identical requests against the same
// registry snapshot are answered from cache. Caching, publishing and persisting never fail the call.
func (uc *ForecastUseCase) Forecast(ctx context.Context, symbol string, initial []float64, days int) (*models.ForecastRecord, error) {
	start := time.Now()
	snap := uc.registry.Snapshot()
	pair, err := uc.registry.Resolve(symbol)
	if err != nil {
		uc.fail("multi", "", symbol, err)
		return nil, err
	}

	key := uc.cacheKey(snap, pair, initial, days)
	if rec, ok := uc.cached(ctx, key); ok {
		uc.metrics.RecordForecast("multi", string(pair.Source), "cached", 0)
		return rec, nil
	}

	preds, err := uc.forecaster.Forecast(initial, days, pair.Model, pair.Scaler)
	if err != nil {
		uc.fail("multi", string(pair.Source), symbol, err)
		return nil, err
	}

	rec := &models.ForecastRecord{
		ID:          uuid.NewString(),
		Symbol:      pair.Symbol,
		Source:      string(pair.Source),
		Days:        days,
		LastPrice:   initial[len(initial)-1],
		Predictions: preds,
		CreatedAt:   uc.now().UTC(),
	}
	if snap != nil {
		rec.SnapshotVersion = snap.Version
	}
	uc.metrics.RecordForecast("multi", rec.Source, "ok", days)
	uc.metrics.RecordLatency("forecast", time.Since(start))

	uc.afterForecast(ctx, key, rec)
	return rec, nil
}

func (uc *ForecastUseCase) afterForecast(ctx context.Context, key string, rec *models.ForecastRecord) {
	if key != "" {
		if err := uc.cache.Set(ctx, key, rec, uc.cacheTTL); err != nil {
			uc.log.Warn("forecast cache set failed", logger.String("symbol", rec.Symbol), logger.Error(err))
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishForecast(ctx, rec); err != nil {
			uc.metrics.RecordError("publish_forecast")
			uc.log.Warn("forecast publish failed", logger.String("symbol", rec.Symbol), logger.String("id", rec.ID), logger.Error(err))
		}
	}
	if uc.store != nil {
		if err := uc.store.Save(ctx, rec); err != nil {
			uc.metrics.RecordError("store_forecast")
			uc.log.Warn("forecast store failed", logger.String("symbol", rec.Symbol), logger.String("id", rec.ID), logger.Error(err))
		}
	}
}

func (uc *ForecastUseCase) cacheKey(snap *forecast.Snapshot, pair forecast.Pair, initial []float64, days int) string {
	if uc.cache == nil || uc.cacheTTL <= 0 || snap == nil || len(initial) != forecast.TimeStep {
		return ""
	}
	sym := pair.Symbol
	if sym == "" {
		sym = "_"
	}
	return cache.Key(forecastCachePrefix, snap.Version, sym, pair.Source, days, cache.HashFloats(initial))
}

func (uc *ForecastUseCase) cached(ctx context.Context, key string) (*models.ForecastRecord, bool) {
	if key == "" {
		return nil, false
	}
	rec, err := cache.GetTyped[models.ForecastRecord](ctx, uc.cache, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("forecast cache get failed", logger.Error(err))
		}
		uc.metrics.RecordCache(forecastCachePrefix, false)
		return nil, false
	}
	uc.metrics.RecordCache(forecastCachePrefix, true)
	return &rec, true
}

func (uc *ForecastUseCase) fail(kind, source, symbol string, err error) {
	k := errs.KindOf(err)
	uc.metrics.RecordForecast(kind, source, string(k), 0)
	uc.metrics.RecordError(string(k))
	if k == errs.KindInternal {
		uc.log.Error("forecast failed",
			logger.String("kind", kind),
			logger.String("symbol", symbol),
			logger.String("source", source),
			logger.Error(err))
	}
}

// History returns the latest stored forecasts of symbol, newest first.
func (uc *ForecastUseCase) History(ctx context.Context, symbol string, limit int) ([]*models.ForecastRecord, error) {
	const op = "usecase.Forecast.History"
	if uc.store == nil {
		return nil, errs.Unavailable(op, "forecast history is disabled")
	}
	sym := forecast.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, errs.InvalidArgument(op, "symbol is required")
	}
	recs, err := uc.store.Recent(ctx, sym, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, op, err, "forecast history is unavailable")
	}
	return recs, nil
}

// Artifacts describes the current registry snapshot.
func (uc *ForecastUseCase) Artifacts() models.ArtifactStatus {
	s := uc.registry.Snapshot()
	if s == nil {
		return models.ArtifactStatus{Symbols: []string{}, Failed: []string{}}
	}
	return models.ArtifactStatus{
		Version:  s.Version,
		LoadedAt: s.LoadedAt,
		Symbols:  s.Symbols(),
		Generic:  s.HasGeneric(),
		Failed:   s.Failed(),
	}
}

// Ready reports whether at least one pair can be resolved.
func (uc *ForecastUseCase) Ready() bool {
	s := uc.registry.Snapshot()
	return s != nil && (s.HasGeneric() || len(s.Symbols()) > 0)
}

// LoadArtifacts performs the initial registry load.
func (uc *ForecastUseCase) LoadArtifacts(ctx context.Context) (forecast.LoadStats, error) {
	stats, err := uc.registry.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load artifacts: %w", err)
	}
	uc.metrics.RecordRegistry(stats.Loaded, stats.Failed, stats.Generic)
	return stats, nil
}

// Reload swaps in a fresh registry snapshot and drops forecasts cached against older ones.
func (uc *ForecastUseCase) Reload(ctx context.Context) (models.ArtifactStatus, error) {
	stats, err := uc.registry.Reload(ctx)
	if err != nil {
		return models.ArtifactStatus{}, errs.Wrap(errs.KindUnavailable, "usecase.Forecast.Reload", err, "artifact reload failed")
	}
	uc.metrics.RecordRegistry(stats.Loaded, stats.Failed, stats.Generic)
	if uc.cache != nil {
		if err := uc.cache.DeleteByPattern(ctx, cache.Pattern(forecastCachePrefix+":")); err != nil {
			uc.log.Warn("forecast cache purge failed", logger.Error(err))
		}
	}
	uc.log.Info("artifacts reloaded",
		logger.Int64("version", int64(stats.Version)),
		logger.Int("loaded", stats.Loaded),
		logger.Int("failed", stats.Failed),
		logger.Bool("generic", stats.Generic))
	return uc.Artifacts(), nil
}

type nopMetrics struct{}

func (nopMetrics) RecordForecast(string, string, string, int) {}
func (nopMetrics) RecordLatency(string, time.Duration)       {}
func (nopMetrics) RecordRegistry(int, int, bool)             {}
func (nopMetrics) RecordCache(string, bool)                  {}
func (nopMetrics) RecordError(string)                        {}
