package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"StockCast/internal/domain/errs"
	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/forecast"
	"StockCast/internal/services/features"
	"StockCast/pkg/cache"
	"StockCast/pkg/logger"
	"StockCast/pkg/util"
)

const historyCachePrefix = "history"

// historyFetchTimeout bounds one upstream fetch, independent of the callers waiting on it.
const historyFetchTimeout = 30 * time.Second

// DefaultLookbackDays is the number of closes returned when the caller does not ask for more.
const DefaultLookbackDays = 250

// HistoricalUseCase serves the most recent daily closes of a symbol.
type HistoricalUseCase struct {
	market   domrepo.MarketData
	cache    cache.Service
	cacheTTL time.Duration
	// fetchTimeout bounds a shared upstream fetch
	fetchTimeout time.Duration
	metrics  domrepo.Metrics
	log      *logger.Logger
	group    singleflight.Group
	now      func() time.Time
}

func NewHistoricalUseCase(market domrepo.MarketData, c cache.Service, ttl time.Duration, metrics domrepo.Metrics, l *logger.Logger) *HistoricalUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &HistoricalUseCase{
		market:       market,
		cache:        c,
		cacheTTL:     ttl,
		fetchTimeout: historyFetchTimeout,
		metrics:      metrics,
		log:          l,
		now:          time.Now,
	}
}

// Closes returns exactly lookbackDays closing prices, oldest first.
func (uc *HistoricalUseCase) Closes(ctx context.Context, symbol string, lookbackDays int) ([]float64, error) {
	const op = "usecase.Historical.Closes"

	sym := forecast.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, errs.InvalidArgument(op, "symbol is required")
	}
	if lookbackDays <= 0 {
		return nil, errs.InvalidArgument(op, "lookback_days must be positive, got %d", lookbackDays)
	}

	now := uc.now()
	key := cache.Key(historyCachePrefix, sym, lookbackDays, util.DayKey(now))
	if uc.cache != nil && uc.cacheTTL > 0 {
		closes, err := cache.GetTyped[[]float64](ctx, uc.cache, key)
		if err == nil {
			uc.metrics.RecordCache(historyCachePrefix, true)
			return closes, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("history cache get failed", logger.String("symbol", sym), logger.Error(err))
		}
		uc.metrics.RecordCache(historyCachePrefix, false)
	}

	// the shared fetch outlives any single caller; each caller only stops waiting when its ctx ends
	ch := uc.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.fetchTimeout)
		defer cancel()
		closes, err := uc.fetch(fctx, sym, lookbackDays, now)
		if err != nil {
			return nil, err
		}
		if uc.cache != nil && uc.cacheTTL > 0 {
			if err := uc.cache.Set(fctx, key, closes, uc.cacheTTL); err != nil {
				uc.log.Warn("history cache set failed", logger.String("symbol", sym), logger.Error(err))
			}
		}
		return closes, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	// callers sharing one fetch must not alias each other's slice
	return append([]float64(nil), res.Val.([]float64)...), nil
}

func (uc *HistoricalUseCase) fetch(ctx context.Context, sym string, lookbackDays int, now time.Time) ([]float64, error) {
	const op = "usecase.Historical.fetch"

	start := time.Now()
	from, to := util.LookbackRange(now, lookbackDays)
	bars, err := uc.market.DailyCloses(ctx, sym, from, to)
	uc.metrics.RecordLatency("market_data", time.Since(start))
	if err != nil {
		uc.metrics.RecordError("market_data")
		return nil, err
	}

	closes := features.Closes(bars)
	if len(closes) == 0 {
		return nil, errs.NotFound(op, "no historical data found for %s", sym)
	}
	if len(closes) < lookbackDays {
		return nil, errs.InvalidArgument(op, "only %d days of data available for %s, fewer than the requested %d", len(closes), sym, lookbackDays)
	}
	return closes[len(closes)-lookbackDays:], nil
}

// Stats summarizes the last DefaultLookbackDays closes; it feeds the finance agent.
func (uc *HistoricalUseCase) Stats(ctx context.Context, stockName string) (models.PriceStats, error) {
	closes, err := uc.Closes(ctx, stockName, DefaultLookbackDays)
	if err != nil {
		return models.PriceStats{}, fmt.Errorf("price stats: %w", err)
	}
	return features.Summarize(forecast.NormalizeSymbol(stockName), closes), nil
}
