package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockCast/internal/domain/errs"
	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/pkg/cache"
)

// MemoryForecastStore keeps the last `perSymbol` forecasts of each symbol in process.
type MemoryForecastStore struct {
	mu        sync.RWMutex
	perSymbol int
	bySymbol  map[string][]*models.ForecastRecord
}

var _ domrepo.ForecastStore = (*MemoryForecastStore)(nil)

func NewMemoryForecastStore(perSymbol int) *MemoryForecastStore {
	if perSymbol <= 0 {
		perSymbol = 100
	}
	return &MemoryForecastStore{perSymbol: perSymbol, bySymbol: make(map[string][]*models.ForecastRecord)}
}

func (s *MemoryForecastStore) Save(_ context.Context, rec *models.ForecastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.bySymbol[rec.Symbol], rec)
	if len(list) > s.perSymbol {
		list = list[len(list)-s.perSymbol:]
	}
	s.bySymbol[rec.Symbol] = list
	return nil
}

// Recent returns newest first.
func (s *MemoryForecastStore) Recent(_ context.Context, symbol string, limit int) ([]*models.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.bySymbol[symbol]
	out := make([]*models.ForecastRecord, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// NoopPublisher drops events when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishForecast(context.Context, *models.ForecastRecord) error { return nil }
func (NoopPublisher) Close() error                                                  { return nil }

// CacheReportJobStore keeps report jobs in the cache layer with a TTL.
type CacheReportJobStore struct {
	cache cache.Service
	ttl   time.Duration
}

var _ domrepo.ReportJobStore = (*CacheReportJobStore)(nil)

func NewCacheReportJobStore(c cache.Service, ttl time.Duration) *CacheReportJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CacheReportJobStore{cache: c, ttl: ttl}
}

func jobKey(id string) string { return cache.Key("report:job", id) }

func (s *CacheReportJobStore) Save(ctx context.Context, job *models.ReportJob) error {
	if err := s.cache.Set(ctx, jobKey(job.ID), job, s.ttl); err != nil {
		return fmt.Errorf("save report job: %w", err)
	}
	return nil
}

func (s *CacheReportJobStore) Get(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := cache.GetTyped[models.ReportJob](ctx, s.cache, jobKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, errs.NotFound("report.Get", "report job %s not found", id)
		}
		return nil, fmt.Errorf("get report job: %w", err)
	}
	return &job, nil
}
