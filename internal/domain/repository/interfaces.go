package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// ForecastStore keeps the history of completed forecasts.
type ForecastStore interface {
	Save(ctx context.Context, rec *models.ForecastRecord) error
	Recent(ctx context.Context, symbol string, limit int) ([]*models.ForecastRecord, error)
}

// EventPublisher announces completed forecasts to downstream consumers.
type EventPublisher interface {
	PublishForecast(ctx context.Context, rec *models.ForecastRecord) error
	Close() error
}

// ReportJobStore persists asynchronous report jobs.
type ReportJobStore interface {
	Save(ctx context.Context, job *models.ReportJob) error
	Get(ctx context.Context, id string) (*models.ReportJob, error)
}

type Metrics interface {
	RecordForecast(kind, source, result string, steps int)
	RecordLatency(op string, d time.Duration)
	RecordRegistry(loaded, failed int, generic bool)
	RecordCache(namespace string, hit bool)
	RecordError(kind string)
}
