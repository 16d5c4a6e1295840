package repository

import (
	"context"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	pkgch "StockCast/pkg/clickhouse"
	applogger "StockCast/pkg/logger"
)

const forecastsTable = "forecasts"

// CHForecastStore implements ForecastStore backed by ClickHouse.
type CHForecastStore struct {
	client *pkgch.Client
	table  string
	l      *applogger.Logger
}

var _ domrepo.ForecastStore = (*CHForecastStore)(nil)

func NewCHForecastStore(ch *pkgch.Client, l *applogger.Logger) *CHForecastStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHForecastStore{
		client: ch,
		table:  ch.Database() + "." + forecastsTable,
		l:      l,
	}
}

// ForecastSchema returns the DDL for the forecast history table in database.
func ForecastSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            id String,
            symbol LowCardinality(String),
            source LowCardinality(String),
            days UInt16,
            last_price Float64,
            predictions Array(Float64),
            snapshot_version UInt64,
            created_at DateTime64(3)
        ) ENGINE = MergeTree ORDER BY (symbol, created_at)
        TTL toDateTime(created_at) + INTERVAL 90 DAY`, database, forecastsTable),
	}
}

// Init creates the schema.
func (s *CHForecastStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, ForecastSchema(s.client.Database())...)
}

func (s *CHForecastStore) Save(ctx context.Context, rec *models.ForecastRecord) error {
	start := time.Now()
	q := fmt.Sprintf("INSERT INTO %s (id, symbol, source, days, last_price, predictions, snapshot_version, created_at)", s.table)
	err := s.client.InsertBatch(ctx, q, [][]any{{
		rec.ID,
		rec.Symbol,
		rec.Source,
		uint16(rec.Days),
		rec.LastPrice,
		rec.Predictions,
		rec.SnapshotVersion,
		rec.CreatedAt,
	}})
	if err != nil {
		s.l.Error("clickhouse save_forecast error",
			applogger.String("table", s.table),
			applogger.String("symbol", rec.Symbol),
			applogger.Error(err),
		)
		return fmt.Errorf("save forecast: %w", err)
	}
	s.l.Debug("clickhouse save_forecast ok",
		applogger.String("symbol", rec.Symbol),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHForecastStore) Recent(ctx context.Context, symbol string, limit int) ([]*models.ForecastRecord, error) {
	start := time.Now()
	const qtpl = `
        SELECT id, symbol, source, days, last_price, predictions, snapshot_version, created_at
        FROM %s
        WHERE symbol = ?
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := s.client.Query(ctx, fmt.Sprintf(qtpl, s.table), symbol, limit)
	if err != nil {
		s.l.Error("clickhouse recent_forecasts query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", limit),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("recent forecasts: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ForecastRecord, 0, limit)
	for rows.Next() {
		var (
			r    models.ForecastRecord
			days uint16
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Source, &days, &r.LastPrice, &r.Predictions, &r.SnapshotVersion, &r.CreatedAt); err != nil {
			s.l.Error("clickhouse recent_forecasts scan error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		r.Days = int(days)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse recent_forecasts ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
