package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// MarketData provides daily closing prices from an upstream provider.
type MarketData interface {
	DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
}
