//go:build wireinject
// +build wireinject

package di

import (
	"StockCast/pkg/config"
	"StockCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvidePrometheusRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideQueue,

		// Repositories
		ProvideEventPublisher,
		ProvideForecastStore,
		ProvideReportJobStore,

		// Forecasting core
		ProvideRegistry,
		ProvideForecaster,

		// External services
		ProvideMarketData,
		ProvideTextGenerator,
		ProvideReportAgent,

		// Use cases
		ProvideForecastUseCase,
		ProvideHistoricalUseCase,
		ProvideReportUseCase,

		// Transports
		ProvideKafkaConsumer,
		ProvideArtifactsHandler,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
