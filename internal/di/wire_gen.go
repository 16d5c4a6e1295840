//go:build !wireinject
// +build !wireinject

// InitializeApp below is maintained by hand to mirror the provider graph in wire.go.
// Running `go generate ./internal/di` replaces this file with wire's output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

package di

import (
	"StockCast/pkg/config"
	"StockCast/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	registry := ProvideRegistry(cfg, logger)
	forecaster := ProvideForecaster(cfg)
	client, cleanup, err := ProvideRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	service, cleanup2 := ProvideCache(cfg, client)
	producer, cleanup3, err := ProvideKafkaProducer(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	eventPublisher := ProvideEventPublisher(cfg, producer)
	clickhouseClient, cleanup4, err := ProvideClickHouseClient(cfg)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	forecastStore, err := ProvideForecastStore(clickhouseClient, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	registry2 := ProvidePrometheusRegistry()
	metrics := ProvideMetrics(registry2)
	forecastUseCase := ProvideForecastUseCase(cfg, registry, forecaster, service, eventPublisher, forecastStore, metrics, logger)
	marketData := ProvideMarketData(cfg, logger)
	historicalUseCase := ProvideHistoricalUseCase(cfg, marketData, service, metrics, logger)
	textGenerator, err := ProvideTextGenerator(cfg, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	agent := ProvideReportAgent(textGenerator, historicalUseCase, logger)
	reportJobStore := ProvideReportJobStore(cfg, service)
	queue := ProvideQueue(cfg, client, logger)
	reportUseCase := ProvideReportUseCase(cfg, agent, service, reportJobStore, queue, metrics, logger)
	handler := ProvideHTTPHandler(cfg, logger, forecastUseCase, historicalUseCase, reportUseCase)
	limiter := ProvideRateLimiter(cfg)
	httpServer := ProvideHTTPServer(cfg, handler, registry2, limiter, logger)
	consumer, err := ProvideKafkaConsumer(cfg, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	messageHandler := ProvideArtifactsHandler(cfg, forecastUseCase, metrics, logger)
	app := ProvideApp(cfg, logger, forecastUseCase, httpServer, queue, consumer, messageHandler, limiter)
	return app, func() {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
