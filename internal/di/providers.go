package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/forecast"
	"StockCast/internal/handler/api"
	internalrepo "StockCast/internal/repository"
	"StockCast/internal/service/marketdata"
	"StockCast/internal/service/ratelimit"
	"StockCast/internal/services/agents"
	"StockCast/internal/services/llm"
	"StockCast/internal/usecase"
	"StockCast/pkg/cache"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	"StockCast/pkg/http/middleware"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/metrics"
	"StockCast/pkg/queue"
	"StockCast/pkg/server"
)

const serviceName = "stockcast"

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: serviceName,
	})
}

// ProvidePrometheusRegistry creates the registry served on the metrics path.
func ProvidePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideRedisClient connects to Redis. Returns nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache returns Redis behind an in-memory L1, or memory only when Redis is disabled.
func ProvideCache(cfg *config.Config, rc *redis.Client) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
			cache.WithMemoryDefaultTTL(cfg.Cache.MemoryTTL),
		)
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(cache.NewRedisCache(rc, cfg.Redis.Prefix),
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
	return lc, func() { _ = lc.Close() }
}

// ProvideKafkaProducer creates a Kafka producer and, when enabled, ships aggregated error logs through it.
// Returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Log.Collector.Enabled {
		l.AddCollector(&applogger.CollectorConfig{
			Interval:  cfg.Log.Collector.Interval,
			Threshold: cfg.Log.Collector.Threshold,
			Topic:     cfg.Log.Collector.Topic,
			Service:   serviceName,
			Publisher: producer,
		})
	}

	cleanup := func() {
		// flush collected logs while the producer can still send them
		l.RemoveCollector()
		_ = producer.Close()
	}
	return producer, cleanup, nil
}

// ProvideEventPublisher publishes forecast events to Kafka, or drops them when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Forecasts)
}

// ProvideClickHouseClient connects to ClickHouse. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideForecastStore stores forecast history in ClickHouse, or in memory when ClickHouse is disabled.
func ProvideForecastStore(ch *pkgch.Client, l *applogger.Logger) (repository.ForecastStore, error) {
	if ch == nil {
		return internalrepo.NewMemoryForecastStore(200), nil
	}
	store := internalrepo.NewCHForecastStore(ch, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideRegistry builds the (not yet loaded) model registry.
func ProvideRegistry(cfg *config.Config, l *applogger.Logger) *forecast.Registry {
	return forecast.NewRegistry(RegistryConfig(cfg), forecast.NewFileLoader(cfg.Artifacts.Dir),
		forecast.WithLogger(l))
}

// RegistryConfig maps the artifacts section onto the registry.
func RegistryConfig(cfg *config.Config) forecast.RegistryConfig {
	return forecast.RegistryConfig{
		Symbols:       cfg.Artifacts.Symbols,
		ModelPattern:  cfg.Artifacts.ModelPattern,
		ScalerPattern: cfg.Artifacts.ScalerPattern,
		GenericModel:  cfg.Artifacts.GenericModel,
		GenericScaler: cfg.Artifacts.GenericScaler,
		Concurrency:   cfg.Artifacts.Concurrency,
	}
}

func ProvideForecaster(cfg *config.Config) *forecast.Forecaster {
	return forecast.NewForecaster(cfg.Forecast.MaxHorizon)
}

func ProvideForecastUseCase(
	cfg *config.Config,
	reg *forecast.Registry,
	fc *forecast.Forecaster,
	c cache.Service,
	pub repository.EventPublisher,
	store repository.ForecastStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(reg, fc,
		usecase.WithForecastCache(c, cfg.Forecast.CacheTTL),
		usecase.WithForecastPublisher(pub),
		usecase.WithForecastStore(store),
		usecase.WithForecastMetrics(m),
		usecase.WithForecastLogger(l),
	)
}

// ProvideMarketData creates the Yahoo chart client.
func ProvideMarketData(cfg *config.Config, l *applogger.Logger) repository.MarketData {
	md := cfg.MarketData
	return marketdata.NewClient(marketdata.Config{
		BaseURL:       md.BaseURL,
		Timeout:       md.Timeout,
		RatePerSecond: md.RatePerSecond,
		Burst:         md.Burst,
		Breaker: marketdata.BreakerConfig{
			MaxRequests:  md.Breaker.MaxRequests,
			Interval:     md.Breaker.Interval,
			Timeout:      md.Breaker.Timeout,
			FailureRatio: md.Breaker.FailureRatio,
			MinRequests:  md.Breaker.MinRequests,
		},
	}, marketdata.WithLogger(l))
}

func ProvideHistoricalUseCase(cfg *config.Config, md repository.MarketData, c cache.Service, m repository.Metrics, l *applogger.Logger) *usecase.HistoricalUseCase {
	return usecase.NewHistoricalUseCase(md, c, cfg.MarketData.CacheTTL, m, l)
}

// ProvideTextGenerator selects the LLM backend of the report agents. Without an API key
// the service still starts and report requests fail as unavailable.
func ProvideTextGenerator(cfg *config.Config, l *applogger.Logger) (domsvc.TextGenerator, error) {
	r := cfg.Report
	if (r.Provider == "gemini" && r.Gemini.APIKey == "") || (r.Provider != "gemini" && r.Groq.APIKey == "") {
		l.Warn("report provider has no api key, reports disabled", applogger.String("provider", r.Provider))
		return llm.Unconfigured{Provider: r.Provider}, nil
	}
	switch r.Provider {
	case "gemini":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gc, err := llm.NewGeminiClient(ctx, r.Gemini.APIKey, r.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return gc, nil
	default:
		cc, err := llm.NewChatClient(llm.ChatConfig{
			BaseURL:     r.Groq.BaseURL,
			APIKey:      r.Groq.APIKey,
			Model:       r.Groq.Model,
			Temperature: r.Groq.Temperature,
			Timeout:     r.Timeout,
			Attempts:    3,
		})
		if err != nil {
			return nil, fmt.Errorf("groq client: %w", err)
		}
		return cc, nil
	}
}

// ProvideReportAgent builds the news and finance agents behind the aggregator.
func ProvideReportAgent(gen domsvc.TextGenerator, hist *usecase.HistoricalUseCase, l *applogger.Logger) agents.Agent {
	return agents.NewAggregator(gen, l,
		agents.NewNewsAgent(gen),
		agents.NewFinanceAgent(gen, hist.Stats, l),
	)
}

// ProvideQueue returns the Redis job queue, or the in-memory queue when Redis is disabled.
// Zero workers makes this instance enqueue only.
func ProvideQueue(cfg *config.Config, rc *redis.Client, l *applogger.Logger) queue.Queue {
	qc := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.BufferSize,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryBackoff,
	}
	if rc == nil {
		return queue.NewMemoryQueue(l, qc)
	}
	mode := queue.ModeProducerConsumer
	if cfg.Queue.Workers == 0 {
		mode = queue.ModeProducerOnly
	}
	return queue.NewRedisQueue(l, qc, rc, mode,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"),
		queue.WithRecoverOnStart(cfg.Queue.RecoverOnStart),
	)
}

func ProvideReportJobStore(cfg *config.Config, c cache.Service) repository.ReportJobStore {
	return internalrepo.NewCacheReportJobStore(c, cfg.Queue.JobTTL)
}

// ProvideReportUseCase creates the report use case and registers its job on q.
func ProvideReportUseCase(
	cfg *config.Config,
	agent agents.Agent,
	c cache.Service,
	jobs repository.ReportJobStore,
	q queue.Queue,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ReportUseCase {
	uc := usecase.NewReportUseCase(agent, c, jobs, q, usecase.ReportConfig{
		CacheTTL: cfg.Report.CacheTTL,
		Timeout:  cfg.Report.Timeout,
	}, m, l)
	q.RegisterJob(usecase.NewReportJob(uc))
	return uc
}

// ProvideKafkaConsumer creates the artifact notice consumer. Returns nil unless Kafka and the consumer are enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideArtifactsHandler handles reload notices on the artifacts topic.
func ProvideArtifactsHandler(cfg *config.Config, uc *usecase.ForecastUseCase, m repository.Metrics, l *applogger.Logger) pkgkafka.MessageHandler {
	return usecase.NewArtifactsHandler(cfg.Kafka.Topics.Artifacts, uc, m, l)
}

// ProvideRateLimiter creates the per-client API limiter. Returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RatePerSecond, cfg.RateLimit.Burst)
}

func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	fuc *usecase.ForecastUseCase,
	huc *usecase.HistoricalUseCase,
	ruc *usecase.ReportUseCase,
) *api.Handler {
	return api.NewHandler(l, fuc, huc, ruc, api.Options{
		ForecastTimeout: cfg.Forecast.Timeout,
		AllowOrigins:    cfg.Server.AllowOrigins,
		WS: api.WSConfig{
			MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
			PingInterval:    cfg.WebSocket.PingInterval,
			WriteTimeout:    cfg.WebSocket.WriteTimeout,
		},
	})
}

// ProvideHTTPServer creates the Echo server with the middleware chain.
func ProvideHTTPServer(
	cfg *config.Config,
	h *api.Handler,
	reg *prometheus.Registry,
	limiter *ratelimit.Limiter,
	l *applogger.Logger,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowOrigins...),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, cfg.Server.SlowThreshold))
	}
	if limiter != nil {
		opts = append(opts, xhttp.WithMiddleware(middleware.RateLimit(limiter, "/healthz", "/readyz", cfg.Metrics.Path)))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	fuc *usecase.ForecastUseCase,
	srv *xhttp.Server,
	q queue.Queue,
	consumer *pkgkafka.Consumer,
	artifacts pkgkafka.MessageHandler,
	limiter *ratelimit.Limiter,
) *server.App {
	return server.New(cfg, l, fuc, srv, q, consumer, artifacts, limiter)
}
