package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockCast/internal/service/ratelimit"
	"StockCast/internal/usecase"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	forecast   *usecase.ForecastUseCase
	httpServer *xhttp.Server
	jobs       queue.Queue
	consumer   *pkgkafka.Consumer
	artifacts  pkgkafka.MessageHandler
	limiter    *ratelimit.Limiter
}

// New creates a new App instance with all dependencies. consumer, artifacts and limiter may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	forecast *usecase.ForecastUseCase,
	httpServer *xhttp.Server,
	jobs queue.Queue,
	consumer *pkgkafka.Consumer,
	artifacts pkgkafka.MessageHandler,
	limiter *ratelimit.Limiter,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		forecast:   forecast,
		httpServer: httpServer,
		jobs:       jobs,
		consumer:   consumer,
		artifacts:  artifacts,
		limiter:    limiter,
	}
}

// Run loads the model artifacts, starts every component and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	stats, err := a.forecast.LoadArtifacts(ctx)
	if err != nil {
		return err
	}
	if !a.forecast.Ready() {
		if a.cfg.Artifacts.RequireAny {
			return fmt.Errorf("no model artifacts found in %s", a.cfg.Artifacts.Dir)
		}
		a.log.Warn("starting without model artifacts", applogger.String("dir", a.cfg.Artifacts.Dir))
	}
	a.log.Info("artifacts loaded",
		applogger.Int("loaded", stats.Loaded),
		applogger.Int("failed", stats.Failed),
		applogger.Bool("generic", stats.Generic))

	if err := a.jobs.Start(); err != nil {
		return fmt.Errorf("queue start: %w", err)
	}

	if a.consumer != nil && a.artifacts != nil {
		a.consumer.RegisterHandler(a.artifacts)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.artifacts.Topic()))
		}
	}

	if a.limiter != nil {
		go a.sweepLimiter(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return errors.Join(err, a.shutdown())
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("removed", n), applogger.Int("tracked", a.limiter.Len()))
			}
		}
	}
}

// shutdown stops accepting requests first, then drains background work.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.jobs.Stop(ctx); err != nil {
		a.log.Warn("queue stop error", applogger.Error(err))
		errs = append(errs, err)
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
