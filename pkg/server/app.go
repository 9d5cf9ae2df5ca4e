package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/middleware"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/ratelimit"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/usecase"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/config"
	xhttp "github.com/Yoitsuro/mySkripsiWebsite/pkg/http"
	pkgkafka "github.com/Yoitsuro/mySkripsiWebsite/pkg/kafka"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
)

const (
	limiterSweepEvery = time.Minute
	limiterIdle       = 10 * time.Minute
)

// Background holds the optional workers started next to the HTTP server.
// Nil members are skipped.
type Background struct {
	Collector      *usecase.CandleCollector
	Pipeline       *middleware.CandlePipeline
	Consumer       *pkgkafka.Consumer
	ArchiveHandler pkgkafka.MessageHandler
	Limiter        *ratelimit.Limiter
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *xlogger.Logger
	handler    xhttp.Handler
	bg         Background
	httpServer *xhttp.Server
}

func New(cfg *config.Config, logger *xlogger.Logger, handler xhttp.Handler, bg Background) *App {
	return &App{cfg: cfg, logger: logger, handler: handler, bg: bg}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done or the
// HTTP listener fails.
func (a *App) RunContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	proxies, err := xhttp.ParseCIDRs(a.cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTrustedProxies(proxies),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins),
		xhttp.WithLogger(a.logger),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(a.cfg.Metrics.Path, nil, nil))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)

	if a.bg.Pipeline != nil {
		a.bg.Pipeline.Start(ctx)
		a.logger.Info("candle pipeline started")
	}
	if a.bg.Collector != nil {
		if err := a.bg.Collector.Start(ctx); err != nil {
			// forecasts still work from REST, only the live book is missing
			a.logger.Error("kline collector start failed", xlogger.Error(err))
		} else {
			a.logger.Info("kline collector started", xlogger.String("symbol", a.cfg.Forecast.Symbol))
		}
	}
	if a.bg.Consumer != nil && a.bg.ArchiveHandler != nil {
		a.bg.Consumer.RegisterHandler(a.bg.ArchiveHandler)
		if err := a.bg.Consumer.Start(ctx); err != nil {
			return fmt.Errorf("start archive consumer: %w", err)
		}
		a.logger.Info("archive consumer started", xlogger.String("topic", a.bg.ArchiveHandler.Topic()))
	}
	if a.bg.Limiter != nil {
		go a.sweepLimiter(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-a.httpServer.Err():
	}
	cancel()
	return errors.Join(runErr, a.shutdown())
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.bg.Limiter.Sweep(limiterIdle); n > 0 {
				a.logger.Debug("rate limiter swept", xlogger.Int("buckets", n))
			}
		}
	}
}

// shutdown stops the server and the background workers. Infrastructure
// clients are closed by the cleanup returned from dependency injection.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.bg.Collector != nil {
		if err := a.bg.Collector.Shutdown(ctx); err != nil {
			a.logger.Warn("collector stop error", xlogger.Error(err))
		}
	}
	if a.bg.Pipeline != nil {
		if err := a.bg.Pipeline.Stop(ctx); err != nil {
			a.logger.Warn("candle pipeline stop error", xlogger.Error(err), xlogger.Int("dropped", a.bg.Pipeline.Pending()))
		}
	}
	if a.bg.Consumer != nil {
		if err := a.bg.Consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", xlogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
