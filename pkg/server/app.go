package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketPulse/internal/eventbus"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg    *config.Config
	logger *applogger.Logger

	bus         *eventbus.Bus
	limiter     *ratelimit.Limiter
	tickerStore *internalrepo.TickerStore
	filter      *usecase.FilterEngine
	regime      *usecase.RegimeEngine

	// kafka pieces are nil when kafka is disabled
	consumer *pkgkafka.Consumer
	producer *pkgkafka.Producer
	ticks    *usecase.KafkaTicksHandler
	sink     *internalrepo.KafkaEventSink

	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	feedStopper interface{ Stop() }
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	bus *eventbus.Bus,
	limiter *ratelimit.Limiter,
	tickerStore *internalrepo.TickerStore,
	filter *usecase.FilterEngine,
	regime *usecase.RegimeEngine,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	ticks *usecase.KafkaTicksHandler,
	sink *internalrepo.KafkaEventSink,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		bus:         bus,
		limiter:     limiter,
		tickerStore: tickerStore,
		filter:      filter,
		regime:      regime,
		consumer:    consumer,
		producer:    producer,
		ticks:       ticks,
		sink:        sink,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetFeedStopper registers the websocket feed for shutdown.
func (a *App) SetFeedStopper(s interface{ Stop() }) { a.feedStopper = s }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.limiter.Start()
	a.tickerStore.Start()
	a.filter.Start()
	a.regime.Start()

	if a.sink != nil {
		a.sink.Start()
	}
	if a.consumer != nil && a.ticks != nil {
		a.consumer.RegisterHandler(a.ticks)
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer start failed", applogger.Error(err))
			return err
		}
		a.logger.Info("tick ingestion attached", applogger.String("topic", a.ticks.Topic()))
	}

	a.regime.StartContinuousAnalysis(ctx, a.cfg.Regime.Symbols)
	a.logger.Info("regime analysis running",
		applogger.Duration("interval_ms", a.cfg.Regime.AnalysisInterval),
		applogger.Strings("symbols", a.cfg.Regime.Symbols),
	)

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, a.logger,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRateLimiter(a.limiter, a.cfg.RateLimit.RetryAfter),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start failed", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services, sinks last so in-flight events can
// still be forwarded.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.regime.Stop()
	a.filter.Stop()
	a.tickerStore.Stop()
	if a.feedStopper != nil {
		a.feedStopper.Stop()
	}
	if a.sink != nil {
		a.sink.Stop()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	a.limiter.Stop()

	a.logger.Info("shutdown complete")
	return nil
}
