package di

import (
	"fmt"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/cache"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.NewRecorder()
}

// ProvideBus creates the in-process event bus.
func ProvideBus(logger *applogger.Logger, m repository.Metrics) *eventbus.Bus {
	return eventbus.New(eventbus.WithLogger(logger), eventbus.WithMetrics(m))
}

// ProvideMembershipCache selects the recently-traded backing store: Redis when
// configured, in-memory otherwise.
func ProvideMembershipCache(cfg *config.Config) cache.MembershipCache {
	if cfg.Redis.Enabled {
		return cache.NewRedisCache(cfg.Redis.RedisConfig)
	}
	return cache.NewTTLCache()
}

// ProvideRateLimiter creates the request limiter.
func ProvideRateLimiter(cfg *config.Config, m repository.Metrics) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit, ratelimit.WithMetrics(m))
}

// ProvideFilterEngine creates the three-stage filtering engine.
func ProvideFilterEngine(bus *eventbus.Bus, recent cache.MembershipCache, m repository.Metrics, logger *applogger.Logger, cfg *config.Config) *usecase.FilterEngine {
	return usecase.NewFilterEngine(bus, recent, m, logger, cfg.Filter)
}

// ProvideTickerStore creates the bus-fed ticker snapshot store.
func ProvideTickerStore(bus *eventbus.Bus, logger *applogger.Logger) *internalrepo.TickerStore {
	return internalrepo.NewTickerStore(bus, logger)
}

// ProvideRegimeEngine creates the market regime engine.
func ProvideRegimeEngine(store *internalrepo.TickerStore, bus *eventbus.Bus, m repository.Metrics, logger *applogger.Logger, cfg *config.Config) *usecase.RegimeEngine {
	return usecase.NewRegimeEngine(store, bus, m, logger,
		usecase.WithAnalysisInterval(cfg.Regime.AnalysisInterval))
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, logger *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(logger,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTicksHandler bridges the tick topic onto the bus.
func ProvideKafkaTicksHandler(bus *eventbus.Bus, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	if !cfg.Kafka.Enabled {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, bus, m)
}

// ProvideKafkaEventSink forwards confirmed signals and regime updates to
// Kafka, or nil when Kafka is off.
func ProvideKafkaEventSink(bus *eventbus.Bus, producer *pkgkafka.Producer, cfg *config.Config, logger *applogger.Logger) *internalrepo.KafkaEventSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventSink(bus, producer, cfg.Kafka.Sink, logger)
}

// ProvideEventFeed creates the websocket event feed.
func ProvideEventFeed(bus *eventbus.Bus, logger *applogger.Logger) *api.EventFeed {
	return api.NewEventFeed(bus, logger)
}

// ProvidePipelineHandler creates the HTTP API handler.
func ProvidePipelineHandler(logger *applogger.Logger, bus *eventbus.Bus, filter *usecase.FilterEngine, regime *usecase.RegimeEngine, limiter *ratelimit.Limiter, feed *api.EventFeed) *api.PipelineHandler {
	return api.NewPipelineHandler(logger, bus, filter, regime, limiter, feed)
}

// ProvideApp creates the application server.
func ProvideApp(
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
	handler *api.PipelineHandler,
	feed *api.EventFeed,
) *server.App {
	app := server.New(cfg, logger, bus, limiter, tickerStore, filter, regime, consumer, producer, ticks, sink)
	app.SetHTTPHandler(handler)
	feed.Start()
	app.SetFeedStopper(feed)
	return app
}
