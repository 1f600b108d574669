//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Pipeline core
		ProvideBus,
		ProvideMembershipCache,
		ProvideRateLimiter,
		ProvideFilterEngine,
		ProvideTickerStore,
		ProvideRegimeEngine,

		// Kafka edges (nil when disabled)
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,
		ProvideKafkaEventSink,

		// HTTP surface
		ProvideEventFeed,
		ProvidePipelineHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
