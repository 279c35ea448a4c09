//go:build wireinject
// +build wireinject

package di

import (
	"CryptoFactors/pkg/config"
	"CryptoFactors/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Persistence
		ProvideStores,

		// Ingest transport
		ProvideKafkaProducer,
		ProvideTickPublisher,
		ProvideKafkaConsumer,
		ProvideTickStream,

		// Use cases
		ProvideTickIngestor,
		ProvideKafkaTicksHandler,
		ProvideTickCollector,
		ProvideDailyAggregator,
		ProvideWindowAggregator,
		ProvideReconciler,
		ProvideDateProcessor,
		ProvideFactorService,

		// Delivery
		ProvideScheduler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
