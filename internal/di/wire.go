//go:build wireinject
// +build wireinject

package di

import (
	"TradeDeck/pkg/config"
	"TradeDeck/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvideBrokerage,
		ProvideEventStream,
		ProvideTickStore,
		ProvideJournal,

		// State
		ProvideStore,
		ProvideNotifications,

		// Use cases
		ProvidePipeline,
		ProvideRefresher,
		ProvideRecipeService,
		ProvideExecutionService,
		ProvideJobPoller,
		ProvideEventConsumer,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
