//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"AutoEye/pkg/config"
	"AutoEye/pkg/server"
)

// InitializeApp wires the engine from configuration.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideCandleReader,
		ProvideBarSource,
		ProvideElementStore,
		ProvideStateStore,
		ProvideTrendStore,
		ProvideScenarioStore,

		// Domain services
		ProvideDetectors,
		ProvideComposer,

		// Use cases
		ProvideRefresher,
		ProvideStateBuilder,
		ProvideTrendBuilder,
		ProvideScenarioBuilder,
		ProvideRunner,
		ProvideBacktester,
		ProvideSnapshotQuery,

		// Delivery
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
