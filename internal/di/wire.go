//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"CashBreakout/pkg/config"
	"CashBreakout/pkg/server"
)

// InitializeDataFeedApp wires the tick-to-candle daemon.
// Wire generates the implementation of this function.
func InitializeDataFeedApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCandleStream,
		ProvideSnapshotStore,
		ProvideCandleArchive,
		ProvideQuoteStream,
		ProvideTimezone,

		// Use cases
		ProvideAggregator,

		ProvideDataFeedApp,
	)
	return &server.App{}, nil
}

// InitializeEngineApp wires the trading daemon.
func InitializeEngineApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCandleStream,
		ProvideSnapshotStore,
		ProvideLevelsStore,
		ProvideLedger,
		ProvideBroker,
		ProvideTimezone,
		ProvideStrategySettings,

		// Use cases
		ProvideDetector,
		ProvideMonitor,
		ProvideReconciler,
		ProvideEngine,

		// HTTP surface
		ProvideTradesHandler,
		ProvideHTTPServer,

		ProvideEngineApp,
	)
	return &server.App{}, nil
}

// InitializeLevelsJob wires the one-shot reference-data refresh.
func InitializeLevelsJob(cfg *config.Config) (*server.Job, error) {
	wire.Build(
		ProvideLogger,

		ProvideRedisClient,
		ProvideRawLevelsStore,
		ProvideBroker,
		ProvideTimezone,

		ProvideLevelsFetcher,
		ProvideLevelsJob,
	)
	return &server.Job{}, nil
}
