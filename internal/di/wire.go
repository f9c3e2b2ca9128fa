//go:build wireinject
// +build wireinject

package di

import (
	"SigFuse/pkg/config"
	"SigFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideBus,
		ProvideLocker,
		ProvideClickHouseClient,
		ProvideTradeLog,
		ProvideKafkaProducer,
		ProvideAuditPublisher,
		ProvideKafkaConsumer,
		ProvideAuditHandler,

		// External services
		ProvideDirectory,
		ProvideResolver,
		ProvideSafetyChecker,
		ProvideQuoteService,
		ProvideOrderGateway,

		// Pipeline stages
		ProvideClassifier,
		ProvideDeduplicator,
		ProvideScorer,
		ProvideDispatcher,
		ProvideAggregator,
		ProvideRiskManager,
		ProvideRouter,
		ProvideExecutor,
		ProvidePipeline,
		ProvideIngestGuard,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
