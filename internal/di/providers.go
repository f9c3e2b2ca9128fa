package di

import (
	"context"
	"fmt"
	"time"

	"SigFuse/internal/domain/repository"
	"SigFuse/internal/handler/ops"
	mid "SigFuse/internal/middleware"
	internalrepo "SigFuse/internal/repository"
	"SigFuse/internal/service/dexapi"
	"SigFuse/internal/service/directory"
	"SigFuse/internal/service/exchange"
	"SigFuse/internal/usecase"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/cache"
	pkgch "SigFuse/pkg/clickhouse"
	"SigFuse/pkg/config"
	pkgkafka "SigFuse/pkg/kafka"
	applogger "SigFuse/pkg/logger"
	"SigFuse/pkg/metrics"
	"SigFuse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the shared Redis connection.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideBus creates the Redis Streams bus on the shared connection.
func ProvideBus(lgr *applogger.Logger, rc *cache.RedisCache, cfg *config.Config) (repository.Bus, error) {
	return bus.NewRedisStream(lgr, rc.Client(), bus.WithMaxLen(cfg.Bus.MaxStreamLen))
}

// ProvideLocker creates the distributed route locker.
func ProvideLocker(rc *cache.RedisCache) repository.Locker {
	return bus.NewCacheLocker(rc)
}

// ProvideClickHouseClient creates the audit store client when enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideTradeLog creates the ClickHouse trade audit store.
func ProvideTradeLog(chClient *pkgch.Client) repository.TradeLog {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseTradeLog(chClient.DB(), "trade_audit")
}

// ProvideKafkaProducer creates the audit export producer when enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditPublisher wraps the producer as the audit exporter.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.AuditTopic)
}

// ProvideKafkaConsumer creates the audit consumer when both Kafka and the
// audit store are configured.
func ProvideKafkaConsumer(cfg *config.Config, tradeLog repository.TradeLog) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || tradeLog == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
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

// ProvideAuditHandler registers the audit persistence handler.
func ProvideAuditHandler(tradeLog repository.TradeLog, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if tradeLog == nil {
		return nil
	}
	return usecase.NewTradeAuditHandler(cfg.Kafka.AuditTopic, tradeLog, m)
}

// ProvideDirectory creates the symbol directory client.
func ProvideDirectory(cfg *config.Config, m repository.Metrics, lgr *applogger.Logger) repository.SymbolDirectory {
	return directory.NewRestDirectory(cfg.Execution.DirectoryURL, cfg.Execution.CallTimeout, m, lgr)
}

// ProvideResolver creates the contract resolver client.
func ProvideResolver(cfg *config.Config) repository.ContractResolver {
	return dexapi.NewResolver(cfg.Execution.ResolverURL, cfg.Execution.CallTimeout)
}

// ProvideSafetyChecker creates the token safety client.
func ProvideSafetyChecker(cfg *config.Config) repository.SafetyChecker {
	return dexapi.NewSafetyClient(cfg.Execution.SafetyURL, cfg.Execution.CallTimeout)
}

// ProvideQuoteService creates the quote client.
func ProvideQuoteService(cfg *config.Config) repository.QuoteService {
	return dexapi.NewQuoteClient(cfg.Execution.QuoteURL, cfg.Execution.CallTimeout)
}

// ProvideOrderGateway creates the order gateway client.
func ProvideOrderGateway(cfg *config.Config) repository.OrderGateway {
	return exchange.NewRestGateway(cfg.Execution.OrderGatewayURL, cfg.Execution.CallTimeout)
}

// ProvideClassifier creates the source classifier.
func ProvideClassifier(cfg *config.Config) *usecase.Classifier {
	return usecase.NewClassifier(cfg)
}

// ProvideDeduplicator creates the dedup filter.
func ProvideDeduplicator(cfg *config.Config, m repository.Metrics) *usecase.Deduplicator {
	return usecase.NewDeduplicator(cfg.Pipeline.DedupCapacity, m)
}

// ProvideScorer creates the scoring engine.
func ProvideScorer(cfg *config.Config, classifier *usecase.Classifier, m repository.Metrics) *usecase.Scorer {
	return usecase.NewScorer(cfg, classifier, m)
}

// ProvideDispatcher creates the priority dispatcher.
func ProvideDispatcher(cfg *config.Config, classifier *usecase.Classifier, m repository.Metrics) *usecase.Dispatcher {
	return usecase.NewDispatcher(cfg, classifier, m)
}

// ProvideAggregator creates the windowed aggregator.
func ProvideAggregator(cfg *config.Config, m repository.Metrics) *usecase.Aggregator {
	return usecase.NewAggregator(cfg, m)
}

// ProvideRiskManager creates the risk gate.
func ProvideRiskManager(cfg *config.Config, m repository.Metrics, lgr *applogger.Logger) *usecase.RiskManager {
	return usecase.NewRiskManager(cfg, m, lgr)
}

// ProvideRouter creates the venue router.
func ProvideRouter(
	cfg *config.Config,
	dir repository.SymbolDirectory,
	locker repository.Locker,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.Router {
	return usecase.NewRouter(cfg, dir, locker, m, lgr)
}

// ProvideExecutor creates the execution stage.
func ProvideExecutor(
	cfg *config.Config,
	risk *usecase.RiskManager,
	resolver repository.ContractResolver,
	safety repository.SafetyChecker,
	quotes repository.QuoteService,
	orders repository.OrderGateway,
	b repository.Bus,
	audit repository.AuditPublisher,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.Executor {
	return usecase.NewExecutor(cfg, risk, resolver, safety, quotes, orders, b, audit, m, lgr)
}

// ProvidePipeline creates the pipeline loop.
func ProvidePipeline(
	cfg *config.Config,
	b repository.Bus,
	dedup *usecase.Deduplicator,
	scorer *usecase.Scorer,
	dispatcher *usecase.Dispatcher,
	aggregator *usecase.Aggregator,
	router *usecase.Router,
	executor *usecase.Executor,
	dir repository.SymbolDirectory,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(cfg, b, dedup, scorer, dispatcher, aggregator, router, executor, dir, m, lgr)
}

// ProvideIngestGuard wraps the pipeline with validation and throttling.
func ProvideIngestGuard(cfg *config.Config, pipeline *usecase.Pipeline, m repository.Metrics) *mid.IngestGuard {
	return mid.NewIngestGuard(pipeline, m,
		mid.WithMaxSourceRPS(cfg.Pipeline.MaxSourceRPS),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
	)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	b repository.Bus,
	pipeline *usecase.Pipeline,
	guard *mid.IngestGuard,
	consumer *pkgkafka.Consumer,
	auditor pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	dedup *usecase.Deduplicator,
	dispatcher *usecase.Dispatcher,
	aggregator *usecase.Aggregator,
	risk *usecase.RiskManager,
	tradeLog repository.TradeLog,
) *server.App {
	// Repeated error logs fan in to the alert topic instead of paging per
	// occurrence.
	lgr.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Notifications.FlushInterval,
		CountThreshold: cfg.Notifications.CountThreshold,
		Topic:          cfg.Notifications.Topic,
		Publisher:      b,
	})

	// The guard fronts the consume loop so every decoded event is validated
	// and throttled before it reaches scoring.
	pipeline.SetFront(guard)

	app := server.New(cfg, lgr, pipeline, guard, consumer, auditor, chClient)
	app.SetHTTPHandler(ops.NewStatusHandler(cfg, dedup, dispatcher, aggregator, risk, tradeLog))
	return app
}
