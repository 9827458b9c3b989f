package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/services"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/audit"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/config"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/messaging"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/observability"
	infradynamodb "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/persistence/dynamodb"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/interfaces/http/rest"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

func provideConfig() (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(cfg.Logging, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ============================================================================
// OBSERVABILITY
// ============================================================================

// provideMetrics returns nil when metrics are disabled; the collector's
// methods accept a nil receiver.
func provideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, cfg.Tracing, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to shut down tracer provider", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// ============================================================================
// AWS CLIENTS
// ============================================================================

func provideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return infradynamodb.LoadAWSConfig(ctx, cfg.AWS)
}

func provideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return infradynamodb.NewClient(awsCfg, cfg.AWS)
}

func provideEventBridgeClient(awsCfg aws.Config) *eventbridge.Client {
	return eventbridge.NewFromConfig(awsCfg)
}

// ============================================================================
// REPOSITORIES
// ============================================================================

func provideLedgerRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *infradynamodb.LedgerRepository {
	return infradynamodb.NewLedgerRepository(client, cfg.Tables.Ledger, logger)
}

func provideTransactionWriter(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *infradynamodb.TransactionWriter {
	return infradynamodb.NewTransactionWriter(client, cfg.CircuitBreaker, logger)
}

func provideEventPublisher(cfg *config.Config, client *eventbridge.Client, logger *zap.Logger) repository.EventPublisher {
	if !cfg.Events.Enabled {
		logger.Info("RecordSynced events disabled")
		return repository.NoopPublisher{}
	}
	return messaging.NewEventBridgePublisher(client, cfg.Events, logger)
}

// ============================================================================
// SYNC PIPELINE
// ============================================================================

func provideBuilder(cfg *config.Config, logger *zap.Logger) *txn.Builder {
	return txn.NewBuilder(
		logger,
		diff.NewStructuralDiffer(),
		audit.NewStaticProvider(cfg.Sync.AuditIdentity, nil),
		cfg.TxnTables(),
		cfg.TxnRules(),
	)
}

// provideRateLimiter returns nil when no submit rate is configured.
func provideRateLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.Sync.RateLimit <= 0 {
		return nil
	}
	burst := cfg.Sync.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.Sync.RateLimit), burst)
}

func provideSyncService(
	cfg *config.Config,
	ledgers repository.LedgerReader,
	submitter repository.TransactionSubmitter,
	publisher repository.EventPublisher,
	builder *txn.Builder,
	limiter *rate.Limiter,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *services.SyncService {
	return services.NewSyncService(ledgers, submitter, publisher, builder, cfg.Sync.Retry, limiter, metrics, tracer, logger)
}

// ============================================================================
// INTERFACES
// ============================================================================

func provideRouter(cfg *config.Config, ledgers rest.LedgerService, metrics *observability.Collector, logger *zap.Logger) *rest.Router {
	return rest.NewRouter(
		rest.NewLedgerHandler(ledgers, logger),
		metrics,
		cfg.Tracing.ServiceName,
		cfg.Server.WriteTimeout,
		logger,
	)
}

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	tracing *observability.TracerProvider,
	syncService *services.SyncService,
	router *rest.Router,
) *Container {
	return &Container{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Tracing:     tracing,
		SyncService: syncService,
		Router:      router,
	}
}
