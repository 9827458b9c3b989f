package di

import (
	"github.com/google/wire"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/services"
	infradynamodb "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/persistence/dynamodb"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/interfaces/http/rest"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
)

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ConfigProviders,
	ObservabilityProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	provideContainer,
)

// ConfigProviders provides configuration and logging.
var ConfigProviders = wire.NewSet(
	provideConfig,
	provideLogger,
)

// ObservabilityProviders provides metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	provideMetrics,
	provideTracerProvider,
	provideTracer,
)

// InfrastructureProviders provides the AWS adapters behind the repository ports.
var InfrastructureProviders = wire.NewSet(
	provideAWSConfig,
	provideDynamoDBClient,
	provideEventBridgeClient,
	provideLedgerRepository,
	provideTransactionWriter,
	provideEventPublisher,
	wire.Bind(new(repository.LedgerReader), new(*infradynamodb.LedgerRepository)),
	wire.Bind(new(repository.TransactionSubmitter), new(*infradynamodb.TransactionWriter)),
)

// ApplicationProviders provides the sync pipeline.
var ApplicationProviders = wire.NewSet(
	provideBuilder,
	provideRateLimiter,
	provideSyncService,
)

// InterfaceProviders provides the HTTP surface.
var InterfaceProviders = wire.NewSet(
	provideRouter,
	wire.Bind(new(rest.LedgerService), new(*services.SyncService)),
)
