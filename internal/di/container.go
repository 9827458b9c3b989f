// Package di assembles the sync pipeline with google/wire. wire.go declares
// the injector; wire_gen.go is the generated implementation.
package di

import (
	"go.uber.org/zap"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/services"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/config"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/observability"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/interfaces/http/rest"
)

// Container holds the fully wired application.
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Collector
	Tracing     *observability.TracerProvider
	SyncService *services.SyncService
	Router      *rest.Router
}
