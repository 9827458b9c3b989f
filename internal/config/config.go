// Package config defines the runtime configuration of the sync pipeline and
// loads it from layered sources. See loader.go for the precedence rules.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/validation"
)

// Environment is the deployment environment name.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete runtime configuration.
type Config struct {
	Environment    Environment    `yaml:"environment" json:"environment" validate:"required,oneof=development staging production"`
	AWS            AWS            `yaml:"aws" json:"aws"`
	Tables         Tables         `yaml:"tables" json:"tables"`
	Sync           Sync           `yaml:"sync" json:"sync"`
	CircuitBreaker CircuitBreaker `yaml:"circuitBreaker" json:"circuitBreaker"`
	Logging        Logging        `yaml:"logging" json:"logging"`
	Metrics        Metrics        `yaml:"metrics" json:"metrics"`
	Tracing        Tracing        `yaml:"tracing" json:"tracing"`
	Events         Events         `yaml:"events" json:"events"`
	Server         Server         `yaml:"server" json:"server"`

	// LoadedFrom records the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-" json:"-"`
}

// AWS holds client settings.
type AWS struct {
	Region string `yaml:"region" json:"region" validate:"required"`
	// Endpoint overrides the DynamoDB endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// Tables names the target tables.
type Tables struct {
	Ledger            string `yaml:"ledger" json:"ledger" validate:"required"`
	Organisation      string `yaml:"organisation" json:"organisation" validate:"required"`
	Location          string `yaml:"location" json:"location" validate:"required"`
	HealthcareService string `yaml:"healthcareService" json:"healthcareService" validate:"required"`
}

// EntityRules configures change detection for one entity type.
type EntityRules struct {
	IgnorePaths            []string              `yaml:"ignorePaths" json:"ignorePaths"`
	Unordered              []diff.CollectionRule `yaml:"unordered" json:"unordered" validate:"dive"`
	ReplaceableCollections []string              `yaml:"replaceableCollections" json:"replaceableCollections"`
}

// Sync holds the pipeline settings.
type Sync struct {
	AuditIdentity string                 `yaml:"auditIdentity" json:"auditIdentity" validate:"required"`
	Rules         map[string]EntityRules `yaml:"rules" json:"rules" validate:"dive"`
	Retry         repository.RetryConfig `yaml:"retry" json:"retry"`
	// Concurrency bounds how many records the bulk CLI syncs at once.
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"min=1,max=256"`
	// RateLimit caps transaction submits per second; 0 disables the limit.
	RateLimit float64 `yaml:"rateLimit" json:"rateLimit" validate:"gte=0"`
	Burst     int     `yaml:"burst" json:"burst" validate:"gte=0"`
}

// CircuitBreaker configures the breaker around transaction submission.
type CircuitBreaker struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold float64       `yaml:"failureThreshold" json:"failureThreshold" validate:"gte=0,lte=1"`
	MinimumRequests  uint32        `yaml:"minimumRequests" json:"minimumRequests"`
	Interval         time.Duration `yaml:"interval" json:"interval"`
	OpenDuration     time.Duration `yaml:"openDuration" json:"openDuration"`
	HalfOpenRequests uint32        `yaml:"halfOpenRequests" json:"halfOpenRequests"`
}

// Logging configures zap.
type Logging struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// Metrics configures the prometheus collector.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" validate:"required"`
}

// Tracing configures the OpenTelemetry exporter.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"serviceName" json:"serviceName" validate:"required"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	SampleRate  float64 `yaml:"sampleRate" json:"sampleRate" validate:"gte=0,lte=1"`
}

// Events configures RecordSynced publishing.
type Events struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	EventBusName string `yaml:"eventBusName" json:"eventBusName" validate:"required_if=Enabled true"`
	Source       string `yaml:"source" json:"source" validate:"required_if=Enabled true"`
}

// Server configures the ledger HTTP API.
type Server struct {
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validation.Default().Struct(c, dserrors.CodeConfigInvalid); err != nil {
		return err
	}
	for raw := range c.Sync.Rules {
		if _, err := ledger.ParseEntityType(raw); err != nil {
			return dserrors.Validation(dserrors.CodeConfigInvalid, "sync rules reference an unknown entity type").
				WithDetails(raw).
				Build()
		}
	}
	return nil
}

// IsProduction reports whether the configuration targets production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// TxnTables maps the table settings onto the transaction builder's form.
func (c *Config) TxnTables() txn.Tables {
	return txn.Tables{
		Ledger: c.Tables.Ledger,
		Entities: map[ledger.EntityType]string{
			ledger.EntityOrganisation:      c.Tables.Organisation,
			ledger.EntityLocation:          c.Tables.Location,
			ledger.EntityHealthcareService: c.Tables.HealthcareService,
		},
	}
}

// TxnRules maps the per-entity rules onto the transaction builder's form.
// Unknown entity types are skipped; Validate rejects them.
func (c *Config) TxnRules() map[ledger.EntityType]txn.EntityRules {
	out := make(map[ledger.EntityType]txn.EntityRules, len(c.Sync.Rules))
	for raw, r := range c.Sync.Rules {
		t, err := ledger.ParseEntityType(raw)
		if err != nil {
			continue
		}
		out[t] = txn.EntityRules{
			Diff: diff.Rules{
				IgnorePaths: append([]string(nil), r.IgnorePaths...),
				Unordered:   append([]diff.CollectionRule(nil), r.Unordered...),
			},
			ReplaceableCollections: append([]string(nil), r.ReplaceableCollections...),
		}
	}
	return out
}

// getEnvironment reads ENVIRONMENT, defaulting to development.
func getEnvironment() Environment {
	switch strings.ToLower(os.Getenv("ENVIRONMENT")) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}
