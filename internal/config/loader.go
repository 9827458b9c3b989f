package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/domain/ledger"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/diff"
)

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// Loader builds a Config from layered sources, lowest priority first:
//  1. Defaults (in code)
//  2. base.{yaml,yml,json} under basePath
//  3. <environment>.{yaml,yml,json} under basePath
//  4. Environment variables
//
// Missing files are skipped. The result is validated before it is returned.
type Loader struct {
	basePath    string
	environment Environment
	sources     []string
	fileLoaders []FileLoader
	lookupEnv   func(string) (string, bool)
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extensions() []string
}

// NewLoader creates a loader reading files from basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	return &Loader{
		basePath:    basePath,
		environment: env,
		fileLoaders: []FileLoader{&YAMLLoader{}, &JSONLoader{}},
		lookupEnv:   os.LookupEnv,
	}
}

// Load runs the full precedence chain.
func (l *Loader) Load() (*Config, error) {
	l.sources = nil
	cfg := l.defaultConfig()
	l.sources = append(l.sources, "defaults")

	if err := l.loadFile("base", cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	l.sources = append(l.sources, "environment")
	cfg.LoadedFrom = append([]string(nil), l.sources...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile applies the first file named name with a supported extension.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, loader := range l.fileLoaders {
		for _, ext := range loader.Extensions() {
			path := filepath.Join(l.basePath, name+"."+ext)

			file, err := os.Open(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return err
			}

			err = loader.Load(file, cfg)
			file.Close()
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}

			l.sources = append(l.sources, path)
			return nil
		}
	}
	return os.ErrNotExist
}

// loadEnvironmentVariables overlays environment variables on the configuration.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	str := func(key string, target *string) {
		if val, ok := l.lookupEnv(key); ok && val != "" {
			*target = val
		}
	}

	str("AWS_REGION", &cfg.AWS.Region)
	str("DYNAMODB_ENDPOINT", &cfg.AWS.Endpoint)

	str("LEDGER_TABLE", &cfg.Tables.Ledger)
	str("ORGANISATION_TABLE", &cfg.Tables.Organisation)
	str("LOCATION_TABLE", &cfg.Tables.Location)
	str("HEALTHCARE_SERVICE_TABLE", &cfg.Tables.HealthcareService)

	str("AUDIT_IDENTITY", &cfg.Sync.AuditIdentity)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("EVENT_BUS_NAME", &cfg.Events.EventBusName)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)

	if val, ok := l.lookupEnv("ENABLE_EVENTS"); ok && val != "" {
		cfg.Events.Enabled = parseBool(val)
	}
	if val, ok := l.lookupEnv("ENABLE_TRACING"); ok && val != "" {
		cfg.Tracing.Enabled = parseBool(val)
	}
	if val, ok := l.lookupEnv("ENABLE_METRICS"); ok && val != "" {
		cfg.Metrics.Enabled = parseBool(val)
	}
	if val, ok := l.lookupEnv("SERVER_PORT"); ok && val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", val, err)
		}
		cfg.Server.Port = port
	}
	if val, ok := l.lookupEnv("SYNC_CONCURRENCY"); ok && val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid SYNC_CONCURRENCY %q: %w", val, err)
		}
		cfg.Sync.Concurrency = n
	}
	return nil
}

// defaultConfig returns a configuration that runs against local tables.
func (l *Loader) defaultConfig() *Config {
	suffix := strings.ToLower(string(l.environment))
	return &Config{
		Environment: l.environment,
		AWS: AWS{
			Region: "eu-west-2",
		},
		Tables: Tables{
			Ledger:            "dos-migration-state-" + suffix,
			Organisation:      "dos-organisation-" + suffix,
			Location:          "dos-location-" + suffix,
			HealthcareService: "dos-healthcare-service-" + suffix,
		},
		Sync: Sync{
			AuditIdentity: "DATA_MIGRATION",
			Rules:         defaultRules(),
			Retry:         repository.DefaultRetryConfig(),
			Concurrency:   8,
			RateLimit:     0,
			Burst:         1,
		},
		CircuitBreaker: CircuitBreaker{
			Enabled:          true,
			FailureThreshold: 0.6,
			MinimumRequests:  10,
			Interval:         30 * time.Second,
			OpenDuration:     15 * time.Second,
			HalfOpenRequests: 3,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "dos_migration",
		},
		Tracing: Tracing{
			Enabled:     false,
			ServiceName: "dos-migration-sync",
			SampleRate:  0.1,
		},
		Events: Events{
			Enabled:      false,
			EventBusName: "default",
			Source:       "dos.migration",
		},
		Server: Server{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// defaultRules ignores the top-level lastUpdated field and treats code lists
// as sets.
func defaultRules() map[string]EntityRules {
	return map[string]EntityRules{
		string(ledger.EntityOrganisation): {
			IgnorePaths: []string{"lastUpdated"},
		},
		string(ledger.EntityLocation): {
			IgnorePaths: []string{"lastUpdated"},
		},
		string(ledger.EntityHealthcareService): {
			IgnorePaths: []string{"lastUpdated"},
			Unordered: []diff.CollectionRule{
				{Path: "dispositions"},
				{Path: "symptomGroupSymptomDiscriminators"},
			},
			ReplaceableCollections: []string{"openingTime", "telecom"},
		},
	}
}

// ============================================================================
// FILE LOADERS
// ============================================================================

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	return yaml.NewDecoder(reader).Decode(target)
}

func (y *YAMLLoader) Extensions() []string {
	return []string{"yaml", "yml"}
}

// JSONLoader loads configuration from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extensions() []string {
	return []string{"json"}
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func parseBool(s string) bool {
	val, _ := strconv.ParseBool(s)
	return val
}

// Load reads configuration from CONFIG_PATH (default "config") for the
// environment named by ENVIRONMENT.
func Load() (*Config, error) {
	basePath := os.Getenv("CONFIG_PATH")
	return NewLoader(basePath, getEnvironment()).Load()
}

// MustLoad loads configuration and panics on error.
// Use this only in main() functions.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
