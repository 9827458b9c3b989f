package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/config"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/infrastructure/messaging"
	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/repository"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewLoader(t.TempDir(), config.Development).Load()
	require.NoError(t, err)
	return cfg
}

func TestProvideMetrics(t *testing.T) {
	cfg := testConfig(t)
	assert.NotNil(t, provideMetrics(cfg))

	cfg.Metrics.Enabled = false
	assert.Nil(t, provideMetrics(cfg))
}

func TestProvideRateLimiter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.RateLimit = 0
	assert.Nil(t, provideRateLimiter(cfg))

	cfg.Sync.RateLimit = 25
	cfg.Sync.Burst = 0
	limiter := provideRateLimiter(cfg)
	require.NotNil(t, limiter)
	assert.Equal(t, rate.Limit(25), limiter.Limit())
	assert.Equal(t, 1, limiter.Burst())
}

func TestProvideEventPublisher(t *testing.T) {
	cfg := testConfig(t)

	cfg.Events.Enabled = false
	assert.IsType(t, repository.NoopPublisher{}, provideEventPublisher(cfg, nil, zap.NewNop()))

	cfg.Events.Enabled = true
	assert.IsType(t, &messaging.EventBridgePublisher{}, provideEventPublisher(cfg, nil, zap.NewNop()))
}

func TestProvideBuilder(t *testing.T) {
	assert.NotNil(t, provideBuilder(testConfig(t), zap.NewNop()))
}
