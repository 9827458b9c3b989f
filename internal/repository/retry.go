package repository

import (
	"context"
	"math"
	"math/rand"
	"time"

	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	MaxAttempts   int           `yaml:"maxAttempts" json:"maxAttempts" validate:"min=1,max=20"`
	BaseDelay     time.Duration `yaml:"baseDelay" json:"baseDelay"`
	MaxDelay      time.Duration `yaml:"maxDelay" json:"maxDelay"`
	BackoffFactor float64       `yaml:"backoffFactor" json:"backoffFactor" validate:"gte=1"`
	JitterFactor  float64       `yaml:"jitterFactor" json:"jitterFactor" validate:"gte=0,lte=1"`
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.2,
	}
}

// RetryableOperation is one attempt; attempt counts from zero.
type RetryableOperation func(ctx context.Context, attempt int) error

// RetryWithBackoff runs operation until it succeeds, fails with a
// non-retryable error, or runs out of attempts. Only errors classified as
// retryable by the errors package are retried.
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation RetryableOperation) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !dserrors.IsRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(config.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return dserrors.Wrap(lastErr, "RetryWithBackoff", "operation failed after retries")
}

// calculateDelay calculates the delay for the given attempt number
func (c RetryConfig) calculateDelay(attempt int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt))

	// Jitter spreads competing writers of the same record apart.
	jitter := backoff * c.JitterFactor * (rand.Float64() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
