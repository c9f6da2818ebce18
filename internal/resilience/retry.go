// Package resilience provides fault tolerance patterns for remote calls.
package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
)

// Retry configuration constants.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
)

// RetryConfig holds retry settings. MaxAttempts counts the first call.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0 keeps the delays exact
	IsRetryable  func(error) bool
}

// DefaultRetryConfig returns the classifier retry settings: 3 attempts, 1s doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		IsRetryable: IsTransient,
	}
}

// IsTransient reports whether err is worth retrying. Malformed responses,
// permanent provider rejections, budget refusals, an open breaker and
// caller cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrMalformedResponse) ||
		errors.Is(err, domain.ErrBudgetExceeded) ||
		errors.Is(err, ErrOpen) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.Permanent() {
		return false
	}
	return true
}

// Retry executes fn with exponential backoff. Returns the last error if all attempts fail.
func Retry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxAttempts-1 {
			return lastErr
		}

		delay := backoffDelay(cfg, attempt)
		logger.Debug("Retrying after error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// backoffDelay doubles BaseDelay per attempt, capped at MaxDelay, with optional jitter.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << min(attempt, 6)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.JitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsTransient
	}
	return c
}
