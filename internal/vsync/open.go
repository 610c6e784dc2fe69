package vsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls how often a platform monitor is asked to initialize
// before falling back to the timed monitor.
type RetryConfig struct {
	MaxRetries    int           // Retries after the first attempt (default: 3)
	RetryDelay    time.Duration // Initial delay (default: 100ms)
	MaxRetryDelay time.Duration // Delay cap (default: 2s)
}

// DefaultRetryConfig returns the default initialization retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
		MaxRetryDelay: 2 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = def.MaxRetryDelay
	}
	return c
}

// Initialize prepares primary for use, retrying with exponential backoff.
//
// If primary is nil, or every attempt fails, the fallback monitor is
// initialized and returned instead, and usingFallback is true. An error is
// returned only if ctx is cancelled first.
func Initialize(ctx context.Context, primary Monitor, fallback Monitor, cfg RetryConfig) (m Monitor, usingFallback bool, err error) {
	if fallback == nil {
		fallback = NewTimed()
	}

	if primary != nil {
		cfg = cfg.withDefaults()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.RetryDelay
		b.MaxInterval = cfg.MaxRetryDelay
		b.MaxElapsedTime = 0

		attempt := 0
		err := backoff.RetryNotify(
			func() error {
				attempt++
				return primary.Initialize()
			},
			backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxRetries)), ctx),
			func(err error, next time.Duration) {
				slog.Warn("vsync: monitor initialization failed, retrying",
					"attempt", attempt,
					"max_retries", cfg.MaxRetries,
					"next", next,
					"error", err,
				)
			},
		)
		if err == nil {
			slog.Info("vsync: monitor initialized", "attempts", attempt)
			return primary, false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, fmt.Errorf("vsync: initialization cancelled: %w", ctxErr)
		}

		slog.Warn("vsync: using fallback timed monitor", "attempts", attempt, "error", err)
	}

	if err := fallback.Initialize(); err != nil {
		return nil, true, fmt.Errorf("vsync: fallback monitor: %w", err)
	}
	return fallback, true, nil
}
