package retry

import (
	"context"
	"time"
)

// BackoffConfig is a fixed-delay delivery policy
type BackoffConfig struct {
	Delay       time.Duration `json:"delay"`
	MaxAttempts int           `json:"max_attempts"`
}

// DefaultBackoffConfig returns the delivery policy used for outbound sends:
// three attempts, one second apart.
func DefaultBackoffConfig() BackoffConfig {
	return FixedConfig(3, time.Second)
}

// FixedConfig returns a config that waits the same delay between every attempt.
func FixedConfig(maxAttempts int, delay time.Duration) BackoffConfig {
	return BackoffConfig{
		Delay:       delay,
		MaxAttempts: maxAttempts,
	}
}

// Backoff runs an operation until it succeeds or attempts run out
type Backoff struct {
	config BackoffConfig
}

// NewBackoff creates a new backoff instance
func NewBackoff(config BackoffConfig) *Backoff {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Delay < 0 {
		config.Delay = 0
	}
	return &Backoff{
		config: config,
	}
}

// MaxAttempts returns the attempt bound
func (b *Backoff) MaxAttempts() int {
	return b.config.MaxAttempts
}

// RetryWithPredicate executes the operation, using a predicate to determine if errors are retryable
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryable(err) {
			return err
		}

		// Don't wait after the last attempt
		if attempt == b.config.MaxAttempts {
			break
		}

		timer := time.NewTimer(b.config.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
