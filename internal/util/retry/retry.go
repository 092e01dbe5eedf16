// Package retry re-runs transient operations with exponential backoff.
// The provider catalog fetches use it to ride out intermittent API
// failures without hanging the wizard behind a dead endpoint.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond

	// maxDelay caps the doubling; catalog calls back an interactive
	// prompt, so waiting longer than this helps nobody.
	maxDelay = 10 * time.Second
)

type config struct {
	maxRetries   int
	initialDelay time.Duration
}

// Option adjusts the retry behavior.
type Option func(*config)

// WithMaxRetries sets how many times the operation is re-run after the
// first failure.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *config) { c.initialDelay = d }
}

// WithExponentialBackoff runs op, re-running failures with doubling
// delays between attempts. Context cancellation wins over a pending
// retry; the last operation error rides along wrapped either way.
func WithExponentialBackoff(ctx context.Context, op func() error, opts ...Option) error {
	cfg := config{maxRetries: defaultMaxRetries, initialDelay: defaultInitialDelay}
	for _, o := range opts {
		o(&cfg)
	}

	delay := cfg.initialDelay
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= cfg.maxRetries {
			return fmt.Errorf("failed after %d attempts: %w", attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled after %d attempts: %w", attempt+1, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
