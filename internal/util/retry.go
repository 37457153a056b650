package util

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff calls fn up to attempts times, doubling the wait between
// tries starting from base. It returns nil on the first success. If the
// context is cancelled the context error is returned immediately.
func RetryWithBackoff(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	wait := base
	for i := 0; i < attempts; i++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
