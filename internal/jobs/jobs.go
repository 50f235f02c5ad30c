// Package jobs holds the scheduled units of work. Each job is an
// explicit struct taking its stores, sources and notifier through the
// constructor; nothing here reaches for shared package state, so jobs
// can run concurrently and overlapping invocations stay safe through
// the store's uniqueness and version constraints.
package jobs

import (
	"context"
	"time"

	"fxledger/internal/logger"
)

const (
	retryAttempts = 3
	retryDelay    = 2 * time.Second
)

// withRetry runs fn up to retryAttempts times with linear backoff.
// Context cancellation stops the retries immediately.
func withRetry(ctx context.Context, name string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < retryAttempts {
			logger.Warnf("%s: attempt %d/%d failed: %v", name, attempt, retryAttempts, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}
	}
	return lastErr
}
