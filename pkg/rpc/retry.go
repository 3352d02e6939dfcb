package rpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// backoffSequence is the reference client's exponential backoff sequence
// in seconds, pinned by spec §6.1: after the last attempt fails the call
// errors out.
var backoffSequence = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// RetryWithBackoff runs fn, retrying on failure according to
// backoffSequence. It waits backoffSequence[attempt] before the attempt
// at index attempt+1 (i.e. the first retry waits 1s, the second 3s, and
// so on). It does not distinguish retryable from non-retryable errors —
// transport-level retry policy in the reference client retries every
// failure; callers that need selective retry should check the error
// themselves before calling this.
func RetryWithBackoff(ctx context.Context, logger *zap.SugaredLogger, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= len(backoffSequence); attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == len(backoffSequence) {
			break
		}

		wait := backoffSequence[attempt]
		if logger != nil {
			logger.Warnw("rpc call failed, retrying", "attempt", attempt+1, "wait", wait, "error", lastErr)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("exceeded retries: %w", lastErr)
}
