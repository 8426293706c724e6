package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAttemptsExhausted is returned when all retry attempts fail with a
// transient error.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Do runs fn up to attempts times. An error is retried only when isTransient
// classifies it as transient; any other error is returned immediately. A small
// backoff is applied between attempts.
func Do(ctx context.Context, attempts int, isTransient func(error) bool, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if isTransient == nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

// IsTransientPG classifies Postgres errors that are safe to retry:
// deadlocks, serialization failures and dropped connections. Constraint
// violations and other data errors are not transient.
func IsTransientPG(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"deadlock detected",
		"could not serialize access",
		"connection reset",
		"connection refused",
		"broken pipe",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
