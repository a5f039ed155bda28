package export

import (
	"context"
	"time"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 10 * time.Second

// RetryWithBackoff runs fn up to maxAttempts times, sleeping
// min(base * 2^(attempt-1), 10s) between attempts. The last error is
// returned once attempts are exhausted; context cancellation cuts the
// wait short.
func RetryWithBackoff(ctx context.Context, maxAttempts int, base time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		delay := base << (attempt - 1)
		if delay > maxBackoff {
			delay = maxBackoff
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
