package dispatch

import (
	"context"
	"time"

	"github.com/matzehuels/labelkit/pkg/errors"
)

// Retry executes fn up to attempts times with exponential backoff.
// Only transient failures ([errors.IsTransient]: connection errors and
// timeouts) are retried; any other error is returned immediately. The delay
// doubles after each failed attempt. onRetry, if non-nil, is called before
// each wait with the 1-based number of the attempt that failed.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled
// while waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, onRetry func(attempt int, err error), fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !errors.IsTransient(err) {
			return err
		}

		if i < attempts-1 {
			if onRetry != nil {
				onRetry(i+1, lastErr)
			}
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
				delay *= 2
			}
		}
	}
	return lastErr
}
