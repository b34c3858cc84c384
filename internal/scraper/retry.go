package scraper

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
)

// RetryWithDelay calls fn up to attempts times, sleeping a uniform
// random delay in [minDelay, maxDelay] between tries. Only transport
// failures and 5xx responses are retried; any other error surfaces
// immediately.
func RetryWithDelay(ctx context.Context, attempts int, minDelay, maxDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !domerrors.IsRetryable(err) {
			return err
		}

		// No delay after the final attempt
		if attempt == attempts-1 {
			break
		}

		if err := Sleep(ctx, randomDelay(minDelay, maxDelay)); err != nil {
			return err
		}
	}

	return lastErr
}

// randomDelay returns a uniform random duration in [minDelay, maxDelay].
func randomDelay(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	span := big.NewInt(int64(maxDelay-minDelay) + 1)
	// crypto/rand.Int is uniform on [0, span) and needs no seeding
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return minDelay
	}
	return minDelay + time.Duration(n.Int64())
}

// Sleep waits for the specified duration, respecting context cancellation
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
