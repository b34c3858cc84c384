package sheets

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/api/googleapi"

	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
)

// Retry tuning for the Sheets API. Per-minute quota exhaustion (429)
// clears on its own, so the backoff climbs quickly into tens of seconds.
const (
	maxAttempts  = 4
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second
)

// do runs one RPC with retries and wraps the terminal failure as a
// DependencyError carrying the operation and spreadsheet.
func (c *Client) do(ctx context.Context, op, spreadsheetID string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryableAPIError(lastErr) {
			break
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := backoff(attempt + 1)
		slog.WarnContext(ctx, "Sheets API call failed, retrying",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return domerrors.NewDependencyError(op, spreadsheetID, lastErr)
}

// retryableAPIError reports whether the API may recover on retry: quota
// exhaustion, server faults, and network-level failures.
func retryableAPIError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// backoff returns a full-jitter exponential delay for the given attempt:
// random(0, min(maxDelay, initialDelay * 2^(attempt-1))).
func backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := initialDelay << (attempt - 1)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		return delay / 2
	}
	return time.Duration(n.Int64())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
