// Package scraper fetches pages from the legacy assignment portal:
// Latin-1 body decode, User-Agent rotation, gzip handling and bounded
// retries over transient failures.
package scraper

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corpix/uarand"

	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
	"github.com/univalle-dev/asignacion-go/internal/normalize"
)

// minDocumentBytes is the smallest body the portal serves for a real
// page; anything shorter is its empty answer.
const minDocumentBytes = 100

// RequestRecorder receives the outcome of every portal request,
// retries included in the duration.
type RequestRecorder interface {
	RecordPortalRequest(endpoint, status string, duration float64)
}

// Client is an HTTP client for the assignment portal.
type Client struct {
	httpClient *http.Client
	userAgents []string
	maxRetries int
	delayMin   time.Duration
	delayMax   time.Duration
	recorder   RequestRecorder
}

// SetMetrics attaches a recorder for per-request outcome metrics. Must
// be called before the client is shared across goroutines.
func (c *Client) SetMetrics(rec RequestRecorder) {
	c.recorder = rec
}

// NewClient creates a new portal client.
//
// maxRetries bounds the total attempts per request (3 means one try
// plus two retries at most). delayMin/delayMax bound the uniform random
// pause between attempts.
func NewClient(timeout time.Duration, maxRetries int, delayMin, delayMax time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgents: generateUserAgents(),
		maxRetries: maxRetries,
		delayMin:   delayMin,
		delayMax:   delayMax,
	}
}

// Get fetches url and returns the body decoded from Latin-1 to UTF-8.
// Transport failures and 5xx responses are retried with a uniform
// random delay between attempts; 4xx responses and empty/error pages
// surface immediately.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	var body string

	start := time.Now()
	err := RetryWithDelay(ctx, c.maxRetries, c.delayMin, c.delayMax, func() error {
		text, err := c.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		body = text
		return nil
	})
	if c.recorder != nil {
		c.recorder.RecordPortalRequest(endpointLabel(url), requestStatus(err), time.Since(start).Seconds())
	}
	if err != nil {
		return "", err
	}

	return body, nil
}

// endpointLabel names the portal page a URL points at, keeping the
// metric cardinality at the two pages the portal has.
func endpointLabel(url string) string {
	switch {
	case strings.Contains(url, "vin_docente"):
		return "periods"
	case strings.Contains(url, "vin_inicio"):
		return "document"
	default:
		return "other"
	}
}

func requestStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, domerrors.ErrEmptyOrErrorPage) {
		return "empty_page"
	}
	var httpErr *domerrors.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return "not_found"
	}
	return "error"
}

// fetchOnce performs a single GET attempt.
func (c *Client) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-CO,es;q=0.9,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domerrors.NewTransportError(url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domerrors.NewHTTPError(url, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", domerrors.NewTransportError(url, err)
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", domerrors.NewTransportError(url, err)
	}

	// The portal answers failed lookups with a tiny page or a plain
	// error notice instead of an HTTP error code.
	text := normalize.Latin1(raw)
	if len(raw) < minDocumentBytes || strings.Contains(strings.ToLower(text), "error") {
		return "", fmt.Errorf("fetch %s: %w", url, domerrors.ErrEmptyOrErrorPage)
	}

	return text, nil
}

// Head probes url with a single HEAD request, no retries. Any status
// below 500 counts as reachable.
func (c *Client) Head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.randomUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domerrors.NewTransportError(url, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= 500 {
		return domerrors.NewHTTPError(url, resp.StatusCode)
	}
	return nil
}

// randomUserAgent returns a random user agent string
func (c *Client) randomUserAgent() string {
	if len(c.userAgents) == 0 {
		return uarand.GetRandom()
	}
	return c.userAgents[time.Now().UnixNano()%int64(len(c.userAgents))]
}

// generateUserAgents returns a list of common user agent strings
func generateUserAgents() []string {
	return []string{
		// Chrome on Windows
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",

		// Chrome on macOS
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",

		// Firefox on Windows
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",

		// Firefox on macOS
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",

		// Safari on macOS
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",

		// Edge on Windows
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",

		// Chrome on Linux
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
