// Package httpds implements the "http" source kind: datasets fetched over
// HTTP GET with exponential backoff on transient failures.
//
// The client retries network errors, 429 and 5xx responses. Backoff waits
// respect context cancellation, and a custom RoundTripper plus an injectable
// sleep keep tests fast and deterministic.
package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"synthpipe/internal/config"
	"synthpipe/internal/datasource"
)

func init() {
	datasource.Register("http", func(cfg config.Source) (datasource.Source, error) {
		if cfg.HTTP.URL == "" {
			return nil, fmt.Errorf("http source: url is empty")
		}
		return New(cfg.HTTP.URL, ClientConfig{}), nil
	})
}

// ClientConfig tunes the retry behavior. Zero values get defaults:
// Timeout 30s, MaxRetries 3, InitialBackoff 200ms, MaxBackoff 5s.
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Transport overrides the http.Client transport, mainly for tests.
	Transport http.RoundTripper
}

// Remote fetches one URL and exposes it as a datasource.Source.
type Remote struct {
	url            string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	sleep func(time.Duration)
}

// New constructs a Remote for url, applying defaults for zero config values.
func New(url string, cfg ClientConfig) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &Remote{
		url: url,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sleep:          time.Sleep,
	}
}

// Open issues a GET for the configured URL, retrying transient failures.
// A successful response's body is returned for streaming; the caller closes
// it. A 2xx status is required; other final statuses are errors.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	attempts := r.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}

		resp, err := r.httpClient.Do(req)
		switch {
		case err != nil:
			// Transport-level failure, retryable.
			lastErr = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp.Body, nil
		case retryableStatus(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("httpds: retryable status %d from %s", resp.StatusCode, r.url)
		default:
			_ = resp.Body.Close()
			return nil, fmt.Errorf("httpds: status %d from %s", resp.StatusCode, r.url)
		}

		if attempt+1 >= attempts {
			return nil, lastErr
		}
		if err := r.wait(ctx, backoffDuration(r.initialBackoff, attempt, r.maxBackoff)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// retryableStatus reports whether a status should trigger a retry. 5xx and
// 429 are transient; everything else is final.
func retryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration computes initial * 2^attempt clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// wait sleeps for d via the injected sleep, aborting if ctx is canceled.
func (r *Remote) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	done := make(chan struct{})
	go func() {
		r.sleep(d)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
