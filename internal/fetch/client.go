// Package fetch performs upstream HTTP requests with per-attempt timeouts,
// exponential backoff on server errors, and an extended wait for rate-limit
// responses.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/region-data-service/internal/observability"
)

// RateLimitWait is the fixed pause after a 429 when SpecialRetryFor429 is set.
const RateLimitWait = 30 * time.Second

// Default retry policy values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 2 * time.Second
)

// RetryPolicy bounds a single logical request.
type RetryPolicy struct {
	Timeout            time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	SpecialRetryFor429 bool
}

// DefaultRetryPolicy returns the 10s / 2 retries / 2s base delay policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// Request describes one logical upstream call.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
	Policy  RetryPolicy
}

// Response is a fully read upstream response, detached from the attempt's
// context.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError is the failure recorded for a retryable HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Client executes Requests. It holds no per-request state and is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a fetch client. Pass a nil clock to use real time.
func NewClient(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		httpClient: &http.Client{},
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch runs req until it gets a response below 500, or until
// MaxRetries+1 attempts have failed. A 429 with SpecialRetryFor429 set waits
// RateLimitWait and uses up one retry; server errors and transport failures
// back off RetryDelay * 2^attempt.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	policy := req.Policy.normalized()

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		final := attempt == policy.MaxRetries

		resp, err := c.attempt(ctx, req, policy.Timeout)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetch %s: %w", req.URL, ctx.Err())
			}
			c.metrics.FetchAttempts.WithLabelValues("network_error").Inc()
			lastErr = err

		case resp.StatusCode == http.StatusTooManyRequests && policy.SpecialRetryFor429 && !final:
			c.metrics.FetchAttempts.WithLabelValues("rate_limited").Inc()
			c.logger.Warn("upstream rate limited, waiting",
				"url", req.URL, "attempt", attempt+1, "wait", RateLimitWait)
			if !c.sleep(ctx, RateLimitWait) {
				return nil, fmt.Errorf("fetch %s: %w", req.URL, ctx.Err())
			}
			continue

		case resp.StatusCode < http.StatusInternalServerError:
			outcome := "success"
			if resp.StatusCode >= http.StatusBadRequest {
				outcome = "client_error"
			}
			c.metrics.FetchAttempts.WithLabelValues(outcome).Inc()
			return resp, nil

		default:
			c.metrics.FetchAttempts.WithLabelValues("server_error").Inc()
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: truncate(resp.Body, 200)}
		}

		if final {
			break
		}

		delay := policy.RetryDelay * time.Duration(1<<attempt)
		c.logger.Warn("upstream attempt failed, retrying",
			"url", req.URL, "attempt", attempt+1, "delay", delay, "error", lastErr)
		if !c.sleep(ctx, delay) {
			return nil, fmt.Errorf("fetch %s: %w", req.URL, ctx.Err())
		}
	}

	return nil, fmt.Errorf("fetch %s: %d attempts failed: %w", req.URL, policy.MaxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) (*Response, error) {
	start := time.Now()
	defer func() { c.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// sleep waits d on the client clock. Returns false if ctx ends first.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
