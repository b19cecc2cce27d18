package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/retry"
)

// Client is an HTTP client wrapper with retry, rate limiting and logging
// ⭐ SSOT: every outbound HTTP call (macro, mentions, releases) goes through this client
type Client struct {
	httpClient   *http.Client
	logger       *logger.Logger
	policy       retry.Policy
	retryEnabled bool
	limiter      *rate.Limiter
	headers      map[string]string
}

// StatusError is returned for responses the caller cannot use
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether a later attempt may succeed
func (e *StatusError) Temporary() bool {
	return IsRetryableStatus(e.StatusCode)
}

// New creates a new HTTP client from config
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(cfg *config.Config, log *logger.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       log,
		policy:       retry.FromConfig(cfg.Retry),
		retryEnabled: true,
		headers:      map[string]string{},
	}
	c.policy.Retryable = isRetryable
	return c
}

// NewWithTimeout creates a client with custom timeout
func NewWithTimeout(cfg *config.Config, log *logger.Logger, timeout time.Duration) *Client {
	client := New(cfg, log)
	client.httpClient.Timeout = timeout
	return client
}

// WithRetry replaces the retry policy; the status classifier is kept
func (c *Client) WithRetry(p retry.Policy) *Client {
	if p.Retryable == nil {
		p.Retryable = isRetryable
	}
	c.policy = p
	c.retryEnabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryEnabled = false
	return c
}

// WithRateLimit throttles every request through limiter
func (c *Client) WithRateLimit(limiter *rate.Limiter) *Client {
	c.limiter = limiter
	return c
}

// WithHeader sets a header sent with every request
func (c *Client) WithHeader(key, value string) *Client {
	c.headers[key] = value
	return c
}

// Get performs a GET request.
// Non-retryable error statuses (4xx) are returned to the caller untouched.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, "", nil)
}

// PostJSON performs a POST request with JSON body
func (c *Client) PostJSON(ctx context.Context, url string, data interface{}) (*http.Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, "application/json", body)
}

// GetJSON performs a GET and decodes a 2xx JSON body into out
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	startTime := time.Now()
	log := c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
	})
	log.Debug("HTTP request started")

	var resp *http.Response
	attempt := func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait failed: %w", err)
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("failed to create %s request: %w", method, err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if IsRetryableStatus(r.StatusCode) {
			snippet, _ := io.ReadAll(io.LimitReader(r.Body, 512))
			r.Body.Close()
			return &StatusError{StatusCode: r.StatusCode, URL: url, Body: string(snippet)}
		}
		resp = r
		return nil
	}

	var err error
	if c.retryEnabled {
		p := c.policy
		p.OnRetry = func(n int, delay time.Duration, err error) {
			log.WithError(err).WithFields(map[string]interface{}{
				"attempt": n,
				"delay":   delay.String(),
			}).Warn("Retrying HTTP request")
		}
		err = p.Do(ctx, attempt)
	} else {
		err = attempt(ctx)
	}

	duration := time.Since(startTime)
	if err != nil {
		log.WithError(err).WithField("duration", duration.String()).Error("HTTP request failed")
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"status_code": resp.StatusCode,
		"duration":    duration.String(),
	}).Debug("HTTP request completed")

	return resp, nil
}

// IsRetryableStatus checks if a status code should be retried
func IsRetryableStatus(statusCode int) bool {
	// Retry on 5xx server errors and 429 Too Many Requests
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// transport errors (refused, reset, timeout)
	return true
}
