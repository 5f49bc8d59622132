// Package httpclient wraps net/http with the retry/backoff/rate-limit
// handling every outbound call in this module needs: the Sonar and Exa
// search adapters and the OpenAI-compatible LLM provider all hit
// third-party APIs that rate-limit aggressively and occasionally blip
// with a 5xx, and none of them should have to reimplement backoff.
package httpclient

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client wraps http.Client, replaying the request body (if any) across
// retries and classifying each non-2xx response through a pluggable
// RetryStrategy before deciding whether to try again.
type Client struct {
	inner        *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	headerParser HeaderParser
	classify     StrategyFunc
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client. If a TLS transport was
// already staged by WithTLSConfig, it carries over onto client's
// transport so option order doesn't matter.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if c.inner != nil && c.inner.Transport != nil {
			if existing, ok := c.inner.Transport.(*http.Transport); ok && existing.TLSClientConfig != nil {
				if client.Transport == nil {
					client.Transport = &http.Transport{TLSClientConfig: &tls.Config{}}
				}
				if next, ok := client.Transport.(*http.Transport); ok {
					if next.TLSClientConfig == nil {
						next.TLSClientConfig = &tls.Config{}
					}
					next.TLSClientConfig.RootCAs = existing.TLSClientConfig.RootCAs
					next.TLSClientConfig.InsecureSkipVerify = existing.TLSClientConfig.InsecureSkipVerify
				}
			}
		}
		c.inner = client
	}
}

// WithMaxRetries bounds how many times Do retries a classified-retryable
// response before giving up.
func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxRetries = max }
}

// WithBaseDelay sets the starting delay the exponential-backoff branch of
// calculateDelay scales from.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) { c.baseDelay = delay }
}

// WithMaxDelay caps any single computed retry delay.
func WithMaxDelay(delay time.Duration) Option {
	return func(c *Client) { c.maxDelay = delay }
}

// WithHeaderParser supplies a vendor-specific RateLimitInfo reader, e.g.
// ParseOpenAIHeaders for OpenAI-wire-compatible APIs.
func WithHeaderParser(parser HeaderParser) Option {
	return func(c *Client) { c.headerParser = parser }
}

// WithRetryStrategy overrides the default status-code classification.
func WithRetryStrategy(fn StrategyFunc) Option {
	return func(c *Client) { c.classify = fn }
}

// New builds a Client with sane defaults (5 retries, 2s base delay, 60s
// cap, 120s request timeout) overridden by opts in order.
func New(opts ...Option) *Client {
	c := &Client{
		inner:      &http.Client{Timeout: 120 * time.Second},
		maxRetries: 5,
		baseDelay:  2 * time.Second,
		maxDelay:   60 * time.Second,
		classify:   DefaultStrategy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes req, retrying classified-retryable responses with backoff.
// A request body is buffered up front so it can be replayed on every
// attempt.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffering request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, strategy, rateInfo, err := c.attemptRequest(req)
		if strategy == NoRetry || err == nil {
			return resp, err
		}

		if attempt >= c.maxRetries {
			return resp, &RetryableError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("giving up after %d retries", c.maxRetries),
				RetryAfter: c.calculateDelay(strategy, attempt, rateInfo),
				Err:        err,
			}
		}

		delay := c.calculateDelay(strategy, attempt, rateInfo)
		if delay <= 0 {
			return resp, err
		}
		c.logRetry(strategy, delay, attempt, resp)
		time.Sleep(delay)
	}

	return nil, &RetryableError{
		Message:    fmt.Sprintf("exhausted %d attempts", c.maxRetries+1),
		RetryAfter: c.baseDelay * 2,
		Err:        fmt.Errorf("retry loop exited without a terminal response"),
	}
}

func (c *Client) attemptRequest(req *http.Request) (*http.Response, RetryStrategy, RateLimitInfo, error) {
	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, NoRetry, RateLimitInfo{}, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, NoRetry, RateLimitInfo{}, nil
	}

	var info RateLimitInfo
	if c.headerParser != nil {
		info = c.headerParser(resp.Header)
	}
	return resp, c.classify(resp.StatusCode), info, fmt.Errorf("HTTP %d", resp.StatusCode)
}

func (c *Client) logRetry(strategy RetryStrategy, delay time.Duration, attempt int, resp *http.Response) {
	statusCode := 0
	var detail string
	if resp != nil {
		statusCode = resp.StatusCode
		detail = extractErrorDetail(resp)
	}

	switch strategy {
	case SmartRetry:
		slog.Info("rate limited, backing off",
			"status", statusCode, "delay", delay, "attempt", attempt+1, "max", c.maxRetries, "detail", detail)
	case ConservativeRetry:
		slog.Warn("upstream error, retrying",
			"status", statusCode, "delay", delay, "attempt", attempt+1, "max", c.maxRetries, "detail", detail)
	}
}

// extractErrorDetail pulls a human-readable message out of a failed
// response body, preferring a JSON {"error":{"message":...}} shape (what
// OpenAI-wire APIs return) and falling back to a truncated raw body.
func extractErrorDetail(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return ""
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var wireErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireErr) == nil && wireErr.Error.Message != "" {
		return wireErr.Error.Message
	}

	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
