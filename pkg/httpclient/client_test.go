package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	if c.maxRetries != 5 {
		t.Errorf("maxRetries = %d, want 5", c.maxRetries)
	}
	if c.baseDelay != 2*time.Second {
		t.Errorf("baseDelay = %v, want 2s", c.baseDelay)
	}
	if c.inner.Timeout != 120*time.Second {
		t.Errorf("timeout = %v, want 120s", c.inner.Timeout)
	}
	if c.classify == nil {
		t.Error("expected a default classify func")
	}
}

func TestNewOptionsApply(t *testing.T) {
	c := New(
		WithMaxRetries(2),
		WithBaseDelay(1*time.Second),
		WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		WithHeaderParser(func(http.Header) RateLimitInfo { return RateLimitInfo{RetryAfter: 10 * time.Second} }),
		WithRetryStrategy(func(int) RetryStrategy { return SmartRetry }),
	)
	if c.maxRetries != 2 {
		t.Errorf("maxRetries = %d, want 2", c.maxRetries)
	}
	if c.baseDelay != 1*time.Second {
		t.Errorf("baseDelay = %v, want 1s", c.baseDelay)
	}
	if c.inner.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", c.inner.Timeout)
	}
	if info := c.headerParser(http.Header{}); info.RetryAfter != 10*time.Second {
		t.Errorf("headerParser RetryAfter = %v, want 10s", info.RetryAfter)
	}
	if strategy := c.classify(500); strategy != SmartRetry {
		t.Errorf("classify(500) = %v, want SmartRetry", strategy)
	}
}

func TestDefaultStrategy(t *testing.T) {
	tests := []struct {
		status   int
		expected RetryStrategy
	}{
		{http.StatusTooManyRequests, SmartRetry},
		{http.StatusServiceUnavailable, SmartRetry},
		{http.StatusRequestTimeout, ConservativeRetry},
		{http.StatusInternalServerError, ConservativeRetry},
		{http.StatusBadGateway, ConservativeRetry},
		{http.StatusGatewayTimeout, ConservativeRetry},
		{http.StatusOK, NoRetry},
		{http.StatusNotFound, NoRetry},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
	}
	for _, tt := range tests {
		if got := DefaultStrategy(tt.status); got != tt.expected {
			t.Errorf("DefaultStrategy(%d) = %v, want %v", tt.status, got, tt.expected)
		}
	}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := New(WithHTTPClient(srv.Client())).Do(mustRequest(srv.URL))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDoNetworkErrorPropagates(t *testing.T) {
	c := New(WithHTTPClient(&http.Client{Timeout: 1 * time.Millisecond}))
	resp, err := c.Do(mustRequest("http://127.0.0.1:1"))
	if err == nil {
		t.Error("expected a network error")
	}
	if resp != nil {
		t.Error("expected a nil response on network error")
	}
}

func TestDoRetriesTransientServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithMaxRetries(3), WithBaseDelay(5*time.Millisecond))
	resp, err := c.Do(mustRequest(srv.URL))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithMaxRetries(2), WithBaseDelay(5*time.Millisecond))
	resp, err := c.Do(mustRequest(srv.URL))
	if err == nil {
		t.Fatal("expected a RetryableError")
	}
	retryErr, ok := err.(*RetryableError)
	if !ok {
		t.Fatalf("error type = %T, want *RetryableError", err)
	}
	if resp == nil || retryErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want %d", retryErr.StatusCode, http.StatusInternalServerError)
	}
	// ConservativeRetry stops after 2 attempts regardless of maxRetries.
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 conservative retries)", attempts)
	}
}

func TestDoHonorsRetryAfterHeader(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithMaxRetries(3), WithHeaderParser(ParseOpenAIHeaders))
	start := time.Now()
	resp, err := c.Do(mustRequest(srv.URL))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if elapsed < 1*time.Second {
		t.Errorf("elapsed = %v, want >= 1s (Retry-After honored)", elapsed)
	}
}

func TestAttemptRequestClassifies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
		wantStr RetryStrategy
	}{
		{"success", http.StatusOK, false, NoRetry},
		{"rate_limited", http.StatusTooManyRequests, true, SmartRetry},
		{"server_error", http.StatusInternalServerError, true, ConservativeRetry},
		{"bad_request", http.StatusBadRequest, true, NoRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(WithHTTPClient(srv.Client()))
			resp, strategy, info, err := c.attemptRequest(mustRequest(srv.URL))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if strategy != tt.wantStr {
				t.Errorf("strategy = %v, want %v", strategy, tt.wantStr)
			}
			if info.RetryAfter != 0 || info.ResetTime != 0 {
				t.Errorf("info should be empty without a header parser, got %+v", info)
			}
		})
	}
}

func TestCalculateDelay(t *testing.T) {
	c := New(WithBaseDelay(1 * time.Second))

	if d := c.calculateDelay(NoRetry, 0, RateLimitInfo{}); d != 0 {
		t.Errorf("NoRetry delay = %v, want 0", d)
	}
	if d := c.calculateDelay(SmartRetry, 0, RateLimitInfo{RetryAfter: 5 * time.Second}); d != 5*time.Second {
		t.Errorf("SmartRetry with RetryAfter = %v, want 5s", d)
	}
	if d := c.calculateDelay(SmartRetry, 0, RateLimitInfo{ResetTime: time.Now().Add(3 * time.Second).Unix()}); d < 2*time.Second || d > 4*time.Second {
		t.Errorf("SmartRetry with ResetTime = %v, want ~3s", d)
	}
	if d := c.calculateDelay(ConservativeRetry, 0, RateLimitInfo{}); d != 2*time.Second {
		t.Errorf("ConservativeRetry attempt 0 = %v, want 2s", d)
	}
	if d := c.calculateDelay(ConservativeRetry, 2, RateLimitInfo{}); d != 0 {
		t.Errorf("ConservativeRetry attempt 2 = %v, want 0 (stopped)", d)
	}
}

func mustRequest(url string) *http.Request {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		panic(err)
	}
	return req
}
