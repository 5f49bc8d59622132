package httpclient

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryableErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *RetryableError
		want string
	}{
		{
			name: "with_retry_after",
			err:  &RetryableError{StatusCode: 429, Message: "rate limited", RetryAfter: 3 * time.Second},
			want: "HTTP 429: rate limited (retry after 3s)",
		},
		{
			name: "without_retry_after",
			err:  &RetryableError{StatusCode: 500, Message: "server error"},
			want: "HTTP 500: server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryableErrorUnwrap(t *testing.T) {
	underlying := fmt.Errorf("boom")
	err := &RetryableError{Err: underlying}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see through to the wrapped error")
	}

	var target *RetryableError
	wrapped := fmt.Errorf("wrapping: %w", err)
	if !errors.As(wrapped, &target) {
		t.Error("errors.As should recover the *RetryableError")
	}
}

func TestRetryableErrorIsRetryable(t *testing.T) {
	err := &RetryableError{StatusCode: 503}
	if !err.IsRetryable() {
		t.Error("IsRetryable() should always be true")
	}
}

func TestRetryableErrorNilUnwrap(t *testing.T) {
	err := &RetryableError{}
	if err.Unwrap() != nil {
		t.Error("Unwrap() of a bare RetryableError should be nil")
	}
}
