package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseOpenAIHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    RateLimitInfo
	}{
		{
			name: "no_headers",
			want: RateLimitInfo{},
		},
		{
			name:    "retry_after_seconds",
			headers: map[string]string{"Retry-After": "30"},
			want:    RateLimitInfo{RetryAfter: 30 * time.Second},
		},
		{
			name:    "retry_after_non_numeric_is_ignored",
			headers: map[string]string{"Retry-After": "soon"},
			want:    RateLimitInfo{},
		},
		{
			name:    "token_reset_takes_priority_over_request_reset",
			headers: map[string]string{"x-ratelimit-reset-requests": "1700000000", "x-ratelimit-reset-tokens": "1700000100"},
			want:    RateLimitInfo{ResetTime: 1700000100},
		},
		{
			name:    "request_reset_used_when_token_reset_absent",
			headers: map[string]string{"x-ratelimit-reset-requests": "1700000000"},
			want:    RateLimitInfo{ResetTime: 1700000000},
		},
		{
			name:    "remaining_counters",
			headers: map[string]string{"x-ratelimit-remaining-requests": "42", "x-ratelimit-remaining-tokens": "9001"},
			want:    RateLimitInfo{RequestsRemaining: 42, TokensRemaining: 9001},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			got := ParseOpenAIHeaders(h)
			if got != tt.want {
				t.Errorf("ParseOpenAIHeaders(%v) = %+v, want %+v", tt.headers, got, tt.want)
			}
		})
	}
}
