package httpclient

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ParseOpenAIHeaders reads the rate-limit headers OpenAI-wire-compatible
// APIs return — this module's own OpenAI provider, and the Perplexity
// Sonar adapter, which mirrors the OpenAI chat-completions shape.
func ParseOpenAIHeaders(headers http.Header) RateLimitInfo {
	var info RateLimitInfo

	if v := headers.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	for _, h := range []string{"x-ratelimit-reset-tokens", "x-ratelimit-reset-requests"} {
		if v := headers.Get(h); v != "" {
			if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
				info.ResetTime = unix
				break
			}
		}
	}

	if v := headers.Get("x-ratelimit-remaining-requests"); v != "" {
		_, _ = fmt.Sscanf(v, "%d", &info.RequestsRemaining)
	}
	if v := headers.Get("x-ratelimit-remaining-tokens"); v != "" {
		_, _ = fmt.Sscanf(v, "%d", &info.TokensRemaining)
	}

	return info
}
