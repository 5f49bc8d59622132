package llms

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens returns a best-effort token count for text under model's
// encoding, used as a pre-flight size check before a chat completions
// call (the API's own usage.total_tokens in the response is exact but
// only known after the call). An unrecognized model is estimated with
// the cl100k_base encoding; only if that encoding cannot be loaded does
// it fall back to a character-count heuristic (len(text)/4, the commonly
// cited rule of thumb for English prose), rather than failing the call
// over an estimate.
func EstimateTokens(model, text string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		slog.Debug("token estimate fallback to heuristic", "model", model, "err", err)
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
