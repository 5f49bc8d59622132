// Package sonar adapts the Perplexity Sonar chat-completions API (an
// OpenAI-compatible endpoint that additionally returns web search
// citations) into the pipeline's Caller capability.
package sonar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/httpclient"
)

const defaultBaseURL = "https://api.perplexity.ai"

// directParams are forwarded to the Sonar API verbatim when present in a
// step's rendered inputs; everything else in inputs is ignored rather
// than silently passed through, since Sonar rejects unknown fields.
var directParams = []string{
	"search_mode", "search_domain_filter", "search_recency_filter",
	"return_images", "return_related_questions", "max_tokens",
	"temperature", "top_p", "reasoning_effort",
	"disable_search", "enable_search_classifier",
}

type Adapter struct {
	model      string
	apiKey     string
	httpClient *httpclient.Client
	baseURL    string
}

func New(model, apiKey string) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sonar: API key required")
	}
	if model == "" {
		model = "sonar"
	}
	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		httpclient.WithMaxRetries(2),
		httpclient.WithBaseDelay(time.Second),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)
	return &Adapter{model: model, apiKey: apiKey, httpClient: client, baseURL: defaultBaseURL}, nil
}

func (a *Adapter) Name() string { return "sonar" }

func (a *Adapter) Capabilities() []string { return []string{adapter.CapCall} }

type sonarMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sonarResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	SearchResults []struct {
		URL       string `json:"url"`
		Title     string `json:"title"`
		Publisher string `json:"publisher"`
		Date      string `json:"date"`
		Snippet   string `json:"snippet"`
		Text      string `json:"text"`
	} `json:"search_results"`
	Citations []string `json:"citations"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Call treats inputs["prompt"] (or inputs["query"]) as the user prompt and
// every recognized Sonar parameter in inputs as an API parameter,
// returning normalized evidence: search_results when present (richer
// metadata), otherwise the deprecated bare citations list.
func (a *Adapter) Call(ctx context.Context, inputs adapter.Inputs) (adapter.EvidenceResult, error) {
	prompt, _ := inputs["prompt"].(string)
	if prompt == "" {
		prompt, _ = inputs["query"].(string)
	}
	if prompt == "" {
		return nil, fmt.Errorf("sonar: call requires a non-empty \"prompt\" or \"query\" input")
	}

	messages := []sonarMessage{}
	if sys, ok := inputs["system_prompt"].(string); ok && sys != "" {
		messages = append(messages, sonarMessage{Role: "system", Content: sys})
	}
	messages = append(messages, sonarMessage{Role: "user", Content: prompt})

	body := map[string]any{
		"model":    a.model,
		"messages": messages,
	}
	for _, p := range directParams {
		if v, ok := inputs[p]; ok {
			body[p] = v
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("sonar: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sonar: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sonar: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sonar: reading response: %w", err)
	}
	var parsed sonarResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("sonar: decoding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("sonar: %s", parsed.Error.Message)
	}

	var out []evidence.Evidence
	if len(parsed.SearchResults) > 0 {
		for _, r := range parsed.SearchResults {
			out = append(out, evidence.Evidence{
				URL: r.URL, Title: r.Title, Publisher: r.Publisher,
				Date: r.Date, Snippet: firstNonEmpty(r.Snippet, r.Text), Tool: a.Name(),
			})
		}
		return out, nil
	}

	var snippetFallback string
	if len(parsed.Choices) > 0 {
		content := parsed.Choices[0].Message.Content
		if len(content) > 500 {
			content = content[:500]
		}
		snippetFallback = content
	}
	for i, c := range parsed.Citations {
		snippet := ""
		if i == 0 {
			snippet = snippetFallback
		}
		out = append(out, evidence.Evidence{
			URL: c, Title: fmt.Sprintf("Source %d", i+1), Snippet: snippet, Tool: a.Name(),
		})
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
