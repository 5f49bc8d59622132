package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/researchd/researchd/pkg/httpclient"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to an OpenAI-compatible /chat/completions endpoint.
// It is the sole concrete LLMProvider shipped in this module: the scope
// classifier, the fill/summarize/qc stages, and the llm_analyzer adapter
// all address a model purely through the LLMProvider interface, so adding
// another backend later means implementing that interface, not touching
// callers.
type OpenAIProvider struct {
	cfg        *ProviderConfig
	httpClient *httpclient.Client
}

func NewOpenAIProvider(cfg *ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	resolved := cfg.withDefaults()

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: resolved.Timeout}),
		httpclient.WithMaxRetries(resolved.MaxRetries),
		httpclient.WithBaseDelay(resolved.RetryDelay),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)
	return &OpenAIProvider{cfg: resolved, httpClient: client}, nil
}

type chatMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []chatToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Tools          []chatToolSpec  `json:"tools,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
}

type chatToolSpec struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string `json:"name"`
	Schema any    `json:"schema"`
	Strict bool   `json:"strict,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func toChatMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		cm := chatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			ct := chatToolCall{ID: tc.ID, Type: "function"}
			ct.Function.Name = tc.Name
			ct.Function.Arguments = tc.RawArgs
			cm.ToolCalls = append(cm.ToolCalls, ct)
		}
		out = append(out, cm)
	}
	return out
}

func toChatTools(tools []ToolDefinition) []chatToolSpec {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatToolSpec, 0, len(tools))
	for _, t := range tools {
		spec := chatToolSpec{Type: "function"}
		spec.Function.Name = t.Name
		spec.Function.Description = t.Description
		spec.Function.Parameters = t.Parameters
		out = append(out, spec)
	}
	return out
}

// Generate performs a single non-streaming chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, *ThinkingBlock, error) {
	return p.complete(ctx, messages, tools, nil)
}

// GenerateStructured additionally constrains the response to a JSON
// object matching config.Schema, via the chat completions
// response_format=json_schema mode.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, messages []Message, tools []ToolDefinition, config *StructuredOutputConfig) (string, []ToolCall, int, *ThinkingBlock, error) {
	if config == nil || config.Format != "json" {
		return p.complete(ctx, messages, tools, nil)
	}
	rf := &responseFormat{
		Type: "json_schema",
		JSONSchema: &jsonSchema{
			Name:   "structured_output",
			Schema: config.Schema,
			Strict: true,
		},
	}
	return p.complete(ctx, messages, tools, rf)
}

func (p *OpenAIProvider) SupportsStructuredOutput() bool { return true }

// estimatePromptTokens joins every message's content and runs it through
// EstimateTokens, giving a single pre-flight count for the whole request
// body rather than one estimate per message.
func estimatePromptTokens(model string, messages []Message) int {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return EstimateTokens(model, b.String())
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []Message, tools []ToolDefinition, rf *responseFormat) (content string, toolCalls []ToolCall, tokens int, thinking *ThinkingBlock, err error) {
	if estimated := estimatePromptTokens(p.cfg.Model, messages); estimated > p.cfg.MaxTokens*4 {
		slog.Warn("prompt token estimate far exceeds configured max_tokens",
			"model", p.cfg.Model, "estimated_prompt_tokens", estimated, "max_tokens", p.cfg.MaxTokens)
	}

	ctx, span := startCompletionSpan(ctx, "openai", p.cfg.Model, false)
	defer func() { endCompletionSpan(span, tokens, err) }()

	reqBody := chatCompletionRequest{
		Model:          p.cfg.Model,
		Messages:       toChatMessages(messages),
		Temperature:    p.cfg.Temperature,
		MaxTokens:      p.cfg.MaxTokens,
		Tools:          toChatTools(tools),
		ResponseFormat: rf,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, 0, nil, fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", nil, 0, nil, fmt.Errorf("openai: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, 0, nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, 0, nil, fmt.Errorf("openai: reading response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", nil, 0, nil, fmt.Errorf("openai: decoding response: %w", err)
	}
	if parsed.Error != nil {
		return "", nil, 0, nil, fmt.Errorf("openai: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, 0, nil, fmt.Errorf("openai: empty choices in response")
	}

	choice := parsed.Choices[0].Message
	toolCalls = make([]ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		toolCalls = append(toolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
			RawArgs:   tc.Function.Arguments,
		})
	}

	return choice.Content, toolCalls, parsed.Usage.TotalTokens, nil, nil
}

// GenerateStreaming is not implemented: every caller in this module
// (scope classifier, fill/summarize/qc stages, llm_analyzer adapter) is a
// single-shot request inside a larger batch pipeline, never a
// token-by-token UI stream.
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	return nil, fmt.Errorf("openai: streaming is not supported in this deployment")
}

func (p *OpenAIProvider) GetModelName() string    { return p.cfg.Model }
func (p *OpenAIProvider) GetMaxTokens() int       { return p.cfg.MaxTokens }
func (p *OpenAIProvider) GetTemperature() float64 { return p.cfg.Temperature }
func (p *OpenAIProvider) Close() error            { return nil }
