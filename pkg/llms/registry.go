package llms

import (
	"context"
	"fmt"

	"github.com/researchd/researchd/pkg/registry"
)

// LLMProvider is the common contract every concrete model backend
// implements: non-streaming generation, streaming generation, and
// identifying metadata. It is expressed entirely over this module's own
// Message/ToolCall types rather than a wire-protocol message, since this
// module has no agent-to-agent transport of its own.
type LLMProvider interface {
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (text string, toolCalls []ToolCall, tokens int, thinking *ThinkingBlock, err error)

	GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)

	GetModelName() string
	GetMaxTokens() int
	GetTemperature() float64

	Close() error
}

// StructuredOutputProvider additionally supports constrained JSON output,
// used by the scope classifier.
type StructuredOutputProvider interface {
	LLMProvider

	GenerateStructured(ctx context.Context, messages []Message, tools []ToolDefinition, config *StructuredOutputConfig) (text string, toolCalls []ToolCall, tokens int, thinking *ThinkingBlock, err error)

	SupportsStructuredOutput() bool
}

// Registry holds configured LLM providers, keyed by a caller-chosen name
// (e.g. "scope_classifier", "summarize") rather than by provider type, so
// a process can run several differently-tuned instances of the same
// backend side by side.
type Registry struct {
	*registry.BaseRegistry[LLMProvider]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[LLMProvider]()}
}

func (r *Registry) RegisterLLM(name string, provider LLMProvider) error {
	if name == "" {
		return fmt.Errorf("LLM name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("LLM provider cannot be nil")
	}
	return r.Register(name, provider)
}

func (r *Registry) GetLLM(name string) (LLMProvider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("LLM provider %q not found", name)
	}
	return provider, nil
}
