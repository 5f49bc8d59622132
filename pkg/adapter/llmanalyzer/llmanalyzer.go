// Package llmanalyzer wraps an llms.LLMProvider as a Caller adapter: the
// finalize phase calls it to synthesize a briefing from the research
// phase's accumulated evidence, and the result comes back wrapped as a
// single sentinel evidence.Evidence record so it flows through the same
// save_as/citation machinery as any search result.
package llmanalyzer

import (
	"context"
	"fmt"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/llms"
)

const systemPrompt = "You are a research analyst that provides clear, structured analysis."

type Adapter struct {
	provider llms.LLMProvider
}

func New(provider llms.LLMProvider) *Adapter {
	return &Adapter{provider: provider}
}

func (a *Adapter) Name() string { return "llm_analyzer" }

func (a *Adapter) Capabilities() []string { return []string{adapter.CapCall} }

// Call reads inputs["prompt"] and returns a single evidence.Evidence
// wrapping the model's text under evidence.SentinelLLMAnalysis. A
// provider error is returned, not swallowed into an "Error generating
// briefing" evidence item — a synthesis failure must fail the step.
func (a *Adapter) Call(ctx context.Context, inputs adapter.Inputs) (adapter.EvidenceResult, error) {
	prompt, _ := inputs["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("llm_analyzer: call requires a non-empty \"prompt\" input")
	}

	messages := []llms.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}
	text, _, _, _, err := a.provider.Generate(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("llm_analyzer: generation failed: %w", err)
	}

	return []evidence.Evidence{{
		URL:     evidence.SentinelLLMAnalysis,
		Title:   "Synthesized Briefing",
		Snippet: text,
		Tool:    a.Name(),
	}}, nil
}
