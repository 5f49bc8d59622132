package executor

import (
	"context"
	"fmt"

	"github.com/researchd/researchd/pkg/llms"
	"github.com/researchd/researchd/pkg/strategy"
	"github.com/researchd/researchd/pkg/template"
)

// fillStage is the global_settings.llm_defaults / overrides key llm_fill
// resolutions are billed and tuned under.
const fillStage = "fill"

// llmFill asks the configured LLM to produce the value for a single
// llm_fill key, using the fill-stage prompt template (rendered with the
// current variables) as the instruction. The response is used verbatim
// as the input value — llm_fill targets are free-text inputs (a search
// query, a prompt fragment), not structured data, so no JSON parsing is
// attempted here the way the scope classifier parses a schema.
func (e *Executor) llmFill(ctx context.Context, step strategy.ToolStep, key string, vars map[string]any) (string, error) {
	if e.LLM == nil {
		return "", fmt.Errorf("llm_fill requested for %q.%s but no LLM provider is configured", step.Use, key)
	}

	promptTemplate := e.Strategies.GlobalSettings().Prompts[fillStage]
	if promptTemplate == "" {
		promptTemplate = fmt.Sprintf("Produce a value for the %q parameter of the %q tool step, given the current research context.", key, step.Use)
	}
	prompt := renderFillPrompt(promptTemplate, key, vars)

	messages := []llms.Message{
		{Role: "system", Content: "You fill in a single missing tool parameter. Respond with the value only, no explanation, no quotes."},
		{Role: "user", Content: prompt},
	}

	text, _, _, _, err := e.LLM.Generate(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("llm_fill(%s): %w", key, err)
	}
	return text, nil
}

func renderFillPrompt(promptTemplate, key string, vars map[string]any) string {
	ctx := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		ctx[k] = v
	}
	ctx["field"] = key
	return template.RenderString(promptTemplate, ctx)
}
