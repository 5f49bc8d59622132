// Package classifier maps a free-text research request to a strategy
// invocation descriptor by calling an LLM. There is no heuristic
// fallback: a deterministic keyword-based classifier would silently
// diverge from what the configured model actually does in production, so
// the absence of a usable LLM transport is a hard, request-fatal error
// rather than a degraded mode.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/researchd/researchd/pkg/llms"
	"github.com/researchd/researchd/pkg/strategy"
)

// Stage is the global_settings.llm_defaults / overrides key this
// package's calls are billed and tuned under.
const Stage = "scope_classifier"

// IndexSource is the subset of strategy.Cache the classifier depends on.
// Strategy.Cache satisfies this directly; tests can substitute a stub.
type IndexSource interface {
	StrategyIndex() []strategy.StrategyIndexEntry
	SelectStrategy(category, timeWindow, depth string) (string, bool)
}

// Result is the classifier's output: everything the executor needs to
// load a strategy and seed its initial variables.
type Result struct {
	Category     string
	TimeWindow   string
	Depth        string
	StrategySlug string
	Tasks        []string
	Variables    map[string]any
}

// Classifier wraps an LLM provider configured for the scope_classifier
// stage. The provider is an explicit constructor dependency, never a
// package-level singleton, so callers (and tests) can substitute a
// deterministic stub.
type Classifier struct {
	Provider llms.StructuredOutputProvider
}

func New(provider llms.StructuredOutputProvider) *Classifier {
	return &Classifier{Provider: provider}
}

// rawClassification is the strict JSON shape requested of the model.
type rawClassification struct {
	Category     string         `json:"category"`
	TimeWindow   string         `json:"time_window"`
	Depth        string         `json:"depth"`
	StrategySlug string         `json:"strategy_slug"`
	Tasks        []string       `json:"tasks"`
	Variables    map[string]any `json:"variables"`
}

// Classify resolves request against index using the LLM configured on c,
// tuned by settings' scope_classifier stage defaults/overrides.
func (c *Classifier) Classify(ctx context.Context, request string, index IndexSource, settings strategy.GlobalSettings) (Result, error) {
	if c.Provider == nil {
		return Result{}, &ErrLLMClassificationFailed{Err: fmt.Errorf("no LLM provider configured for %s", Stage)}
	}

	entries := index.StrategyIndex()
	prompt := buildPrompt(request, entries, settings.Prompts["scope_classifier"])

	raw, err := c.callModel(ctx, prompt, false)
	if err != nil {
		raw, err = c.callModel(ctx, prompt, true)
		if err != nil {
			return Result{}, &ErrLLMClassificationFailed{Err: err}
		}
	}

	entry, err := resolveEntry(raw, entries, index)
	if err != nil {
		return Result{}, err
	}

	variables := raw.Variables
	if variables == nil {
		variables = make(map[string]any)
	}
	tasks := raw.Tasks
	if len(tasks) == 0 {
		tasks = []string{strings.TrimSpace(request)}
	}

	return Result{
		Category:     entry.Category,
		TimeWindow:   entry.TimeWindow,
		Depth:        entry.Depth,
		StrategySlug: entry.Slug,
		Tasks:        tasks,
		Variables:    variables,
	}, nil
}

// callModel issues one classification request. reinforce requests a
// second, more insistent "JSON only" instruction, used on retry after a
// parse failure.
func (c *Classifier) callModel(ctx context.Context, prompt string, reinforce bool) (rawClassification, error) {
	messages := []llms.Message{{Role: "system", Content: systemPrompt}, {Role: "user", Content: prompt}}
	if reinforce {
		messages = append(messages, llms.Message{
			Role:    "user",
			Content: "Your previous response was not valid JSON. Respond with JSON only, matching the schema exactly, and nothing else.",
		})
	}

	text, _, _, _, err := c.Provider.GenerateStructured(ctx, messages, nil, &llms.StructuredOutputConfig{
		Format: "json",
		Schema: classificationSchema,
	})
	if err != nil {
		return rawClassification{}, fmt.Errorf("calling scope classifier model: %w", err)
	}

	var parsed rawClassification
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return rawClassification{}, fmt.Errorf("parsing classifier response as JSON: %w", err)
	}
	return parsed, nil
}

// resolveEntry validates raw against the index: the claimed slug must
// exist and be active, and any of category/time_window/depth the model
// returned alongside it must equal that entry's own value. If no slug was
// returned, it falls back to index.SelectStrategy on the (category,
// time_window, depth) tuple, same as a strategy-index lookup would.
// category/time_window/depth in the result always come from the resolved
// entry's own metadata.
func resolveEntry(raw rawClassification, entries []strategy.StrategyIndexEntry, index IndexSource) (strategy.StrategyIndexEntry, error) {
	if raw.StrategySlug != "" {
		for _, e := range entries {
			if e.Slug == raw.StrategySlug {
				if !e.Active {
					return strategy.StrategyIndexEntry{}, &ErrUnscopedRequest{Reason: fmt.Sprintf("strategy %q is not active", raw.StrategySlug)}
				}
				if (raw.Category != "" && raw.Category != e.Category) ||
					(raw.TimeWindow != "" && raw.TimeWindow != e.TimeWindow) ||
					(raw.Depth != "" && raw.Depth != e.Depth) {
					return strategy.StrategyIndexEntry{}, &ErrUnscopedRequest{Reason: fmt.Sprintf("(%s, %s, %s) does not match strategy %q", raw.Category, raw.TimeWindow, raw.Depth, raw.StrategySlug)}
				}
				return e, nil
			}
		}
		return strategy.StrategyIndexEntry{}, &ErrUnscopedRequest{Reason: fmt.Sprintf("strategy %q does not exist", raw.StrategySlug)}
	}

	if raw.Category == "" || raw.TimeWindow == "" || raw.Depth == "" {
		return strategy.StrategyIndexEntry{}, &ErrUnscopedRequest{Reason: "classifier returned neither a strategy_slug nor a complete (category, time_window, depth) tuple"}
	}
	slug, ok := index.SelectStrategy(raw.Category, raw.TimeWindow, raw.Depth)
	if !ok {
		return strategy.StrategyIndexEntry{}, &ErrUnscopedRequest{Reason: fmt.Sprintf("no active strategy matches (%s, %s, %s)", raw.Category, raw.TimeWindow, raw.Depth)}
	}
	for _, e := range entries {
		if e.Slug == slug {
			return e, nil
		}
	}
	return strategy.StrategyIndexEntry{}, &ErrUnscopedRequest{Reason: fmt.Sprintf("selected strategy %q missing from index", slug)}
}
