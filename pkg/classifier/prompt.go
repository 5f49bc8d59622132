package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/researchd/researchd/pkg/strategy"
)

const systemPrompt = `You are the scope classifier for a research briefing system. Given a user's free-text request and a catalog of available research strategies, determine which strategy applies and extract the variables it needs. Respond with JSON only, matching the required schema exactly.`

// indexSummary is the shape of the strategy index surfaced to the model:
// everything it needs to pick a slug, nothing it would need to load the
// full strategy document for.
type indexSummary struct {
	Slug              string   `json:"slug"`
	Category          string   `json:"category"`
	TimeWindow        string   `json:"time_window"`
	Depth             string   `json:"depth"`
	Title             string   `json:"title,omitempty"`
	Description       string   `json:"description,omitempty"`
	RequiredVariables []string `json:"required_variables,omitempty"`
}

func buildPrompt(request string, entries []strategy.StrategyIndexEntry, customPrompt string) string {
	summaries := make([]indexSummary, 0, len(entries))
	for _, e := range entries {
		if !e.Active {
			continue
		}
		vars := make([]string, 0, len(e.RequiredVariables))
		for _, v := range e.RequiredVariables {
			vars = append(vars, v.Name)
		}
		summaries = append(summaries, indexSummary{
			Slug:              e.Slug,
			Category:          e.Category,
			TimeWindow:        e.TimeWindow,
			Depth:             e.Depth,
			Title:             e.Title,
			Description:       e.Description,
			RequiredVariables: vars,
		})
	}
	indexJSON, _ := json.MarshalIndent(summaries, "", "  ")

	var b strings.Builder
	if customPrompt != "" {
		b.WriteString(customPrompt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Available strategies:\n%s\n\n", indexJSON)
	fmt.Fprintf(&b, "User request:\n%s\n\n", request)
	b.WriteString("Pick the single best-matching strategy_slug from the list above. Fill variables with every value named in that strategy's required_variables that you can infer from the request. Split the request into up to five short independent subtasks in tasks.")
	return b.String()
}

// classificationSchema is the JSON Schema handed to the model as its
// structured-output contract.
var classificationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"category":      map[string]any{"type": "string"},
		"time_window":   map[string]any{"type": "string"},
		"depth":         map[string]any{"type": "string"},
		"strategy_slug": map[string]any{"type": "string"},
		"tasks": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"variables": map[string]any{"type": "object"},
	},
	"required":             []string{"category", "time_window", "depth", "strategy_slug", "tasks", "variables"},
	"additionalProperties": false,
}
