package strategy

import "fmt"

// parseToolStep normalizes a single raw tool-chain entry — either the
// legacy {name, params, loop} shape or the extended
// {use, inputs, llm_fill, save_as, foreach, when, phase} shape — into the
// single ToolStep representation. Both shapes may appear in the same
// tool_chain; the parser inspects which fields are present rather than
// relying on an explicit discriminator.
func parseToolStep(raw map[string]any) (ToolStep, error) {
	step := ToolStep{}

	if use, ok := raw["use"].(string); ok && use != "" {
		step.Use = use
	} else if name, ok := raw["name"].(string); ok && name != "" {
		step.Use = name
		step.WasLegacy = true
	} else {
		return ToolStep{}, fmt.Errorf("tool step missing both 'use' and 'name'")
	}

	if inputs, ok := raw["inputs"].(map[string]any); ok {
		step.Inputs = inputs
	} else if params, ok := raw["params"].(map[string]any); ok {
		step.Inputs = params
	}

	if raw, ok := raw["llm_fill"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				step.LLMFill = append(step.LLMFill, s)
			}
		}
	}

	if s, ok := raw["save_as"].(string); ok {
		step.SaveAs = s
	}
	if s, ok := raw["foreach"].(string); ok {
		step.Foreach = s
	}
	if s, ok := raw["when"].(string); ok {
		step.When = s
	}
	if s, ok := raw["phase"].(string); ok {
		step.Phase = s
	}
	if n, ok := asInt(raw["loop"]); ok {
		step.Loop = n
	}

	return step, nil
}

// parseToolChain normalizes an entire tool_chain document fragment.
func parseToolChain(raw []any) ([]ToolStep, error) {
	steps := make([]ToolStep, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tool_chain[%d]: expected object", i)
		}
		step, err := parseToolStep(m)
		if err != nil {
			return nil, fmt.Errorf("tool_chain[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// parseFanOut normalizes the raw fan_out value of a StrategyIndexEntry,
// accepting either a bare string ("none"/"task") or an object
// {mode, var, map_to, limit}. Unrecognized shapes normalize to "none".
func parseFanOut(raw any) FanOut {
	switch v := raw.(type) {
	case string:
		return normalizeFanOutMode(v)
	case map[string]any:
		fo := FanOut{Mode: FanOutNone}
		if mode, ok := v["mode"].(string); ok {
			fo = normalizeFanOutMode(mode)
		}
		if fo.Mode != FanOutVar {
			return fo
		}
		if s, ok := v["var"].(string); ok {
			fo.Var = s
		}
		if s, ok := v["map_to"].(string); ok && s != "" {
			fo.MapTo = s
		} else {
			fo.MapTo = "topic"
		}
		if n, ok := asInt(v["limit"]); ok {
			fo.Limit = n
		}
		return fo
	default:
		return FanOut{Mode: FanOutNone}
	}
}

func normalizeFanOutMode(mode string) FanOut {
	switch mode {
	case FanOutTask:
		return FanOut{Mode: FanOutTask}
	case FanOutVar:
		return FanOut{Mode: FanOutVar, MapTo: "topic"}
	default:
		return FanOut{Mode: FanOutNone}
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
