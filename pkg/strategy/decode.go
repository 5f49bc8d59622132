package strategy

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeStrategy decodes a raw strategy document (already validated against
// the JSON Schema by ValidateStrategyDocument) into a Strategy. tool_chain is handled
// separately from the mapstructure pass because it is a sum type the
// generic decoder cannot express.
func DecodeStrategy(raw map[string]any) (Strategy, error) {
	var s Strategy

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Strategy{}, fmt.Errorf("building decoder: %w", err)
	}

	withoutChain := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "tool_chain" {
			withoutChain[k] = v
		}
	}
	if err := decoder.Decode(withoutChain); err != nil {
		return Strategy{}, fmt.Errorf("decoding strategy: %w", err)
	}

	if rawChain, ok := raw["tool_chain"].([]any); ok {
		chain, err := parseToolChain(rawChain)
		if err != nil {
			return Strategy{}, fmt.Errorf("decoding tool_chain: %w", err)
		}
		s.ToolChain = chain
	}

	return s, nil
}

// DecodeIndexEntry decodes a single strategy-index document entry,
// including the fan_out sum type.
func DecodeIndexEntry(raw map[string]any) (StrategyIndexEntry, error) {
	var e StrategyIndexEntry
	e.Active = true
	e.Priority = 100

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &e,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return StrategyIndexEntry{}, fmt.Errorf("building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return StrategyIndexEntry{}, fmt.Errorf("decoding strategy index entry: %w", err)
	}

	if fo, ok := raw["fan_out"]; ok {
		e.FanOut = parseFanOut(fo)
	} else {
		e.FanOut = FanOut{Mode: FanOutNone}
	}

	return e, nil
}

// DecodeGlobalSettings decodes the raw global_settings document.
func DecodeGlobalSettings(raw map[string]any) (GlobalSettings, error) {
	var g GlobalSettings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &g,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return GlobalSettings{}, fmt.Errorf("building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return GlobalSettings{}, fmt.Errorf("decoding global settings: %w", err)
	}
	return g, nil
}
