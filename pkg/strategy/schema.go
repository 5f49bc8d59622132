package strategy

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the JSON Schema strategy documents must satisfy before
// admission to the cache. The schema is authoritative: anything it
// rejects must not be admitted to the cache.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["meta", "tool_chain"],
  "properties": {
    "meta": {
      "type": "object",
      "required": ["slug", "version", "category", "time_window", "depth"],
      "properties": {
        "slug": {"type": "string", "minLength": 1},
        "version": {"type": "integer"},
        "category": {"type": "string", "minLength": 1},
        "time_window": {"type": "string", "enum": ["day", "week", "month", "year"]},
        "depth": {"type": "string", "enum": ["brief", "overview", "deep", "comprehensive"]}
      }
    },
    "queries": {"type": "object"},
    "tool_chain": {
      "type": "array",
      "items": {
        "type": "object",
        "anyOf": [
          {"required": ["use"]},
          {"required": ["name"]}
        ],
        "properties": {
          "use": {"type": "string"},
          "name": {"type": "string"},
          "inputs": {"type": "object"},
          "params": {"type": "object"},
          "llm_fill": {"type": "array", "items": {"type": "string"}},
          "save_as": {"type": "string"},
          "foreach": {"type": "string"},
          "when": {"type": "string"},
          "phase": {"type": "string", "enum": ["research", "finalize"]},
          "loop": {"type": "integer"}
        }
      }
    },
    "limits": {
      "type": "object",
      "properties": {
        "max_results": {"type": "integer", "minimum": 0},
        "max_llm_queries": {"type": "integer", "minimum": 0}
      }
    },
    "filters": {"type": "object"},
    "quorum": {"type": "object"},
    "finalize": {"type": "object"}
  }
}`

// indexEntrySchema validates a single strategy-index entry.
const indexEntrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["slug", "category", "time_window", "depth"],
  "properties": {
    "slug": {"type": "string", "minLength": 1},
    "category": {"type": "string", "minLength": 1},
    "time_window": {"type": "string", "enum": ["day", "week", "month", "year"]},
    "depth": {"type": "string", "enum": ["brief", "overview", "deep", "comprehensive"]},
    "priority": {"type": "integer"},
    "active": {"type": "boolean"},
    "required_variables": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    },
    "fan_out": {}
  }
}`

var (
	documentSchemaLoader   = gojsonschema.NewStringLoader(documentSchema)
	indexEntrySchemaLoader = gojsonschema.NewStringLoader(indexEntrySchema)
)

// ValidateStrategyDocument validates a raw strategy document against the
// schema, returning a descriptive error listing every violation.
func ValidateStrategyDocument(raw map[string]any) error {
	return validateAgainst(documentSchemaLoader, raw, "strategy document")
}

// ValidateIndexEntry validates a single strategy-index entry.
func ValidateIndexEntry(raw map[string]any) error {
	return validateAgainst(indexEntrySchemaLoader, raw, "strategy index entry")
}

func validateAgainst(schemaLoader gojsonschema.JSONLoader, raw map[string]any, kind string) error {
	docLoader := gojsonschema.NewGoLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("%s schema check failed: %w", kind, err)
	}
	if result.Valid() {
		return nil
	}

	msg := fmt.Sprintf("invalid %s:", kind)
	for _, e := range result.Errors() {
		msg += "\n  - " + e.String()
	}
	return fmt.Errorf("%s", msg)
}
