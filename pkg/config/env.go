package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envRefPatterns recognizes the three shapes a strategy document or
// config file can reference an environment variable with:
// ${VAR:-default}, ${VAR}, and bare $VAR.
var envRefPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	bare        *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	bare:        regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandEnvRefs substitutes every environment variable reference in s,
// most specific pattern first so ${VAR:-default} isn't partially consumed
// by the bare-$VAR pass.
func expandEnvRefs(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envRefPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envRefPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envRefPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envRefPatterns.braced.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})

	return envRefPatterns.bare.ReplaceAllStringFunc(s, func(match string) string {
		parts := envRefPatterns.bare.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// coerceScalar re-types a fully-expanded string back into bool/int/float
// where possible, so an expanded "${MAX_RESULTS}" yields a JSON number
// rather than a string a strict schema field would reject.
func coerceScalar(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// ExpandEnvVarsInData walks a decoded document tree (as produced by the
// koanf-backed Loader or a DurableStore's raw strategy document) and
// expands every environment variable reference it finds in a string
// leaf, recursively covering nested maps and slices.
func ExpandEnvVarsInData(data any) any {
	switch v := data.(type) {
	case string:
		expanded := expandEnvRefs(v)
		if expanded != v {
			return coerceScalar(expanded)
		}
		return expanded

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = ExpandEnvVarsInData(value)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = ExpandEnvVarsInData(item)
		}
		return result

	default:
		return v
	}
}

// LoadEnvFiles loads .env.local then .env into the process environment,
// local overrides taking precedence since godotenv.Load never replaces a
// variable already set. A missing file is not an error; a malformed one
// is.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}

// GetProviderAPIKey reads the API key for a configured LLM provider type.
// This module ships a single concrete provider (OpenAI-wire-compatible,
// pkg/llms.OpenAIProvider), so "openai" is the only case that resolves;
// everything else returns empty so buildEnvironment treats it as
// unconfigured rather than panicking on an unknown provider type.
func GetProviderAPIKey(providerType string) string {
	if providerType == "openai" {
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}
