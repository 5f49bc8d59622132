package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileStore is a DurableStore backed by a local directory of YAML
// documents: one file per strategy under strategies/, an index.yaml, and a
// global_settings.yaml. It is the development/test backend; production
// deployments use PostgresStore.
type FileStore struct {
	Dir string
}

func (f *FileStore) ListActiveStrategyDocuments(ctx context.Context) (map[string]map[string]any, error) {
	dir := filepath.Join(f.Dir, "strategies")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading strategies directory %s: %w", dir, err)
	}

	docs := make(map[string]map[string]any)
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := decodeYAMLFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading strategy file %s: %w", path, err)
		}
		slug := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if meta, ok := raw["meta"].(map[string]any); ok {
			if s, ok := meta["slug"].(string); ok && s != "" {
				slug = s
			}
		}
		docs[slug] = raw
	}
	return docs, nil
}

func (f *FileStore) LoadIndex(ctx context.Context) ([]map[string]any, error) {
	path := filepath.Join(f.Dir, "index.yaml")
	raw, err := decodeYAMLFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy index %s: %w", path, err)
	}
	entriesAny, ok := raw["strategies"].([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected top-level 'strategies' list", path)
	}
	entries := make([]map[string]any, 0, len(entriesAny))
	for _, e := range entriesAny {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: strategy index entries must be objects", path)
		}
		entries = append(entries, m)
	}
	return entries, nil
}

func (f *FileStore) LoadGlobalSettings(ctx context.Context) (map[string]any, error) {
	path := filepath.Join(f.Dir, "global_settings.yaml")
	return decodeYAMLFile(path)
}

func isYAMLFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func decodeYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	normalized, _ := normalizeYAMLMap(raw).(map[string]any)
	return normalized, nil
}

// normalizeYAMLMap recursively converts map[any]any produced by some YAML
// decode paths into map[string]any, and []any elements likewise, so the
// rest of this package (and gojsonschema, which expects plain JSON-ish
// types) can treat every document uniformly regardless of source backend.
func normalizeYAMLMap(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalizeYAMLMap(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLMap(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalizeYAMLMap(val)
		}
		return out
	default:
		return v
	}
}
