package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// DurableStore is the boot-time source of strategy documents, the strategy
// index, and global settings. Implementations: PostgresStore (production)
// and FileStore (local development / tests).
type DurableStore interface {
	// ListActiveStrategyDocuments returns every active strategy's raw
	// document, keyed by slug, as decoded JSON/YAML (map[string]any).
	ListActiveStrategyDocuments(ctx context.Context) (map[string]map[string]any, error)

	// LoadIndex returns the raw strategy-index entries.
	LoadIndex(ctx context.Context) ([]map[string]any, error)

	// LoadGlobalSettings returns the raw global_settings document.
	LoadGlobalSettings(ctx context.Context) (map[string]any, error)
}

// Store is the boot-time builder for the strategy/config cache. It is
// never exposed to request-handling code; only the Cache returned by
// Build is. This is the type-level realization of the source's mutable
// "_CACHES_INITIALIZED" flag: once Build has returned, there is no method
// on Store's result that can mutate it again.
type Store struct {
	strategies map[string]Strategy
	index      []StrategyIndexEntry
	settings   GlobalSettings
	built      bool
}

// NewStore constructs an empty, unbuilt Store.
func NewStore() *Store {
	return &Store{strategies: make(map[string]Strategy)}
}

// LoadAllFromStore reads every active strategy and the global settings from
// store, validates each strategy document against the schema, decodes it,
// and stages it for Build. Must be called exactly once per process before
// any request is served. On any error, the process must not proceed to
// serve requests: a bad strategy document is a hard startup error, not a
// degraded mode.
func (s *Store) LoadAllFromStore(ctx context.Context, store DurableStore) error {
	if s.built {
		return &ErrImmutableCache{Operation: "LoadAllFromStore on a built Store"}
	}

	rawStrategies, err := store.ListActiveStrategyDocuments(ctx)
	if err != nil {
		return fmt.Errorf("loading strategy documents: %w", err)
	}
	if len(rawStrategies) == 0 {
		return fmt.Errorf("strategy store returned no active strategies")
	}

	rawIndex, err := store.LoadIndex(ctx)
	if err != nil {
		return fmt.Errorf("loading strategy index: %w", err)
	}

	rawSettings, err := store.LoadGlobalSettings(ctx)
	if err != nil {
		return fmt.Errorf("loading global settings: %w", err)
	}

	strategies := make(map[string]Strategy, len(rawStrategies))
	for slug, doc := range rawStrategies {
		if err := ValidateStrategyDocument(doc); err != nil {
			return &ErrInvalidStrategy{Slug: slug, Err: err}
		}
		decoded, err := DecodeStrategy(doc)
		if err != nil {
			return &ErrInvalidStrategy{Slug: slug, Err: err}
		}
		if decoded.Meta.Slug == "" {
			decoded.Meta.Slug = slug
		}
		if decoded.Meta.Slug != slug {
			return &ErrInvalidStrategy{Slug: slug, Err: fmt.Errorf("document meta.slug %q does not match store key %q", decoded.Meta.Slug, slug)}
		}
		strategies[slug] = decoded
	}

	index := make([]StrategyIndexEntry, 0, len(rawIndex))
	for _, raw := range rawIndex {
		if err := ValidateIndexEntry(raw); err != nil {
			return fmt.Errorf("invalid strategy index entry: %w", err)
		}
		entry, err := DecodeIndexEntry(raw)
		if err != nil {
			return fmt.Errorf("decoding strategy index entry: %w", err)
		}
		index = append(index, entry)
	}

	settings, err := DecodeGlobalSettings(rawSettings)
	if err != nil {
		return fmt.Errorf("decoding global settings: %w", err)
	}

	s.strategies = strategies
	s.index = index
	s.settings = settings

	slog.Info("strategy store loaded", "strategies", len(strategies), "index_entries", len(index))
	return nil
}

// Build flips the immutability flag and returns a read-only Cache handle.
// After Build, Store must not be reused: LoadAllFromStore on a built Store
// returns ErrImmutableCache.
func (s *Store) Build() (*Cache, error) {
	if s.built {
		return nil, &ErrImmutableCache{Operation: "Build called twice"}
	}
	s.built = true

	sorted := make([]StrategyIndexEntry, len(s.index))
	copy(sorted, s.index)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Slug < sorted[j].Slug
	})

	lookup := make(map[[3]string]StrategyIndexEntry)
	for _, entry := range sorted {
		if !entry.Active {
			continue
		}
		key := [3]string{entry.Category, entry.TimeWindow, entry.Depth}
		current, exists := lookup[key]
		if !exists || entry.Priority < current.Priority ||
			(entry.Priority == current.Priority && entry.Slug < current.Slug) {
			lookup[key] = entry
		}
	}

	return &Cache{
		strategies: s.strategies,
		index:      sorted,
		lookup:     lookup,
		settings:   s.settings,
	}, nil
}
