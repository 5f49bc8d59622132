package strategy

// Cache is the read-only handle to a process-wide strategy/config cache,
// built once by Store.Build at boot. No method on Cache can mutate it;
// immutability after init holds because no such method exists, not
// because of a runtime flag check.
type Cache struct {
	strategies map[string]Strategy
	index      []StrategyIndexEntry
	lookup     map[[3]string]StrategyIndexEntry
	settings   GlobalSettings
}

// GetStrategy fails with ErrStrategyNotFound if slug is absent. Never
// consults the durable store — Cache only ever serves what Build staged.
func (c *Cache) GetStrategy(slug string) (Strategy, error) {
	s, ok := c.strategies[slug]
	if !ok {
		return Strategy{}, &ErrStrategyNotFound{Slug: slug}
	}
	return s, nil
}

// SelectStrategy deterministically selects among active index entries
// matching (category, time_window, depth) exactly: the entry with the
// smallest priority, ties broken by lexicographic slug. Returns ("", false)
// if no entry matches.
func (c *Cache) SelectStrategy(category, timeWindow, depth string) (string, bool) {
	entry, ok := c.lookup[[3]string{category, timeWindow, depth}]
	if !ok {
		return "", false
	}
	return entry.Slug, true
}

// StrategyIndex returns a stable, priority-sorted view of every entry
// (active and inactive) as staged at boot.
func (c *Cache) StrategyIndex() []StrategyIndexEntry {
	out := make([]StrategyIndexEntry, len(c.index))
	copy(out, c.index)
	return out
}

// IndexEntry looks up a single index entry by slug.
func (c *Cache) IndexEntry(slug string) (StrategyIndexEntry, bool) {
	for _, e := range c.index {
		if e.Slug == slug {
			return e, true
		}
	}
	return StrategyIndexEntry{}, false
}

// GlobalSettings returns the cached global LLM/prompt settings.
func (c *Cache) GlobalSettings() GlobalSettings {
	return c.settings
}
