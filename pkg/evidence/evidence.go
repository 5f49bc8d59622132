// Package evidence implements the pipeline's universal currency: normalized,
// citation-bearing records produced by tool adapters, plus the
// canonicalization, deduplication, and scoring rules applied after every
// research step.
package evidence

import (
	"net/url"
	"strings"
	"time"
)

// SentinelLLMAnalysis is the synthetic URL used by the llm_analyzer adapter
// to wrap a synthesized text artifact as a single evidence item.
const SentinelLLMAnalysis = "llm_analysis_result"

// Evidence is a value type: once appended to an execution's evidence set,
// URL is never mutated. Score may be rewritten by dedup/scoring.
type Evidence struct {
	URL       string  `json:"url"`
	Title     string  `json:"title,omitempty"`
	Publisher string  `json:"publisher,omitempty"`
	Date      string  `json:"date,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
	Tool      string  `json:"tool"`
	Score     float64 `json:"score,omitempty"`
}

// IsSentinel reports whether e is a synthetic record (e.g. an LLM analyzer
// artifact) rather than a real fetched source.
func (e Evidence) IsSentinel() bool {
	return e.URL == SentinelLLMAnalysis
}

// Canonical normalizes a URL for deduplication: lowercase scheme and host,
// trailing slash stripped from the path, query and fragment dropped.
//
// Canonicalization is idempotent: Canonical(Canonical(u)) == Canonical(u).
func Canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// DedupeAndScore dedupes evidence by canonical URL (keeping the
// highest-scored occurrence, ties broken by later insertion), applies a
// recency scoring term, sorts descending by score, and truncates to limit
// when limit > 0.
//
// Re-running DedupeAndScore on an already-deduped set is a no-op (the
// second pass's output equals its input up to the recency term, which is
// itself idempotent for a fixed "today").
func DedupeAndScore(items []Evidence, limit int) []Evidence {
	return dedupeAndScoreAt(items, limit, time.Now().UTC())
}

func dedupeAndScoreAt(items []Evidence, limit int, today time.Time) []Evidence {
	order := make([]string, 0, len(items))
	byKey := make(map[string]Evidence, len(items))

	for _, ev := range items {
		key := Canonical(ev.URL)
		current, exists := byKey[key]
		if !exists {
			order = append(order, key)
			byKey[key] = ev
			continue
		}
		if ev.Score >= current.Score {
			byKey[key] = ev
		}
	}

	scored := make([]Evidence, 0, len(order))
	for _, key := range order {
		ev := byKey[key]
		ev.Score = ev.Score + recencyScore(ev.Date, today)
		scored = append(scored, ev)
	}

	stableSortByScoreDesc(scored)

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// recencyScore derives 1/(1+days_old) from an ISO-ish date string. A
// missing or unparseable date yields the neutral recency of 1.0.
func recencyScore(date string, today time.Time) float64 {
	if date == "" {
		return 1.0
	}
	datePart := date
	if idx := strings.IndexByte(date, 'T'); idx >= 0 {
		datePart = date[:idx]
	}
	dt, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return 1.0
	}
	days := int(today.Truncate(24 * time.Hour).Sub(dt.Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return 1.0 / float64(1+days)
}

// stableSortByScoreDesc sorts in place by descending score, preserving the
// relative order of equal-scored items (so merges driven by
// iteration-index ordering stay deterministic downstream of dedup).
func stableSortByScoreDesc(items []Evidence) {
	// insertion sort: the evidence slices this operates on are small
	// (bounded by limits.max_results in practice), and stability matters
	// more here than asymptotic complexity.
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && items[j-1].Score < items[j].Score {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}

// CanonicalHost returns the lowercased host of a canonical URL, used by the
// metrics collector for unique-domain counting.
func CanonicalHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
