package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/adapter/llmanalyzer"
	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/llms"
	"github.com/researchd/researchd/pkg/strategy"
)

// stubDurableStore feeds fixed raw documents to strategy.Store, the same
// boot path production uses, so tests exercise the real Cache rather
// than a hand-rolled test double of it.
type stubDurableStore struct {
	strategies map[string]map[string]any
	index      []map[string]any
	settings   map[string]any
}

func (s stubDurableStore) ListActiveStrategyDocuments(ctx context.Context) (map[string]map[string]any, error) {
	return s.strategies, nil
}

func (s stubDurableStore) LoadIndex(ctx context.Context) ([]map[string]any, error) {
	return s.index, nil
}

func (s stubDurableStore) LoadGlobalSettings(ctx context.Context) (map[string]any, error) {
	if s.settings == nil {
		return map[string]any{}, nil
	}
	return s.settings, nil
}

func buildCache(t *testing.T, store stubDurableStore) *strategy.Cache {
	t.Helper()
	s := strategy.NewStore()
	require.NoError(t, s.LoadAllFromStore(context.Background(), store))
	cache, err := s.Build()
	require.NoError(t, err)
	return cache
}

func baseMeta(slug string) map[string]any {
	return map[string]any{
		"meta": map[string]any{
			"slug": slug, "version": 1, "category": "news", "time_window": "day", "depth": "brief",
		},
	}
}

func baseIndexEntry(slug string) map[string]any {
	return map[string]any{
		"slug": slug, "category": "news", "time_window": "day", "depth": "brief",
		"priority": 10, "active": true,
	}
}

// stubCaller is a minimal adapter.Caller for dispatch tests: it returns a
// canned evidence set (or error) per call, tracking call count.
type stubCaller struct {
	name    string
	results [][]evidence.Evidence
	calls   int
	err     error
}

func (s *stubCaller) Name() string             { return s.name }
func (s *stubCaller) Capabilities() []string    { return []string{adapter.CapCall} }
func (s *stubCaller) Call(ctx context.Context, inputs adapter.Inputs) (adapter.EvidenceResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	if i < 0 {
		return []evidence.Evidence{}, nil
	}
	return s.results[i], nil
}

// stubLLM is a deterministic llms.LLMProvider for llm_analyzer/llm_fill.
type stubLLM struct {
	text string
	err  error
}

func (s *stubLLM) Generate(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (string, []llms.ToolCall, int, *llms.ThinkingBlock, error) {
	return s.text, nil, 0, nil, s.err
}
func (s *stubLLM) GenerateStreaming(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	return nil, fmt.Errorf("not supported")
}
func (s *stubLLM) GetModelName() string   { return "stub" }
func (s *stubLLM) GetMaxTokens() int      { return 1024 }
func (s *stubLLM) GetTemperature() float64 { return 0 }
func (s *stubLLM) Close() error           { return nil }

func fixedNow() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) }

// TestS1NewsBriefingOneSubtask exercises a single-subtask daily news
// briefing end to end.
func TestS1NewsBriefingOneSubtask(t *testing.T) {
	doc := baseMeta("daily_news_briefing")
	doc["tool_chain"] = []any{
		map[string]any{"use": "sonar", "inputs": map[string]any{"prompt": "{{topic}}"}, "phase": "research"},
		map[string]any{"use": "llm_analyzer", "inputs": map[string]any{"prompt": "write a briefing"}, "save_as": "briefing_content", "phase": "finalize"},
	}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"daily_news_briefing": doc},
		index:      []map[string]any{baseIndexEntry("daily_news_briefing")},
	})

	sonar := &stubCaller{name: "sonar", results: [][]evidence.Evidence{{
		{URL: "http://a/x", Title: "A", Tool: "sonar"},
		{URL: "http://b/y", Title: "B", Tool: "sonar"},
	}}}
	reg := adapter.NewRegistry()
	require.NoError(t, reg.RegisterAdapter(sonar))
	require.NoError(t, reg.RegisterAdapter(llmanalyzer.New(&stubLLM{
		text: "Big week for labs. [A](http://a/x) and [B](http://b/y) both shipped news.",
	})))

	ex := &Executor{Registry: reg, Strategies: cache, Now: fixedNow}
	state, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "Latest AI lab news", Category: "news", TimeWindow: "day", Depth: "brief",
		StrategySlug: "daily_news_briefing",
	})
	require.NoError(t, err)
	require.Equal(t, PhaseDone, state.Phase)
	require.Equal(t, "daily_news_briefing", state.StrategySlug)
	require.Len(t, state.citations, 2)
	require.Len(t, state.Sections, 1)
	require.Contains(t, state.Sections[0], "<sup>[1]</sup>")
	require.Contains(t, state.Sections[0], "<sup>[2]</sup>")
}

// TestS2DedupeAcrossTools checks that the same URL (modulo trailing
// slash) from two different steps collapses to one entry, keeping the
// higher-scored variant.
func TestS2DedupeAcrossTools(t *testing.T) {
	doc := baseMeta("dedupe_strategy")
	doc["tool_chain"] = []any{
		map[string]any{"use": "toolA", "inputs": map[string]any{}},
		map[string]any{"use": "toolB", "inputs": map[string]any{}},
	}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"dedupe_strategy": doc},
		index:      []map[string]any{baseIndexEntry("dedupe_strategy")},
	})

	toolA := &stubCaller{name: "toolA", results: [][]evidence.Evidence{{{URL: "http://a/x/", Score: 0.5, Tool: "toolA"}}}}
	toolB := &stubCaller{name: "toolB", results: [][]evidence.Evidence{{{URL: "http://a/x", Score: 0.9, Tool: "toolB"}}}}
	reg := adapter.NewRegistry()
	require.NoError(t, reg.RegisterAdapter(toolA))
	require.NoError(t, reg.RegisterAdapter(toolB))

	ex := &Executor{Registry: reg, Strategies: cache, Now: fixedNow}
	state, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "x", Category: "news", TimeWindow: "day", Depth: "brief", StrategySlug: "dedupe_strategy",
	})
	require.NoError(t, err)
	require.Len(t, state.Evidence, 1)
	require.Equal(t, "toolB", state.Evidence[0].Tool)
}

// TestS3StrategyLevelVarFanOut exercises a strategy-level variable fan-out across two values.
func TestS3StrategyLevelVarFanOut(t *testing.T) {
	doc := baseMeta("company_dossier")
	doc["tool_chain"] = []any{
		map[string]any{"use": "sonar", "inputs": map[string]any{"prompt": "{{topic}}"}},
	}
	entry := baseIndexEntry("company_dossier")
	entry["fan_out"] = map[string]any{"mode": "var", "var": "companies", "map_to": "topic", "limit": 2}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"company_dossier": doc},
		index:      []map[string]any{entry},
	})

	sonar := &stubCaller{name: "sonar"}
	reg := adapter.NewRegistry()
	require.NoError(t, reg.RegisterAdapter(sonar))

	ex := &Executor{Registry: reg, Strategies: cache, Now: fixedNow, FanOutLimit: 1}
	_, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "profile companies", Category: "news", TimeWindow: "day", Depth: "brief",
		StrategySlug: "company_dossier",
		Variables:    map[string]any{"companies": []any{"OpenAI", "Anthropic", "Google"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, sonar.calls)
}

// TestS4BudgetDegradation exercises budget-exhaustion degradation ordering.
func TestS4BudgetDegradation(t *testing.T) {
	doc := baseMeta("budget_strategy")
	doc["limits"] = map[string]any{"max_llm_queries": 1}
	doc["tool_chain"] = []any{
		map[string]any{"use": "llm_analyzer", "inputs": map[string]any{"prompt": "a"}, "save_as": "first", "phase": "finalize"},
		map[string]any{"use": "llm_analyzer", "inputs": map[string]any{"prompt": "b"}, "save_as": "second", "phase": "finalize"},
	}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"budget_strategy": doc},
		index:      []map[string]any{baseIndexEntry("budget_strategy")},
	})

	reg := adapter.NewRegistry()
	require.NoError(t, reg.RegisterAdapter(llmanalyzer.New(&stubLLM{text: "first briefing"})))

	ex := &Executor{Registry: reg, Strategies: cache, Now: fixedNow}
	state, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "q", Category: "news", TimeWindow: "day", Depth: "brief", StrategySlug: "budget_strategy",
	})
	require.NoError(t, err)
	require.Len(t, state.Sections, 1)
	found := false
	for _, e := range state.Errors {
		if strings.Contains(e, "budget exceeded") {
			found = true
		}
	}
	require.True(t, found, "expected a budget-exceeded error entry, got %v", state.Errors)
}

// TestRecencyQCFlagsStaleEvidence exercises the recency quality-control check on stale evidence.
func TestRecencyQCFlagsStaleEvidence(t *testing.T) {
	doc := baseMeta("recency_strategy")
	doc["filters"] = map[string]any{"recency": "week"}
	doc["tool_chain"] = []any{
		map[string]any{"use": "sonar", "inputs": map[string]any{}},
	}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"recency_strategy": doc},
		index:      []map[string]any{baseIndexEntry("recency_strategy")},
	})

	old := fixedNow().AddDate(0, 0, -30).Format("2006-01-02")
	sonar := &stubCaller{name: "sonar", results: [][]evidence.Evidence{{{URL: "http://a/x", Date: old, Tool: "sonar"}}}}
	reg := adapter.NewRegistry()
	require.NoError(t, reg.RegisterAdapter(sonar))

	ex := &Executor{Registry: reg, Strategies: cache, Now: fixedNow}
	state, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "q", Category: "news", TimeWindow: "day", Depth: "brief", StrategySlug: "recency_strategy",
	})
	require.NoError(t, err)
	found := false
	for _, l := range state.Limitations {
		if strings.Contains(l, "out of time window") {
			found = true
		}
	}
	require.True(t, found, "expected an out-of-window limitation, got limitations=%v", state.Limitations)
}

// TestS6UnknownTool exercises the fatal error path for an unregistered tool use.
func TestS6UnknownTool(t *testing.T) {
	doc := baseMeta("broken_strategy")
	doc["tool_chain"] = []any{
		map[string]any{"use": "nonexistent", "inputs": map[string]any{}},
	}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"broken_strategy": doc},
		index:      []map[string]any{baseIndexEntry("broken_strategy")},
	})

	ex := &Executor{Registry: adapter.NewRegistry(), Strategies: cache, Now: fixedNow}
	state, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "q", Category: "news", TimeWindow: "day", Depth: "brief", StrategySlug: "broken_strategy",
	})
	require.Error(t, err)
	var unknown *adapter.ErrUnknownTool
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, PhaseFailed, state.Phase)
	require.Empty(t, state.Sections)
	require.Empty(t, state.Citations)
}

// TestEmptyToolChain covers the boundary behavior: a strategy with no
// steps yields empty sections/citations without error.
func TestEmptyToolChain(t *testing.T) {
	doc := baseMeta("empty_strategy")
	doc["tool_chain"] = []any{}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"empty_strategy": doc},
		index:      []map[string]any{baseIndexEntry("empty_strategy")},
	})

	ex := &Executor{Registry: adapter.NewRegistry(), Strategies: cache, Now: fixedNow}
	state, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "q", Category: "news", TimeWindow: "day", Depth: "brief", StrategySlug: "empty_strategy",
	})
	require.NoError(t, err)
	require.Empty(t, state.Sections)
	require.Empty(t, state.Citations)
}

// TestMaxResultsTruncation checks max_results=1 keeps exactly the
// top-scored item.
func TestMaxResultsTruncation(t *testing.T) {
	doc := baseMeta("capped_strategy")
	doc["limits"] = map[string]any{"max_results": 1}
	doc["tool_chain"] = []any{
		map[string]any{"use": "sonar", "inputs": map[string]any{}},
	}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"capped_strategy": doc},
		index:      []map[string]any{baseIndexEntry("capped_strategy")},
	})

	sonar := &stubCaller{name: "sonar", results: [][]evidence.Evidence{{
		{URL: "http://a/x", Score: 0.2, Tool: "sonar"},
		{URL: "http://b/y", Score: 0.9, Tool: "sonar"},
	}}}
	reg := adapter.NewRegistry()
	require.NoError(t, reg.RegisterAdapter(sonar))

	ex := &Executor{Registry: reg, Strategies: cache, Now: fixedNow}
	state, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "q", Category: "news", TimeWindow: "day", Depth: "brief", StrategySlug: "capped_strategy",
	})
	require.NoError(t, err)
	require.Len(t, state.Evidence, 1)
	require.Equal(t, "http://b/y", state.Evidence[0].URL)
}

// recordingMetrics is a minimal MetricsRecorder fake used to check that
// Execute drives phase and adapter-call instrumentation without pulling
// in the real pkg/metrics.Collector (which would import this package).
type recordingMetrics struct {
	started []string
	ended   []string
	calls   []string
	slug    string
}

func (m *recordingMetrics) StartPhase(name string)              { m.started = append(m.started, name) }
func (m *recordingMetrics) EndPhase(name string, tokenUsage int) { m.ended = append(m.ended, name) }
func (m *recordingMetrics) RecordAPICall(toolName string)        { m.calls = append(m.calls, toolName) }
func (m *recordingMetrics) SetStrategySlug(slug string)          { m.slug = slug }

// TestMetricsRecorderWiring checks Execute reports every phase boundary
// and adapter call to a configured MetricsRecorder.
func TestMetricsRecorderWiring(t *testing.T) {
	doc := baseMeta("capped_strategy")
	doc["tool_chain"] = []any{
		map[string]any{"use": "sonar", "inputs": map[string]any{}},
	}
	cache := buildCache(t, stubDurableStore{
		strategies: map[string]map[string]any{"capped_strategy": doc},
		index:      []map[string]any{baseIndexEntry("capped_strategy")},
	})

	sonar := &stubCaller{name: "sonar", results: [][]evidence.Evidence{{
		{URL: "http://a/x", Score: 0.2, Tool: "sonar"},
	}}}
	reg := adapter.NewRegistry()
	require.NoError(t, reg.RegisterAdapter(sonar))

	rec := &recordingMetrics{}
	ex := &Executor{Registry: reg, Strategies: cache, Now: fixedNow, Metrics: rec}
	_, err := ex.Execute(context.Background(), ExecutionRequest{
		UserRequest: "q", Category: "news", TimeWindow: "day", Depth: "brief", StrategySlug: "capped_strategy",
	})
	require.NoError(t, err)
	require.Equal(t, "capped_strategy", rec.slug)
	require.Equal(t, []string{"scope", "fill", "research", "finalize"}, rec.started)
	require.Equal(t, rec.started, rec.ended)
	require.Equal(t, []string{"sonar"}, rec.calls)
}
