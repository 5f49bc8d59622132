package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchd/researchd/pkg/llms"
	"github.com/researchd/researchd/pkg/strategy"
)

type stubIndex struct {
	entries []strategy.StrategyIndexEntry
}

func (s stubIndex) StrategyIndex() []strategy.StrategyIndexEntry { return s.entries }

func (s stubIndex) SelectStrategy(category, timeWindow, depth string) (string, bool) {
	for _, e := range s.entries {
		if e.Active && e.Category == category && e.TimeWindow == timeWindow && e.Depth == depth {
			return e.Slug, true
		}
	}
	return "", false
}

// stubProvider returns canned JSON responses in order, ignoring the
// prompt, so tests can drive specific classifier code paths.
type stubProvider struct {
	responses []string
	calls     int
	err       error
}

func (s *stubProvider) Generate(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (string, []llms.ToolCall, int, *llms.ThinkingBlock, error) {
	return s.GenerateStructured(ctx, messages, tools, nil)
}

func (s *stubProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	return nil, nil
}

func (s *stubProvider) GenerateStructured(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition, config *llms.StructuredOutputConfig) (string, []llms.ToolCall, int, *llms.ThinkingBlock, error) {
	if s.err != nil {
		return "", nil, 0, nil, s.err
	}
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil, 0, nil, nil
}

func (s *stubProvider) GetModelName() string          { return "stub" }
func (s *stubProvider) GetMaxTokens() int              { return 1024 }
func (s *stubProvider) GetTemperature() float64        { return 0 }
func (s *stubProvider) Close() error                   { return nil }
func (s *stubProvider) SupportsStructuredOutput() bool { return true }

func newsIndex() stubIndex {
	return stubIndex{entries: []strategy.StrategyIndexEntry{
		{Slug: "daily-ai-news", Category: "news", TimeWindow: "day", Depth: "brief", Active: true},
		{Slug: "company-dossier", Category: "company", TimeWindow: "month", Depth: "deep", Active: true},
		{Slug: "retired-strategy", Category: "news", TimeWindow: "week", Depth: "overview", Active: false},
	}}
}

func TestClassifyResolvesBySlug(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"category":"news","time_window":"day","depth":"brief","strategy_slug":"daily-ai-news","tasks":["AI labs"],"variables":{"topic":"AI"}}`,
	}}
	c := New(provider)

	result, err := c.Classify(context.Background(), "daily AI lab news", newsIndex(), strategy.GlobalSettings{})
	require.NoError(t, err)
	assert.Equal(t, "daily-ai-news", result.StrategySlug)
	assert.Equal(t, "news", result.Category)
	assert.Equal(t, []string{"AI labs"}, result.Tasks)
	assert.Equal(t, "AI", result.Variables["topic"])
}

func TestClassifyRetriesOnceOnBadJSON(t *testing.T) {
	provider := &stubProvider{responses: []string{
		"not json",
		`{"category":"news","time_window":"day","depth":"brief","strategy_slug":"daily-ai-news","tasks":[],"variables":{}}`,
	}}
	c := New(provider)

	result, err := c.Classify(context.Background(), "daily AI lab news", newsIndex(), strategy.GlobalSettings{})
	require.NoError(t, err)
	assert.Equal(t, "daily-ai-news", result.StrategySlug)
	assert.Equal(t, 2, provider.calls)
}

func TestClassifyFailsHardOnRepeatedBadJSON(t *testing.T) {
	provider := &stubProvider{responses: []string{"not json", "still not json"}}
	c := New(provider)

	_, err := c.Classify(context.Background(), "daily AI lab news", newsIndex(), strategy.GlobalSettings{})
	require.Error(t, err)
	var target *ErrLLMClassificationFailed
	assert.ErrorAs(t, err, &target)
}

func TestClassifyRejectsInactiveStrategy(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"category":"news","time_window":"week","depth":"overview","strategy_slug":"retired-strategy","tasks":[],"variables":{}}`,
	}}
	c := New(provider)

	_, err := c.Classify(context.Background(), "weekly roundup", newsIndex(), strategy.GlobalSettings{})
	require.Error(t, err)
	var target *ErrUnscopedRequest
	assert.ErrorAs(t, err, &target)
}

func TestClassifyBackupSelectsByTuple(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"category":"company","time_window":"month","depth":"deep","strategy_slug":"","tasks":[],"variables":{}}`,
	}}
	c := New(provider)

	result, err := c.Classify(context.Background(), "profile on Acme Corp", newsIndex(), strategy.GlobalSettings{})
	require.NoError(t, err)
	assert.Equal(t, "company-dossier", result.StrategySlug)
}

func TestClassifyFailsOnTransportError(t *testing.T) {
	provider := &stubProvider{err: assert.AnError}
	c := New(provider)

	_, err := c.Classify(context.Background(), "anything", newsIndex(), strategy.GlobalSettings{})
	require.Error(t, err)
	var target *ErrLLMClassificationFailed
	assert.ErrorAs(t, err, &target)
}
