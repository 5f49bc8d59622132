package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/executor"
)

// sequenceClock returns a func() time.Time that yields each of times in
// order, then repeats the last value for any call beyond len(times).
func sequenceClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

func TestCollectorPhaseDuration(t *testing.T) {
	start := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	c := NewCollector(sequenceClock(start, start.Add(2*time.Second)))

	c.SetStrategySlug("daily-news-briefing")
	c.StartPhase("research")
	c.EndPhase("research", 120)

	sm := c.Build(nil)
	require.Equal(t, "daily-news-briefing", sm.StrategySlug)
	require.Equal(t, 2*time.Second, sm.PhaseDurations["research"])
	require.Equal(t, 120, sm.TokenUsage["research"])
}

func TestCollectorEndPhaseWithoutStart(t *testing.T) {
	c := NewCollector(nil)
	c.EndPhase("finalize", 0)

	sm := c.Build(nil)
	require.Zero(t, sm.PhaseDurations["finalize"])
}

func TestCollectorAPICallCounts(t *testing.T) {
	c := NewCollector(nil)
	c.RecordAPICall("sonar")
	c.RecordAPICall("sonar")
	c.RecordAPICall("exa")

	sm := c.Build(nil)
	require.Equal(t, 2, sm.APICalls["sonar"])
	require.Equal(t, 1, sm.APICalls["exa"])
	require.Equal(t, []string{"exa", "sonar"}, sm.ToolsUsed)
}

func TestCollectorSourceDiversity(t *testing.T) {
	c := NewCollector(nil)
	state := &executor.ExecutionState{
		Evidence: []evidence.Evidence{
			{URL: "https://a.com/1", Publisher: "A"},
			{URL: "https://a.com/2", Publisher: "A"},
			{URL: "https://b.com/1", Publisher: "B"},
			{URL: evidence.SentinelLLMAnalysis, Snippet: "synthesized text"},
		},
	}

	sm := c.Build(state)
	require.Equal(t, 3, sm.ValidSources)
	require.Equal(t, 2, sm.UniqueDomains)
	require.Equal(t, 2, sm.UniquePublishers)

	// 0.5*(2/3) + 0.5*min(2/10,1) = 0.3333 + 0.1 = 0.4333
	require.InDelta(t, 0.43333, sm.SourceDiversityScore, 0.001)
}

func TestCollectorSourceDiversityNoSources(t *testing.T) {
	c := NewCollector(nil)
	sm := c.Build(&executor.ExecutionState{})
	require.Zero(t, sm.ValidSources)
	require.Zero(t, sm.SourceDiversityScore)
}

func TestRegistryRecordScoresNilSafe(t *testing.T) {
	var r *Registry
	require.NotPanics(t, func() {
		r.RecordScores("trace-1", StrategyMetrics{StrategySlug: "daily-news-briefing"})
	})
}

func TestRegistryRecordScores(t *testing.T) {
	r := NewRegistry("researchd_test")
	c := NewCollector(nil)
	c.SetStrategySlug("daily-news-briefing")
	c.StartPhase("research")
	c.EndPhase("research", 10)
	c.RecordAPICall("sonar")

	sm := c.Build(&executor.ExecutionState{
		Evidence: []evidence.Evidence{{URL: "https://a.com/1", Publisher: "A"}},
	})

	require.NotPanics(t, func() {
		r.RecordScores("trace-1", sm)
	})
}
