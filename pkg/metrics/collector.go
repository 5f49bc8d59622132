package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/executor"
)

// Collector accumulates per-phase timing, per-tool call counts and token
// usage for exactly one request. Per the concurrency model's
// shared-resource policy, a Collector is never shared across requests —
// callers construct one per call to Executor.Execute. It is safe for
// concurrent use by the fan-out goroutines inside a single request
// (research passes and foreach iterations all record through the same
// Collector instance).
type Collector struct {
	mu sync.Mutex

	now func() time.Time

	strategySlug string

	phaseStart     map[string]time.Time
	phaseDurations map[string]time.Duration
	tokenUsage     map[string]int
	apiCalls       map[string]int
}

// NewCollector returns an empty Collector. now, when nil, defaults to
// time.Now — tests may override it for deterministic phase durations.
func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{
		now:            now,
		phaseStart:     make(map[string]time.Time),
		phaseDurations: make(map[string]time.Duration),
		tokenUsage:     make(map[string]int),
		apiCalls:       make(map[string]int),
	}
}

// SetStrategySlug records which strategy this run resolved to, once
// scope/fill have run.
func (c *Collector) SetStrategySlug(slug string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategySlug = slug
}

// StartPhase marks the start of a named phase. Calling it twice for the
// same name before a matching EndPhase simply resets the start time —
// phases are not expected to nest or re-enter, but the collector
// tolerates it rather than panicking on a misbehaving caller.
func (c *Collector) StartPhase(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phaseStart[name] = c.now()
}

// EndPhase closes out a phase started with StartPhase, accumulating its
// elapsed duration and any token usage attributed to it. Calling
// EndPhase without a matching StartPhase records zero duration rather
// than erroring — a defensive no-op, since a missing start is a caller
// bug this package can't recover context for.
func (c *Collector) EndPhase(name string, tokenUsage int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if start, ok := c.phaseStart[name]; ok {
		c.phaseDurations[name] += c.now().Sub(start)
		delete(c.phaseStart, name)
	}
	if tokenUsage > 0 {
		c.tokenUsage[name] += tokenUsage
	}
}

// RecordAPICall increments the call count for toolName. toolName is the
// adapter-side name, not the full "adapter.capability" use string —
// callers pass the same name dispatch.go resolved against the registry.
func (c *Collector) RecordAPICall(toolName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiCalls[toolName]++
}

// StrategyMetrics is the immutable snapshot Build produces: everything
// accumulated during the run plus the derived source-diversity scores.
type StrategyMetrics struct {
	StrategySlug string

	PhaseDurations map[string]time.Duration
	TokenUsage     map[string]int
	APICalls       map[string]int
	ToolsUsed      []string

	ValidSources     int
	UniqueDomains    int
	UniquePublishers int

	// SourceDiversityScore = 0.5*(unique_domains/valid_sources) +
	// 0.5*min(unique_domains/10, 1). Zero when there are no valid
	// sources, rather than dividing by zero.
	SourceDiversityScore float64
}

// Build produces a StrategyMetrics snapshot from the collector's
// accumulated counters and state's final evidence set. It does not
// mutate the collector or state — callers may still call RecordScores
// or inspect state afterward.
func (c *Collector) Build(state *executor.ExecutionState) StrategyMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	sm := StrategyMetrics{
		StrategySlug:   c.strategySlug,
		PhaseDurations: cloneDurations(c.phaseDurations),
		TokenUsage:     cloneInts(c.tokenUsage),
		APICalls:       cloneInts(c.apiCalls),
	}

	tools := make([]string, 0, len(c.apiCalls))
	for tool := range c.apiCalls {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	sm.ToolsUsed = tools

	domains := make(map[string]struct{})
	publishers := make(map[string]struct{})
	valid := 0
	if state != nil {
		for _, ev := range state.Evidence {
			if ev.IsSentinel() {
				continue
			}
			valid++
			if host := evidence.CanonicalHost(ev.URL); host != "" {
				domains[host] = struct{}{}
			}
			if ev.Publisher != "" {
				publishers[ev.Publisher] = struct{}{}
			}
		}
	}
	sm.ValidSources = valid
	sm.UniqueDomains = len(domains)
	sm.UniquePublishers = len(publishers)
	sm.SourceDiversityScore = sourceDiversityScore(sm.UniqueDomains, valid)

	return sm
}

func sourceDiversityScore(uniqueDomains, validSources int) float64 {
	if validSources == 0 {
		return 0
	}
	coverage := float64(uniqueDomains) / float64(validSources)
	breadth := math.Min(float64(uniqueDomains)/10.0, 1.0)
	return 0.5*coverage + 0.5*breadth
}

func cloneDurations(m map[string]time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneInts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
