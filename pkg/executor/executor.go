package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/classifier"
	"github.com/researchd/researchd/pkg/llms"
	"github.com/researchd/researchd/pkg/strategy"
)

// MetricsRecorder is the subset of metrics.Collector the executor drives
// during a run (phase timing, token usage, adapter call counts, the
// resolved strategy slug). It is
// declared here rather than imported from pkg/metrics so the executor
// has no dependency on the metrics package — a *metrics.Collector
// satisfies this interface structurally, and callers wire one in.
// Per the concurrency model's shared-resource policy, a MetricsRecorder
// is a per-request instance, never shared across requests.
type MetricsRecorder interface {
	StartPhase(name string)
	EndPhase(name string, tokenUsage int)
	RecordAPICall(toolName string)
	SetStrategySlug(slug string)
}

// Executor advances an ExecutionState through scope → fill → research →
// finalize → done, per request. It owns no per-request state itself —
// every field here is a read-only, process-wide dependency (registry,
// strategy cache, classifier, LLM provider), safe to share across
// concurrent calls to Execute. Each call constructs and owns its own
// ExecutionState.
type Executor struct {
	Registry   *adapter.Registry
	Strategies *strategy.Cache
	Classifier *classifier.Classifier

	// LLM backs llm_fill resolutions. A nil LLM is valid for strategies
	// that never use llm_fill; a step that needs one records a
	// descriptive error entry and is degraded to empty output rather than
	// panicking.
	LLM llms.LLMProvider

	// Metrics, when set, is notified of phase boundaries and adapter
	// calls as Execute runs. A nil Metrics is valid — every call site
	// guards it.
	Metrics MetricsRecorder

	// FanOutLimit bounds concurrent foreach iterations and concurrent
	// fan-out passes; defaultFanOutLimit applies when zero.
	FanOutLimit int

	// Now, when set, replaces time.Now for fill/QC date computation —
	// the seam tests use to get deterministic dates.
	Now func() time.Time
}

// Execute runs one request to completion (done) or to a request-fatal
// error (failed). On a request-fatal error the returned state still
// reflects everything collected up to that point, but the caller should
// not treat it as a usable result — only a nil error means done.
func (e *Executor) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionState, error) {
	state := newState(req)

	state.Phase = PhaseScope
	e.startPhase(PhaseScope)
	err := e.scope(ctx, state)
	e.endPhase(PhaseScope)
	if err != nil {
		state.Phase = PhaseFailed
		return state, err
	}

	state.Phase = PhaseFill
	e.startPhase(PhaseFill)
	e.fill(state)
	e.endPhase(PhaseFill)

	strat, err := e.Strategies.GetStrategy(state.StrategySlug)
	if err != nil {
		state.Phase = PhaseFailed
		return state, err
	}
	entry, ok := e.Strategies.IndexEntry(state.StrategySlug)
	if !ok {
		state.Phase = PhaseFailed
		return state, &ErrUnscopedRequest{Reason: fmt.Sprintf("strategy %q has no index entry", state.StrategySlug)}
	}

	if e.Metrics != nil {
		e.Metrics.SetStrategySlug(state.StrategySlug)
	}

	budget := newLLMBudget(strat.Limits.MaxLLMQueries)

	state.Phase = PhaseResearch
	e.startPhase(PhaseResearch)
	researchErr := e.runResearch(ctx, state, strat, entry, budget)
	e.endPhase(PhaseResearch)
	if researchErr != nil {
		if isRequestFatal(researchErr) {
			state.Phase = PhaseFailed
			return state, researchErr
		}
		// Context deadline/cancellation during research: finalize on
		// whatever evidence was collected so far, best-effort, per the
		// DeadlineExceeded degradation policy.
		state.Errors = append(state.Errors, deadlineExceededEntry(PhaseResearch))
	}

	state.Phase = PhaseFinalize
	e.startPhase(PhaseFinalize)
	finalizeErr := e.runFinalize(ctx, state, strat, budget)
	e.endPhase(PhaseFinalize)
	if finalizeErr != nil {
		if isRequestFatal(finalizeErr) {
			state.Phase = PhaseFailed
			return state, finalizeErr
		}
		state.Errors = append(state.Errors, deadlineExceededEntry(PhaseFinalize))
	}

	e.assembleCitations(state)
	e.runQC(state, strat)

	state.Phase = PhaseDone
	return state, nil
}

func (e *Executor) startPhase(phase Phase) {
	if e.Metrics != nil {
		e.Metrics.StartPhase(string(phase))
	}
}

func (e *Executor) endPhase(phase Phase) {
	if e.Metrics != nil {
		e.Metrics.EndPhase(string(phase), 0)
	}
}

// scope resolves category/time_window/depth/strategy_slug/tasks/
// variables, either from caller overrides already present on state or,
// for whatever is missing, from the configured classifier.
func (e *Executor) scope(ctx context.Context, state *ExecutionState) error {
	if state.StrategySlug != "" && state.Category != "" && state.TimeWindow != "" && state.Depth != "" {
		if len(state.Tasks) == 0 {
			state.Tasks = []string{state.UserRequest}
		}
		return nil
	}
	if e.Classifier == nil {
		return &ErrUnscopedRequest{Reason: "no scope classifier configured"}
	}

	result, err := e.Classifier.Classify(ctx, state.UserRequest, e.Strategies, e.Strategies.GlobalSettings())
	if err != nil {
		return err
	}

	if state.Category == "" {
		state.Category = result.Category
	}
	if state.TimeWindow == "" {
		state.TimeWindow = result.TimeWindow
	}
	if state.Depth == "" {
		state.Depth = result.Depth
	}
	if state.StrategySlug == "" {
		state.StrategySlug = result.StrategySlug
	}
	state.Tasks = result.Tasks
	for k, v := range result.Variables {
		state.Variables[k] = v
	}
	return nil
}

// isRequestFatal reports whether err should fail the whole request
// rather than being absorbed as a DeadlineExceeded/degraded entry.
// Anything other than context cancellation/deadline propagating out of
// a fan-out errgroup is already request-fatal by construction (runStep
// only returns non-nil for ErrUnknownTool or a propagated ctx error).
func isRequestFatal(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
