// Package executor implements the pipeline state machine: scope → fill →
// research → finalize → done/failed. It owns ExecutionState exclusively
// for the lifetime of a single request — no state is shared across calls
// to Execute, and no package-level mutable state exists here.
package executor

import (
	"github.com/google/uuid"

	"github.com/researchd/researchd/pkg/evidence"
)

// Phase names the seven states ExecutionState can be resolved into. Unlike
// strategy.ToolStep.Phase (which only distinguishes research/finalize for
// routing a step), this enumerates the full run lifecycle for diagnostics.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseScope    Phase = "scope"
	PhaseFill     Phase = "fill"
	PhaseResearch Phase = "research"
	PhaseFinalize Phase = "finalize"
	PhaseDone     Phase = "done"
	PhaseFailed   Phase = "failed"
)

// ExecutionRequest is the caller-facing input to Execute. Any of
// Category/TimeWindow/Depth/StrategySlug may be pre-set by the caller to
// bypass the scope classifier for that field; Execute only invokes the
// classifier for fields left blank.
type ExecutionRequest struct {
	UserRequest  string
	Category     string
	TimeWindow   string
	Depth        string
	StrategySlug string

	// Variables seeds state.Variables before fill runs, letting a caller
	// that already knows e.g. a fan_out driver list (variables.companies)
	// supply it without a classifier round-trip.
	Variables map[string]any
}

// Citation is one entry in the finalize-phase citation registry: a
// stable, 1-based number assigned in first-appearance order, alongside
// the source metadata the display string is built from.
type Citation struct {
	Number  int
	URL     string
	Title   string
	Snippet string
}

// ExecutionState is constructed fresh per request by Execute and returned
// to the caller after the terminal phase. It is never reused or shared.
type ExecutionState struct {
	Phase Phase

	// TraceID identifies this run for log correlation and metrics
	// emission; it never influences pipeline behavior.
	TraceID string

	UserRequest string

	// Scope outputs.
	Category     string
	TimeWindow   string
	Depth        string
	StrategySlug string
	Tasks        []string
	Variables    map[string]any

	// Research outputs.
	Evidence []evidence.Evidence

	// Finalize outputs.
	Sections   []string
	Citations  []string
	citations  []Citation

	// Diagnostics.
	Errors      []string
	Limitations []string
}

// newState seeds an ExecutionState from a request.
func newState(req ExecutionRequest) *ExecutionState {
	vars := make(map[string]any, len(req.Variables))
	for k, v := range req.Variables {
		vars[k] = v
	}
	return &ExecutionState{
		Phase:        PhaseInit,
		TraceID:      uuid.NewString(),
		UserRequest:  req.UserRequest,
		Category:     req.Category,
		TimeWindow:   req.TimeWindow,
		Depth:        req.Depth,
		StrategySlug: req.StrategySlug,
		Variables:    vars,
	}
}

// cloneVariables returns a shallow copy of vars, used to give each
// foreach iteration and each fan-out pass its own scoped variable space
// so concurrent passes never race on the same map.
func cloneVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
