package executor

import (
	"context"

	"github.com/researchd/researchd/pkg/strategy"
)

// runFinalize runs every finalize-phase step once, sequentially (finalize
// never fans out — it consumes the single accumulated evidence set from
// research). A finalize step's output becomes a briefing section under
// two grounded conventions: a sentinel evidence.Evidence (the
// llm_analyzer adapter's output) contributes its Snippet as one section;
// an Answer-capability or any other step whose save_as value resolves to
// a plain string contributes that string, so a later finalize step can
// also reference an earlier one's artifact via templating.
func (e *Executor) runFinalize(ctx context.Context, state *ExecutionState, strat strategy.Strategy, budget *llmBudget) error {
	steps := filterPhase(strat.ToolChain, strategy.PhaseFinalize)
	for _, step := range steps {
		evidenceBefore := len(state.Evidence)
		var priorSaveVal any
		if step.SaveAs != "" {
			priorSaveVal = state.Variables[step.SaveAs]
		}

		if err := e.runStep(ctx, state, step, state.Variables, budget); err != nil {
			return err
		}

		sectioned := false
		for _, ev := range state.Evidence[evidenceBefore:] {
			if ev.IsSentinel() && ev.Snippet != "" {
				state.Sections = append(state.Sections, ev.Snippet)
				sectioned = true
			}
		}
		if !sectioned && step.SaveAs != "" {
			if text, ok := state.Variables[step.SaveAs].(string); ok && state.Variables[step.SaveAs] != priorSaveVal {
				state.Sections = append(state.Sections, text)
			}
		}
	}
	return nil
}
