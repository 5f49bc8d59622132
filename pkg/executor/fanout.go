package executor

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/strategy"
)

// buildPasses expands a StrategyIndexEntry.FanOut policy into the list of
// scoped variable sets research will run against. Each returned map is an
// independent copy of state.Variables, safe to mutate concurrently.
func buildPasses(fanOut strategy.FanOut, state *ExecutionState) []map[string]any {
	switch fanOut.Mode {
	case strategy.FanOutTask:
		if len(state.Tasks) == 0 {
			return []map[string]any{cloneVariables(state.Variables)}
		}
		passes := make([]map[string]any, len(state.Tasks))
		for i, task := range state.Tasks {
			vars := cloneVariables(state.Variables)
			vars["topic"] = task
			passes[i] = vars
		}
		return passes

	case strategy.FanOutVar:
		items, ok := state.Variables[fanOut.Var].([]any)
		if !ok {
			if strs, ok := state.Variables[fanOut.Var].([]string); ok {
				items = make([]any, len(strs))
				for i, s := range strs {
					items[i] = s
				}
			}
		}
		if len(items) == 0 {
			return []map[string]any{cloneVariables(state.Variables)}
		}
		if fanOut.Limit > 0 && len(items) > fanOut.Limit {
			items = items[:fanOut.Limit]
		}
		mapTo := fanOut.MapTo
		if mapTo == "" {
			mapTo = "topic"
		}
		passes := make([]map[string]any, len(items))
		for i, item := range items {
			vars := cloneVariables(state.Variables)
			vars[mapTo] = item
			passes[i] = vars
		}
		return passes

	default: // strategy.FanOutNone and any unrecognized mode
		return []map[string]any{cloneVariables(state.Variables)}
	}
}

// runResearch runs every research-phase step of strat once per fan-out
// pass (passes run concurrently, bounded by the executor's fan-out
// limit), merges each pass's evidence in pass-index order (not
// completion order, so results stay deterministic across runs), then
// applies a single dedup/score/truncate pass over the merged set.
func (e *Executor) runResearch(ctx context.Context, state *ExecutionState, strat strategy.Strategy, entry strategy.StrategyIndexEntry, budget *llmBudget) error {
	steps := filterPhase(strat.ToolChain, strategy.PhaseResearch)
	if len(steps) == 0 {
		return nil
	}

	passes := buildPasses(entry.FanOut, state)
	results := make([]*ExecutionState, len(passes))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(e.fanOutLimit()))
	for i, pass := range passes {
		i, pass := i, pass
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			passState := &ExecutionState{Variables: cloneVariables(pass)}
			for _, step := range steps {
				if err := e.runStep(gctx, passState, step, passState.Variables, budget); err != nil {
					return err
				}
			}
			results[i] = passState
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, passState := range results {
		state.Evidence = append(state.Evidence, passState.Evidence...)
		state.Errors = append(state.Errors, passState.Errors...)
		mergeNewVariables(state.Variables, passes[i], passState.Variables)
	}

	state.Evidence = evidence.DedupeAndScore(state.Evidence, strat.Limits.MaxResults)
	return nil
}

// mergeNewVariables folds variables a research pass added via save_as
// (any key present in after but absent from the pass's own seed, before)
// back into the shared state, accumulating across passes the same way
// foreach accumulates across iterations.
func mergeNewVariables(dest, before, after map[string]any) {
	for k, v := range after {
		if _, seeded := before[k]; seeded {
			continue
		}
		existing, alreadyList := dest[k].([]any)
		if alreadyList {
			dest[k] = append(existing, v)
			continue
		}
		if current, ok := dest[k]; ok {
			dest[k] = []any{current, v}
			continue
		}
		dest[k] = v
	}
}

func filterPhase(steps []strategy.ToolStep, phase string) []strategy.ToolStep {
	out := make([]strategy.ToolStep, 0, len(steps))
	for _, s := range steps {
		if s.EffectivePhase() == phase {
			out = append(out, s)
		}
	}
	return out
}
