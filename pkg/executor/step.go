package executor

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/evidence"
	"github.com/researchd/researchd/pkg/strategy"
	"github.com/researchd/researchd/pkg/template"
)

// defaultFanOutLimit bounds foreach/fan-out concurrency when the
// Executor isn't configured with one explicitly.
const defaultFanOutLimit = 4

// stepOutcome is the result of one execution of a step body (substeps
// 4-7 of the per-step algorithm), computed without touching shared
// ExecutionState so foreach iterations can run concurrently and be
// merged afterward in iteration order.
type stepOutcome struct {
	evidence []evidence.Evidence
	saveVal  any
	errEntry string
	fatal    error
}

// runStep executes one ToolStep against a scoped variable set, folding
// its outcome(s) into state.Evidence and state.Variables[save_as].
// Returns a non-nil error only for a request-fatal condition
// (ErrUnknownTool, or context cancellation propagating out of a foreach
// fan-out) — everything else is absorbed into state.Errors.
func (e *Executor) runStep(ctx context.Context, state *ExecutionState, step strategy.ToolStep, vars map[string]any, budget *llmBudget) error {
	if !template.EvalWhen(step.When, vars) {
		return nil
	}

	var outcomes []stepOutcome
	if step.Foreach == "" {
		outcomes = []stepOutcome{e.runStepOnce(ctx, step, vars, budget)}
	} else {
		items, ok := template.EvalListExpr(step.Foreach, vars)
		if !ok || len(items) == 0 {
			return nil
		}
		outcomes = make([]stepOutcome, len(items))
		g, gctx := errgroup.WithContext(ctx)
		sem := semaphore.NewWeighted(int64(e.fanOutLimit()))
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				scoped := cloneVariables(vars)
				scoped["item"] = item
				outcomes[i] = e.runStepOnce(gctx, step, scoped, budget)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	var saveVals []any
	for _, oc := range outcomes {
		if oc.fatal != nil {
			return oc.fatal
		}
		if oc.errEntry != "" {
			state.Errors = append(state.Errors, oc.errEntry)
		}
		if len(oc.evidence) > 0 {
			state.Evidence = append(state.Evidence, oc.evidence...)
		}
		if step.SaveAs != "" && oc.saveVal != nil {
			saveVals = append(saveVals, oc.saveVal)
		}
	}

	if step.SaveAs != "" && len(saveVals) > 0 {
		if step.Foreach == "" {
			state.Variables[step.SaveAs] = saveVals[0]
		} else {
			existing, _ := state.Variables[step.SaveAs].([]any)
			state.Variables[step.SaveAs] = append(existing, saveVals...)
		}
	}
	return nil
}

// runStepOnce performs substeps 4-7 of the per-step algorithm for a
// single set of variables: llm_fill, render, dispatch, collect.
func (e *Executor) runStepOnce(ctx context.Context, step strategy.ToolStep, vars map[string]any, budget *llmBudget) stepOutcome {
	inputs := make(map[string]any, len(step.Inputs))
	for k, v := range step.Inputs {
		inputs[k] = v
	}

	for _, key := range step.LLMFill {
		if _, present := inputs[key]; present {
			continue
		}
		if !budget.consume() {
			return stepOutcome{errEntry: budgetExceededEntry(step.Use)}
		}
		val, err := e.llmFill(ctx, step, key, vars)
		if err != nil {
			return stepOutcome{errEntry: transientErrorEntry(step.Use, err)}
		}
		inputs[key] = val
	}

	rendered := template.RenderInputs(inputs, vars)

	if usesLLMBudget(step.Use) {
		if !budget.consume() {
			return stepOutcome{errEntry: budgetExceededEntry(step.Use)}
		}
	}

	if e.Metrics != nil {
		e.Metrics.RecordAPICall(adapterName(step.Use))
	}

	result, err := dispatch(ctx, e.Registry, step.Use, rendered)
	if err != nil {
		var unknown *adapter.ErrUnknownTool
		if errors.As(err, &unknown) {
			return stepOutcome{fatal: err}
		}
		return stepOutcome{errEntry: transientErrorEntry(step.Use, err)}
	}

	var saveVal any
	if step.SaveAs != "" {
		if result.Text != "" {
			saveVal = result.Text
		} else if result.Evidence != nil {
			saveVal = result.Evidence
		}
	}
	return stepOutcome{evidence: result.Evidence, saveVal: saveVal}
}

func (e *Executor) fanOutLimit() int {
	if e.FanOutLimit > 0 {
		return e.FanOutLimit
	}
	return defaultFanOutLimit
}

// usesLLMBudget reports whether a step's use selector names an adapter
// that itself makes an LLM call, so it must be billed against
// limits.max_llm_queries the same as an llm_fill resolution.
func usesLLMBudget(use string) bool {
	return adapterName(use) == "llm_analyzer"
}

// adapterName extracts the registry key portion of a "adapter.capability"
// use selector (or returns use unchanged if it names no capability).
func adapterName(use string) string {
	for i, ch := range use {
		if ch == '.' {
			return use[:i]
		}
	}
	return use
}
