package executor

import "fmt"

// ErrUnscopedRequest mirrors classifier.ErrUnscopedRequest for the cases
// where Execute is asked to run scope with no classifier configured at
// all (a wiring error, not a classification failure), or the resolved
// strategy has no index entry.
type ErrUnscopedRequest struct {
	Reason string
}

func (e *ErrUnscopedRequest) Error() string {
	return fmt.Sprintf("unscoped request: %s", e.Reason)
}

// degradedError entries are never returned from Execute; they are
// recorded as state.Errors strings. These constructors just keep the
// wording consistent across call sites.

func transientErrorEntry(use string, err error) string {
	return fmt.Sprintf("adapter %q: transient error, step degraded to empty output: %v", use, err)
}

func budgetExceededEntry(use string) string {
	return fmt.Sprintf("budget exceeded: max_llm_queries reached, step %q degraded to empty output", use)
}

func deadlineExceededEntry(phase Phase) string {
	return fmt.Sprintf("deadline exceeded during %s phase: finalizing on evidence collected so far", phase)
}
