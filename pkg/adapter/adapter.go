// Package adapter defines the tool-adapter contract and the registry that
// the pipeline executor dispatches steps against.
//
// The original system dispatches to adapters via duck typing on methods
// call/search/contents/find_similar/answer. Go has no duck typing, so each
// adapter instead declares, as a tagged capability set, which of those
// operations it implements; the executor resolves a step's use selector
// (e.g. "exa.contents") by looking up the adapter named "exa" and asserting
// the "contents" capability.
package adapter

import "context"

// Capability names understood by Resolve. These mirror the method names
// duck-typed in the source implementation.
const (
	CapCall        = "call"
	CapSearch      = "search"
	CapContents    = "contents"
	CapFindSimilar = "find_similar"
	CapAnswer      = "answer"
)

// Inputs is the rendered (post-template) input map passed to a capability.
type Inputs = map[string]any

// Evidence is declared in pkg/evidence; adapters import it directly. It is
// re-declared here only as a type alias avoidance note: adapter method
// signatures below use evidence.Evidence from the evidence package.

// Adapter is implemented by everything the executor can invoke: an adapter
// implementing one of the capability interfaces below (Caller, Searcher,
// ...) is reachable simply by existing in the Registry under its declared
// Capabilities().
type Adapter interface {
	// Name is the registry key this adapter is bound to.
	Name() string

	// Capabilities lists which of CapCall/CapSearch/CapContents/
	// CapFindSimilar/CapAnswer this adapter implements. The executor
	// rejects a step whose selector names a capability not present here,
	// even if the underlying Go type happens to implement the method
	// (Capabilities is the source of truth, not a type assertion alone).
	Capabilities() []string
}

// EvidenceResult is returned by Caller/Searcher/Contenter/FindSimilarer.
// Declared generically (any) here to avoid an import cycle with the
// evidence package from this low-level contract file; concrete adapters
// return []evidence.Evidence, which satisfies this shape.
type EvidenceResult = any

// Caller implements the base "call" capability (sonar, llm_analyzer). Not
// every adapter has it: exa declares only search/contents/find_similar/
// answer.
type Caller interface {
	Adapter
	Call(ctx context.Context, inputs Inputs) (EvidenceResult, error)
}

// Searcher implements the "search" capability (keyword/neural search).
type Searcher interface {
	Adapter
	Search(ctx context.Context, query string, inputs Inputs) (EvidenceResult, error)
}

// Contenter implements the "contents" capability (fetch one or more URLs).
type Contenter interface {
	Adapter
	Contents(ctx context.Context, urls []string, inputs Inputs) (EvidenceResult, error)
}

// FindSimilarer implements the "find_similar" capability.
type FindSimilarer interface {
	Adapter
	FindSimilar(ctx context.Context, seedURL string, inputs Inputs) (EvidenceResult, error)
}

// Answerer implements the "answer" capability: returns text, not evidence.
type Answerer interface {
	Adapter
	Answer(ctx context.Context, query string, inputs Inputs) (string, error)
}

// HasCapability reports whether a adapter declares the named capability.
func HasCapability(a Adapter, capability string) bool {
	for _, c := range a.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}
