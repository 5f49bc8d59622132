package adapter

import (
	"fmt"

	"github.com/researchd/researchd/pkg/registry"
)

// ErrUnknownTool is the fatal error kind for an unresolvable tool use: a
// step references an adapter name that was never registered, or a
// capability the registered adapter does not declare.
type ErrUnknownTool struct {
	Use string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Use)
}

// Registry is the process-wide, name-keyed tool-adapter map. Populated at
// startup; read-only afterward (the executor's hot path never calls
// Register).
type Registry struct {
	base *registry.BaseRegistry[Adapter]
}

// NewRegistry constructs an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Adapter]()}
}

// RegisterAdapter admits an adapter under its own Name(). Fails if that
// name is already bound.
func (r *Registry) RegisterAdapter(a Adapter) error {
	return r.base.Register(a.Name(), a)
}

// Get fails with ErrUnknownTool if name is not bound.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.base.Get(name)
	if !ok {
		return nil, &ErrUnknownTool{Use: name}
	}
	return a, nil
}

// IsRegistered reports whether name is bound, without raising.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.base.Get(name)
	return ok
}

// Resolved is the outcome of resolving a step's `use` selector, e.g.
// "exa.contents", against the registry.
type Resolved struct {
	Adapter    Adapter
	Capability string
}

// Resolve splits a use selector of the form "<adapter>.<capability>" (or
// bare "<adapter>", implying the "call" capability) and looks up the named
// adapter, asserting it declares the requested capability.
func Resolve(r *Registry, use string) (Resolved, error) {
	adapterName, capability := splitUse(use)

	a, err := r.Get(adapterName)
	if err != nil {
		return Resolved{}, &ErrUnknownTool{Use: use}
	}
	if !HasCapability(a, capability) {
		return Resolved{}, &ErrUnknownTool{Use: use}
	}
	return Resolved{Adapter: a, Capability: capability}, nil
}

func splitUse(use string) (adapterName, capability string) {
	for i := 0; i < len(use); i++ {
		if use[i] == '.' {
			return use[:i], use[i+1:]
		}
	}
	return use, CapCall
}
