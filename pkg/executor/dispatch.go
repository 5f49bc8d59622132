package executor

import (
	"context"

	"github.com/researchd/researchd/pkg/adapter"
	"github.com/researchd/researchd/pkg/evidence"
)

// dispatchResult is the outcome of invoking one resolved capability.
// Exactly one of Evidence/Text is meaningful, depending on capability:
// Answer returns Text, everything else returns Evidence.
type dispatchResult struct {
	Evidence []evidence.Evidence
	Text     string
}

// dispatch resolves step.Use against the registry and invokes the
// capability it names. ErrUnknownTool is the only error kind dispatch
// ever surfaces directly — it is request-fatal and the caller (runStep)
// does not attempt to degrade it. Every other error (network failure,
// bad request, rejected credentials) is classified as AdapterTransient
// by the caller: httpclient.Client has already exhausted its own
// bounded retries by the time an error reaches here, so there is
// nothing left to retry at this layer.
func dispatch(ctx context.Context, reg *adapter.Registry, use string, inputs adapter.Inputs) (dispatchResult, error) {
	resolved, err := adapter.Resolve(reg, use)
	if err != nil {
		return dispatchResult{}, err
	}

	switch resolved.Capability {
	case adapter.CapCall:
		caller, ok := resolved.Adapter.(adapter.Caller)
		if !ok {
			return dispatchResult{}, &adapter.ErrUnknownTool{Use: use}
		}
		out, err := caller.Call(ctx, inputs)
		if err != nil {
			return dispatchResult{}, err
		}
		return dispatchResult{Evidence: asEvidence(out)}, nil

	case adapter.CapSearch:
		searcher, ok := resolved.Adapter.(adapter.Searcher)
		if !ok {
			return dispatchResult{}, &adapter.ErrUnknownTool{Use: use}
		}
		out, err := searcher.Search(ctx, stringInput(inputs, "query"), inputs)
		if err != nil {
			return dispatchResult{}, err
		}
		return dispatchResult{Evidence: asEvidence(out)}, nil

	case adapter.CapContents:
		contenter, ok := resolved.Adapter.(adapter.Contenter)
		if !ok {
			return dispatchResult{}, &adapter.ErrUnknownTool{Use: use}
		}
		out, err := contenter.Contents(ctx, urlsInput(inputs), inputs)
		if err != nil {
			return dispatchResult{}, err
		}
		return dispatchResult{Evidence: asEvidence(out)}, nil

	case adapter.CapFindSimilar:
		finder, ok := resolved.Adapter.(adapter.FindSimilarer)
		if !ok {
			return dispatchResult{}, &adapter.ErrUnknownTool{Use: use}
		}
		out, err := finder.FindSimilar(ctx, stringInput(inputs, "url"), inputs)
		if err != nil {
			return dispatchResult{}, err
		}
		return dispatchResult{Evidence: asEvidence(out)}, nil

	case adapter.CapAnswer:
		answerer, ok := resolved.Adapter.(adapter.Answerer)
		if !ok {
			return dispatchResult{}, &adapter.ErrUnknownTool{Use: use}
		}
		text, err := answerer.Answer(ctx, stringInput(inputs, "query"), inputs)
		if err != nil {
			return dispatchResult{}, err
		}
		return dispatchResult{Text: text}, nil

	default:
		return dispatchResult{}, &adapter.ErrUnknownTool{Use: use}
	}
}

func stringInput(inputs adapter.Inputs, key string) string {
	s, _ := inputs[key].(string)
	return s
}

func urlsInput(inputs adapter.Inputs) []string {
	if urls, ok := inputs["urls"].([]string); ok {
		return urls
	}
	if raw, ok := inputs["urls"].([]any); ok {
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if url := stringInput(inputs, "url"); url != "" {
		return []string{url}
	}
	return nil
}

// asEvidence coerces a Caller/Searcher/Contenter/FindSimilarer result
// (typed adapter.EvidenceResult = any in the low-level contract, but
// every concrete adapter in this module returns []evidence.Evidence)
// back to its concrete type.
func asEvidence(v any) []evidence.Evidence {
	out, ok := v.([]evidence.Evidence)
	if !ok {
		return nil
	}
	return out
}
