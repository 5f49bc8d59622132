// Package strategy implements the strategy & config store: loading,
// validating, and serving Strategy documents and GlobalSettings from a
// durable store into a process-wide, immutable-after-boot cache.
//
// The "immutability flag" of the source implementation (a package-level
// bool, tested and cleared by hand in tests) is re-cast per the design
// notes as a type-level distinction: Store is the boot-time builder,
// Cache is the read-only handle returned by Store.Build. No mutation API
// exists on Cache.
package strategy

// Meta identifies and classifies a strategy.
type Meta struct {
	Slug       string `mapstructure:"slug" json:"slug"`
	Version    int    `mapstructure:"version" json:"version"`
	Category   string `mapstructure:"category" json:"category"`
	TimeWindow string `mapstructure:"time_window" json:"time_window"`
	Depth      string `mapstructure:"depth" json:"depth"`
}

// ToolStep is the sum of the legacy {name,params,loop} shape and the
// extended {use,inputs,llm_fill,save_as,foreach,when,phase} shape. The
// loader (normalize.go) accepts either shape from the stored document and
// normalizes to this single representation.
type ToolStep struct {
	// Use names the adapter and optional capability, e.g. "sonar" or
	// "exa.contents". For legacy steps this is populated from Name.
	Use string `mapstructure:"use" json:"use"`

	Description string `mapstructure:"description" json:"description,omitempty"`

	// Inputs is evaluated with the template engine against the current
	// variables before dispatch. For legacy steps this is populated from
	// Params.
	Inputs map[string]any `mapstructure:"inputs" json:"inputs,omitempty"`

	// LLMFill lists input keys whose values are LLM-filled when absent
	// from Inputs; the check runs before template rendering.
	LLMFill []string `mapstructure:"llm_fill" json:"llm_fill,omitempty"`

	// SaveAs names the state.variables destination for this step's raw
	// output. Across foreach iterations, values accumulate (append);
	// legacy single-shot steps assign a scalar.
	SaveAs string `mapstructure:"save_as" json:"save_as,omitempty"`

	// Foreach is a list-expression string; when set, the step executes
	// once per resolved item, with the loop variable bound in a scoped
	// copy of state.variables.
	Foreach string `mapstructure:"foreach" json:"foreach,omitempty"`

	// When is a boolean expression over state.variables; the step is
	// skipped when it evaluates falsy.
	When string `mapstructure:"when" json:"when,omitempty"`

	// Phase routes the step to "research" (default, zero value) or
	// "finalize".
	Phase string `mapstructure:"phase" json:"phase,omitempty"`

	// WasLegacy records whether this step arrived in the legacy
	// {name,params,loop} shape, purely for diagnostics; it has no effect
	// on execution semantics once normalized.
	WasLegacy bool `mapstructure:"-" json:"-"`
	Loop      int  `mapstructure:"loop" json:"loop,omitempty"`
}

// EffectivePhase returns step.Phase, defaulting to "research".
func (s ToolStep) EffectivePhase() string {
	if s.Phase == "" {
		return PhaseResearch
	}
	return s.Phase
}

const (
	PhaseResearch = "research"
	PhaseFinalize = "finalize"
)

// Strategy is a named, versioned recipe governing a research execution.
type Strategy struct {
	Meta      Meta              `mapstructure:"meta" json:"meta"`
	Queries   map[string]string `mapstructure:"queries" json:"queries,omitempty"`
	ToolChain []ToolStep        `mapstructure:"tool_chain" json:"tool_chain"`
	Limits    Limits            `mapstructure:"limits" json:"limits,omitempty"`
	Filters   map[string]any    `mapstructure:"filters" json:"filters,omitempty"`
	Quorum    map[string]any    `mapstructure:"quorum" json:"quorum,omitempty"`
	Finalize  FinalizePolicy    `mapstructure:"finalize" json:"finalize,omitempty"`
}

// Limits bounds resource consumption of a single run of a strategy.
type Limits struct {
	MaxResults    int `mapstructure:"max_results" json:"max_results,omitempty"`
	MaxLLMQueries int `mapstructure:"max_llm_queries" json:"max_llm_queries,omitempty"`
}

// FinalizePolicy declares the sections a strategy's finalize phase is
// expected to produce, for the QC "structure" check.
type FinalizePolicy struct {
	Sections []string `mapstructure:"sections" json:"sections,omitempty"`
}

// RecencyFilter returns filters.recency and whether it was set.
func (s Strategy) RecencyFilter() (string, bool) {
	v, ok := s.Filters["recency"]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// QuorumMinSources returns quorum.min_sources and whether it was set.
func (s Strategy) QuorumMinSources() (int, bool) {
	v, ok := s.Quorum["min_sources"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Variable describes a variable a strategy expects to be supplied by the
// scope classifier.
type Variable struct {
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description,omitempty"`
}

// FanOut is the strategy-level fan-out policy on a StrategyIndexEntry. It
// accepts either the bare strings "none"/"task" or an object
// {mode:"var", var, map_to, limit?} from the stored document; Mode is
// always normalized to one of FanOutNone/FanOutTask/FanOutVar.
type FanOut struct {
	Mode  string `mapstructure:"mode" json:"mode"`
	Var   string `mapstructure:"var" json:"var,omitempty"`
	MapTo string `mapstructure:"map_to" json:"map_to,omitempty"`
	Limit int    `mapstructure:"limit" json:"limit,omitempty"`
}

const (
	FanOutNone = "none"
	FanOutTask = "task"
	FanOutVar  = "var"
)

// StrategyIndexEntry is a single entry in the strategy index: the
// companion document the scope classifier and selector consult without
// loading the full strategy body.
type StrategyIndexEntry struct {
	Slug              string     `mapstructure:"slug" json:"slug"`
	Category          string     `mapstructure:"category" json:"category"`
	TimeWindow        string     `mapstructure:"time_window" json:"time_window"`
	Depth             string     `mapstructure:"depth" json:"depth"`
	Title             string     `mapstructure:"title" json:"title,omitempty"`
	Description       string     `mapstructure:"description" json:"description,omitempty"`
	Priority          int        `mapstructure:"priority" json:"priority"`
	Active            bool       `mapstructure:"active" json:"active"`
	RequiredVariables []Variable `mapstructure:"required_variables" json:"required_variables,omitempty"`
	FanOut            FanOut     `mapstructure:"-" json:"fan_out"`
}

// LLMStageDefaults is the per-stage {model, temperature?, max_tokens?}
// block under global_settings.llm_defaults.
type LLMStageDefaults struct {
	Model       string  `mapstructure:"model" json:"model"`
	Temperature float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens,omitempty"`
}

// GlobalSettings carries LLM defaults and prompt templates read once at
// boot alongside the strategy documents.
type GlobalSettings struct {
	LLMDefaults map[string]LLMStageDefaults `mapstructure:"llm_defaults" json:"llm_defaults"`
	Prompts     map[string]string           `mapstructure:"prompts" json:"prompts"`

	// Overrides holds per-(strategy_slug, step_use) LLM setting
	// overrides layered on top of LLMDefaults.
	Overrides []LLMOverride `mapstructure:"overrides" json:"overrides,omitempty"`
}

// LLMOverride narrows an LLM stage setting to a specific strategy and/or
// step `use` selector.
type LLMOverride struct {
	StrategySlug string           `mapstructure:"strategy_slug" json:"strategy_slug,omitempty"`
	StepUse      string           `mapstructure:"step_use" json:"step_use,omitempty"`
	Stage        string           `mapstructure:"stage" json:"stage"`
	Settings     LLMStageDefaults `mapstructure:"settings" json:"settings"`
}

// ResolveLLMSetting returns the effective LLM setting for a stage, applying
// the most specific matching override (slug+use, then slug-only, then
// use-only) over LLMDefaults[stage].
func (g GlobalSettings) ResolveLLMSetting(stage, strategySlug, stepUse string) LLMStageDefaults {
	result := g.LLMDefaults[stage]

	best := -1
	var bestOverride LLMStageDefaults
	for _, o := range g.Overrides {
		if o.Stage != stage {
			continue
		}
		slugMatch := o.StrategySlug == "" || o.StrategySlug == strategySlug
		useMatch := o.StepUse == "" || o.StepUse == stepUse
		if !slugMatch || !useMatch {
			continue
		}
		specificity := 0
		if o.StrategySlug != "" {
			specificity++
		}
		if o.StepUse != "" {
			specificity++
		}
		if specificity > best {
			best = specificity
			bestOverride = o.Settings
		}
	}
	if best < 0 {
		return result
	}
	if bestOverride.Model != "" {
		result.Model = bestOverride.Model
	}
	if bestOverride.Temperature != 0 {
		result.Temperature = bestOverride.Temperature
	}
	if bestOverride.MaxTokens != 0 {
		result.MaxTokens = bestOverride.MaxTokens
	}
	return result
}
