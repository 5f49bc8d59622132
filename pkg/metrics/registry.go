// Package metrics implements the run's metrics collector: per-request
// phase timing, tool call counts, token usage and source-diversity
// scoring (Collector), plus the process-wide Prometheus registry those
// per-request snapshots are emitted into at run end (Registry).
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide Prometheus registry. It is read-only
// after construction from the executor's point of view: requests never
// register new collectors on it, they only call RecordScores once at
// run end. A nil *Registry is valid and every method on it is a no-op,
// so wiring metrics is optional for callers that don't configure it.
type Registry struct {
	namespace string
	registry  *prometheus.Registry

	phaseDuration *prometheus.HistogramVec
	apiCalls      *prometheus.CounterVec
	tokenUsage    *prometheus.CounterVec

	runsTotal            *prometheus.CounterVec
	sourceDiversityScore *prometheus.GaugeVec
	uniqueDomains        *prometheus.GaugeVec
	validSources         *prometheus.GaugeVec
}

// NewRegistry creates a Registry under namespace. namespace defaults to
// "researchd" when empty.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "researchd"
	}

	r := &Registry{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	r.phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each pipeline phase in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"strategy_slug", "phase"},
	)

	r.apiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "tool_calls_total",
			Help:      "Total number of adapter calls issued by tool",
		},
		[]string{"strategy_slug", "tool_name"},
	)

	r.tokenUsage = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "token_usage_total",
			Help:      "Total tokens consumed by phase",
		},
		[]string{"strategy_slug", "phase"},
	)

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "completed_total",
			Help:      "Total number of runs scored",
		},
		[]string{"strategy_slug", "tools_used"},
	)

	r.sourceDiversityScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "source_diversity_score",
			Help:      "Source diversity score of the most recent run per strategy",
		},
		[]string{"strategy_slug"},
	)

	r.uniqueDomains = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "unique_domains",
			Help:      "Unique evidence domains of the most recent run per strategy",
		},
		[]string{"strategy_slug"},
	)

	r.validSources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "valid_sources",
			Help:      "Valid (non-sentinel) evidence count of the most recent run per strategy",
		},
		[]string{"strategy_slug"},
	)

	r.registry.MustRegister(
		r.phaseDuration, r.apiCalls, r.tokenUsage,
		r.runsTotal, r.sourceDiversityScore, r.uniqueDomains, r.validSources,
	)

	return r
}

// RecordScores emits one batch of named scores plus categorical tags
// for a completed run: the per-phase durations and token usage
// accumulated during the run, and the derived StrategyMetrics. traceID
// is not itself a label (Prometheus label cardinality must stay bounded;
// trace correlation is the tracer's job, not the metrics registry's) —
// it only appears in the accompanying structured log line.
func (r *Registry) RecordScores(traceID string, sm StrategyMetrics) {
	if r == nil {
		return
	}

	for phase, d := range sm.PhaseDurations {
		r.phaseDuration.WithLabelValues(sm.StrategySlug, phase).Observe(d.Seconds())
	}
	for phase, tokens := range sm.TokenUsage {
		if tokens > 0 {
			r.tokenUsage.WithLabelValues(sm.StrategySlug, phase).Add(float64(tokens))
		}
	}
	for tool, n := range sm.APICalls {
		if n > 0 {
			r.apiCalls.WithLabelValues(sm.StrategySlug, tool).Add(float64(n))
		}
	}

	r.runsTotal.WithLabelValues(sm.StrategySlug, toolsUsedLabel(sm.ToolsUsed)).Inc()
	r.sourceDiversityScore.WithLabelValues(sm.StrategySlug).Set(sm.SourceDiversityScore)
	r.uniqueDomains.WithLabelValues(sm.StrategySlug).Set(float64(sm.UniqueDomains))
	r.validSources.WithLabelValues(sm.StrategySlug).Set(float64(sm.ValidSources))

	slog.Info("run scored",
		"trace_id", traceID,
		"strategy_slug", sm.StrategySlug,
		"tools_used", toolsUsedLabel(sm.ToolsUsed),
		"valid_sources", sm.ValidSources,
		"unique_domains", sm.UniqueDomains,
		"unique_publishers", sm.UniquePublishers,
		"source_diversity_score", sm.SourceDiversityScore,
	)
}

// Handler returns the HTTP handler exposing this registry for scraping.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func toolsUsedLabel(tools []string) string {
	if len(tools) == 0 {
		return "none"
	}
	label := tools[0]
	for _, t := range tools[1:] {
		label += "," + t
	}
	return label
}
