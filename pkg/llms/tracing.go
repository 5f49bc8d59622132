package llms

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("researchd/llms")

// startCompletionSpan opens a span around a single provider call. Callers
// get a no-op span (and near-zero overhead) until the process wires a real
// TracerProvider via otel.SetTracerProvider; this module never does that
// itself, leaving exporter choice to the deployment.
func startCompletionSpan(ctx context.Context, provider, model string, streaming bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "llm.complete",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
			attribute.Bool("llm.streaming", streaming),
		),
	)
}

// endCompletionSpan records the call outcome and closes span. err may be
// nil for a successful call.
func endCompletionSpan(span trace.Span, tokens int, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("llm.tokens_total", tokens))
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
