package llm

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/taricklorran/AGENT-TCC/pkg/observability"
)

func startLLMSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	tracer := observability.GetTracer("agenttcc.llm")

	return tracer.Start(ctx, observability.SpanLLMCall,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, model),
		),
	)
}

func recordLLMMetrics(ctx context.Context, model string, err error) {
	observability.GetGlobalMetrics().RecordLLMCall(ctx, model, err)
}
