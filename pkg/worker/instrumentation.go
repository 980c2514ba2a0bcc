package worker

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/taricklorran/AGENT-TCC/pkg/observability"
)

func startJobSpan(ctx context.Context, taskID string) (context.Context, trace.Span) {
	tracer := observability.GetTracer("agenttcc.worker")

	return tracer.Start(ctx, observability.SpanJob,
		trace.WithAttributes(
			attribute.String(observability.AttrTaskID, taskID),
		),
	)
}
