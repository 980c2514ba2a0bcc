package agent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/taricklorran/AGENT-TCC/pkg/observability"
)

func startToolSpan(ctx context.Context, agentID, toolName string) (context.Context, trace.Span) {
	tracer := observability.GetTracer("agenttcc.agent")

	return tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String(observability.AttrToolName, toolName),
		),
	)
}

func recordToolMetrics(ctx context.Context, toolName string, success bool) {
	observability.GetGlobalMetrics().RecordToolCall(ctx, toolName, success)
}
