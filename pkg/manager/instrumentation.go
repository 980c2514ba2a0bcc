package manager

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/taricklorran/AGENT-TCC/pkg/observability"
)

func startStepSpan(ctx context.Context, managerID string) (context.Context, trace.Span) {
	tracer := observability.GetTracer("agenttcc.manager")

	return tracer.Start(ctx, "manager.step",
		trace.WithAttributes(
			attribute.String(observability.AttrManagerID, managerID),
		),
	)
}
