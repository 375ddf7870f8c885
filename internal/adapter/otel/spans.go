package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentplane"

// StartPipelineSpan starts a span for a provisioning pipeline run.
func StartPipelineSpan(ctx context.Context, pipelineID, agentID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline",
		trace.WithAttributes(
			attribute.String("pipeline.id", pipelineID),
			attribute.String("agent.id", agentID),
		),
	)
}

// StartStageSpan starts a span for one pipeline stage.
func StartStageSpan(ctx context.Context, pipelineID, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "stage",
		trace.WithAttributes(
			attribute.String("pipeline.id", pipelineID),
			attribute.String("stage.name", stage),
		),
	)
}
