package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "answerdesk"

// StartAskSpan starts a span covering match, synthesis and dispatch of one question.
func StartAskSpan(ctx context.Context, source, originRef string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ask",
		trace.WithAttributes(
			attribute.String("request.source", source),
			attribute.String("request.origin_ref", originRef),
		),
	)
}

// StartDispatchSpan starts a span for routing an answer through the workflow.
func StartDispatchSpan(ctx context.Context, answerID, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("answer.id", answerID),
			attribute.String("workflow.mode", mode),
		),
	)
}

// StartPublishSpan starts a span for posting an answer to its origin.
func StartPublishSpan(ctx context.Context, answerID, source string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "publish",
		trace.WithAttributes(
			attribute.String("answer.id", answerID),
			attribute.String("publish.source", source),
		),
	)
}

// StartResolveSpan starts a span for applying a maintainer decision.
func StartResolveSpan(ctx context.Context, answerID, decision string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "approval.resolve",
		trace.WithAttributes(
			attribute.String("answer.id", answerID),
			attribute.String("approval.decision", decision),
		),
	)
}
