package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "safetalk.app/mediator"

// SpanContext is a span plus the context that carries it.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan opens a child span of whatever trace ctx carries. The ids in the
// context's LogFields are copied onto the span so a trace can be found by
// question; message text never is.
//
//	sc := logger.StartSpan(ctx, "brain.dialog.advance")
//	defer sc.End()
//	ctx = sc.Context()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	opts = append(opts, trace.WithAttributes(spanAttributes(GetLogFields(ctx))...))
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartSpanFromTraceID continues a trace whose id arrived as a string on a
// queued task. An empty or malformed id starts a fresh trace.
func StartSpanFromTraceID(ctx context.Context, traceID string, name string, opts ...trace.SpanStartOption) *SpanContext {
	if remote, ok := remoteSpanContext(traceID); ok {
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
	}
	return StartSpan(ctx, name, opts...)
}

func remoteSpanContext(traceID string) (trace.SpanContext, bool) {
	if traceID == "" {
		return trace.SpanContext{}, false
	}
	id, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    id,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}

func spanAttributes(f LogFields) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if f.QuestionID != nil {
		attrs = append(attrs, attribute.Int64("safetalk.question_id", *f.QuestionID))
	}
	if f.UserID != nil {
		attrs = append(attrs, attribute.Int64("safetalk.user_id", *f.UserID))
	}
	if f.Role != nil {
		attrs = append(attrs, attribute.String("safetalk.role", *f.Role))
	}
	if f.TaskType != nil {
		attrs = append(attrs, attribute.String("safetalk.task_type", *f.TaskType))
	}
	if f.MessageID != nil {
		attrs = append(attrs, attribute.String("messaging.message.id", *f.MessageID))
	}
	return attrs
}

func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

// End is safe to call more than once.
func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError records err and marks the span failed.
func (sc *SpanContext) RecordError(err error) {
	if sc.span == nil || err == nil {
		return
	}
	sc.span.RecordError(err)
	sc.span.SetStatus(codes.Error, err.Error())
}

func (sc *SpanContext) Span() trace.Span {
	return sc.span
}
