package usecase

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	usecaseTracer   = otel.Tracer("fantasy-auction/internal/usecase")
	usecaseNoopSpan = trace.SpanFromContext(context.Background())
)

// startUsecaseSpan only opens child spans; background work without a
// parent span stays untraced.
func startUsecaseSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if strings.TrimSpace(name) == "" {
		return ctx, usecaseNoopSpan
	}
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, usecaseNoopSpan
	}
	return usecaseTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func auctionIDAttr(id string) attribute.KeyValue {
	return attribute.String("auction.id", strings.TrimSpace(id))
}

func userIDAttr(id string) attribute.KeyValue {
	return attribute.String("enduser.id", strings.TrimSpace(id))
}

// recordSpanError marks span failed unless err is a caller mistake such as
// a rejected bid.
func recordSpanError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() || isCallerError(err) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
