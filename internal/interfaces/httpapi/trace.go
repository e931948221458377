package httpapi

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/riskibarqy/matchpulse/internal/interfaces/httpapi")

// startSpan opens a handler span under the request span. Requests skipped by
// RequestTracing have no parent and get the no-op span from the context.
func startSpan(r *http.Request, handler string) (context.Context, trace.Span) {
	ctx := r.Context()
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, "httpapi.Handler."+handler,
		trace.WithAttributes(attribute.String("http.route", r.Pattern)),
	)
}

func recordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
