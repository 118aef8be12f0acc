// Package tracing wraps OpenTelemetry spans around gateway requests.
//
// Spans go to the global tracer provider, which is a no-op until an exporter
// is installed (see the otelexport sub-package, wired only in `-tags otel`
// builds).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nextlevelbuilder/envgate"

// Attribute keys set on request spans.
const (
	AttrRequestType = attribute.Key("envgate.request.type")
	AttrSession     = attribute.Key("envgate.session_id")
	AttrEnv         = attribute.Key("envgate.env")
	AttrErrorCode   = attribute.Key("envgate.error.code")
)

// StartRequest opens a span for one protocol request.
func StartRequest(ctx context.Context, reqType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{AttrRequestType.String(reqType)}, attrs...)
	return otel.Tracer(instrumentationName).Start(ctx, "envgate."+reqType,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}

// End closes span, marking it failed with code when err is non-nil.
func End(span trace.Span, code string, err error) {
	if err != nil {
		span.SetAttributes(AttrErrorCode.String(code))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
