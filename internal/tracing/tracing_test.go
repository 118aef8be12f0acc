package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartRequest_NoopProvider(t *testing.T) {
	ctx, span := StartRequest(context.Background(), "step", AttrEnv.String("rps"))
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
	// Without an installed provider spans are not recording; End must still be safe.
	End(span, "", nil)

	_, span = StartRequest(context.Background(), "init")
	End(span, "VALIDATION_FAILED", errors.New("bad config"))
}

func TestStartRequest_RecordsAttributesAndStatus(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartRequest(context.Background(), "step", AttrSession.String("s-1"))
	End(span, "VALIDATION_FAILED", errors.New("move out of range"))
	_, span = StartRequest(context.Background(), "reset")
	End(span, "", nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "envgate.step", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "step", attrs[AttrRequestType])
	assert.Equal(t, "s-1", attrs[AttrSession])
	assert.Equal(t, "VALIDATION_FAILED", attrs[AttrErrorCode])

	assert.Equal(t, "envgate.reset", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}
