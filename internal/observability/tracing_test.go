package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingInstallsRecordingProvider(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "escrow-ledger", ServiceVersion: "test"})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "sweep")
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
	EndSpan(span, nil)

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "baggage")
	require.NoError(t, shutdown(context.Background()))
}

func TestEndSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prevTP) })

	_, span := StartSpan(context.Background(), "release")
	EndSpan(span, errors.New("drift"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "drift", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}
