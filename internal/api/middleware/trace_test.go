package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func swapTracerProvider(t *testing.T, tp trace.TracerProvider) {
	t.Helper()
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	swapTracerProvider(t, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	return recorder
}

func TestTraceIDComesFromSpan(t *testing.T) {
	recorder := installRecorder(t)

	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/escrows", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	want := spans[0].SpanContext().TraceID().String()
	assert.Equal(t, want, w.Header().Get("X-Trace-ID"))
	assert.Equal(t, want, seen)
	assert.Contains(t, w.Header().Get("traceparent"), want)
}

func TestTraceContinuesIncomingTraceparent(t *testing.T) {
	recorder := installRecorder(t)
	const upstream = "4bf92f3577b34da6a3ce929d0e0e4736"

	h := TraceMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/v1/escrows", nil)
	req.Header.Set("traceparent", "00-"+upstream+"-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, upstream, spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	assert.Equal(t, upstream, w.Header().Get("X-Trace-ID"))
}

func TestTraceFallsBackWithoutProvider(t *testing.T) {
	swapTracerProvider(t, noop.NewTracerProvider())

	h := TraceMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/v1/escrows", nil)
	req.Header.Set("X-Trace-ID", "caller-supplied")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "caller-supplied", w.Header().Get("X-Trace-ID"))
}
