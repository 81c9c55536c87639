package middleware

import (
	"context"
	"net/http"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const traceHeader = "X-Trace-ID"

// TraceMiddleware continues any W3C traceparent sent by the caller, wraps the
// request in a server span, and exposes the span's trace id as X-Trace-ID.
// When tracing is not initialized the caller's X-Trace-ID, or a fresh uuid,
// is used instead.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := observability.StartSpan(ctx, "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		)
		defer span.End()

		var traceID string
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else if traceID = r.Header.Get(traceHeader); traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = contextWithTraceID(ctx, traceID)

		w.Header().Set(traceHeader, traceID)
		propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	ctx = context.WithValue(ctx, infoContextKey, &requestInfo{})
	return context.WithValue(ctx, traceContextKey, traceID)
}

// requestInfo is filled in by inner middleware so that logging and panic
// recovery, which wrap authentication, can still name the caller.
type requestInfo struct {
	actor *domain.Actor
}

// annotatedActor returns the actor authenticated anywhere in the chain.
func annotatedActor(ctx context.Context) (domain.Actor, bool) {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor, true
	}
	if info, ok := ctx.Value(infoContextKey).(*requestInfo); ok && info.actor != nil {
		return *info.actor, true
	}
	return domain.Actor{}, false
}
