package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/ayo6706/escrow-ledger/internal/api/problem"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"go.uber.org/zap"
)

// RecoverMiddleware turns a panic in an escrow or ledger handler into a 500
// problem response. Any open transaction has already been rolled back by its
// deferred Rollback by the time the panic reaches here.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				observability.IncrementPanic()

				fields := []zap.Field{
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				}
				if actor, ok := annotatedActor(r.Context()); ok {
					fields = append(fields, zap.String("user_id", actor.UserID.String()))
				}
				logger.Error("panic recovered", fields...)

				problem.Status(w, r, http.StatusInternalServerError, problem.Internal, "unexpected server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
