package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits unauthenticated callers, in practice the deposit
// webhook, per client IP.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitExceeded(rps, "IP")),
	)
}

// AuthRateLimiter limits authenticated callers per ledger owner. A user acting
// for an organization shares the organization's budget, so spreading escrow
// actions across members does not lift the limit.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(ownerKey),
		httprate.WithLimitHandler(limitExceeded(rps, "owner")),
	)
}

func ownerKey(r *http.Request) (string, error) {
	actor, ok := ActorFromContext(r.Context())
	if !ok || actor.IsSystem() {
		return httprate.KeyByIP(r)
	}
	return actor.Owner().String(), nil
}

func limitExceeded(rps int, scope string) http.HandlerFunc {
	detail := fmt.Sprintf("Rate limit of %d req/s exceeded for this %s", rps, scope)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		problem.Status(w, r, http.StatusTooManyRequests, problem.RateLimited, detail)
	}
}
