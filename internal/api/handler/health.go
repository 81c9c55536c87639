package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = time.Second

type HealthHandler struct {
	db    *pgxpool.Pool
	redis redis.Cmdable
}

// NewHealthHandler accepts a nil redis client; readiness then reports the
// cache as disabled instead of failing.
func NewHealthHandler(db *pgxpool.Pool, redis redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz. The ledger cannot serve without Postgres, so a
// failed ping there is fatal. Redis only backs idempotency and job locks.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "disabled"}

	if h.db == nil {
		RespondError(w, r, http.StatusServiceUnavailable, "dependency/database-unavailable", "database not configured")
		return
	}
	if err := h.db.Ping(ctx); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "dependency/database-unavailable", "database unavailable")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "dependency/redis-unavailable", "redis unavailable")
			return
		}
		checks["redis"] = "ok"
	}

	RespondJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}
