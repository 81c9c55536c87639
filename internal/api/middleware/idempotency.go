package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/api/problem"
	"github.com/ayo6706/escrow-ledger/internal/idempotency"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayHeader      = "X-Idempotent-Replay"

	maxIdempotencyKeyLen = 255
	// A concurrent duplicate waits at most this long for the first request
	// to finish before it is told to retry.
	idempotencyWait = 5 * time.Second
)

// IdempotencyMiddleware enforces the Idempotency-Key contract on escrow and
// ledger mutations. The first request with a key runs and its response is
// stored. Later requests with the same key and body replay that response, and
// the same key with a different body is a conflict. Keys are scoped to the
// authenticated user, so the middleware must run after AuthMiddleware.
func IdempotencyMiddleware(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := r.Header.Get(IdempotencyHeader)
			switch {
			case clientKey == "":
				observability.IncrementIdempotencyEvent("missing_key")
				problem.Status(w, r, http.StatusBadRequest, problem.IdempotencyPrefix+"missing-key", "Idempotency-Key header is required")
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				problem.Status(w, r, http.StatusBadRequest, problem.IdempotencyPrefix+"invalid-key", "Idempotency-Key must be at most 255 characters")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				problem.Status(w, r, http.StatusBadRequest, problem.InvalidBody, "Failed to read request body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := idempotency.ScopedKey(UserIDFromContext(r.Context()), clientKey)
			reqHash := hashRequest(r.Method, r.URL.Path, body)
			log := logger.With(zap.String("idempotency_key", key), zap.String("trace_id", TraceIDFromContext(r.Context())))

			rec, err := store.Lookup(r.Context(), key, reqHash)
			switch {
			case err == nil:
				observability.IncrementIdempotencyEvent("replay")
				respondFromRecord(w, rec)
				return
			case errors.Is(err, idempotency.ErrHashMismatch):
				observability.IncrementIdempotencyEvent("hash_mismatch")
				problem.Status(w, r, http.StatusConflict, problem.IdempotencyPrefix+"key-conflict", "Idempotency-Key was already used with a different request")
				return
			case errors.Is(err, idempotency.ErrInProgress):
				awaitAndReplay(w, r, store, log, key, reqHash)
				return
			case !errors.Is(err, idempotency.ErrNotFound):
				observability.IncrementIdempotencyEvent("lookup_error")
				log.Warn("idempotency lookup failed", zap.Error(err))
			}

			reserved, err := store.Reserve(r.Context(), key, reqHash, r.Method, r.URL.Path)
			if err != nil {
				observability.IncrementIdempotencyEvent("reserve_error")
				log.Error("idempotency reserve failed", zap.Error(err))
				problem.Status(w, r, http.StatusServiceUnavailable, problem.IdempotencyPrefix+"unavailable", "idempotency store unavailable")
				return
			}
			if !reserved {
				// Lost the insert race to a concurrent duplicate.
				awaitAndReplay(w, r, store, log, key, reqHash)
				return
			}
			observability.IncrementIdempotencyEvent("reserved")

			recorder := &bodyRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)
			if recorder.status == 0 {
				recorder.status = http.StatusOK
			}

			// The handler has finished; do not let a client disconnect
			// strand the reservation.
			ctx := context.WithoutCancel(r.Context())

			// A 5xx means nothing was committed, so free the key for a retry.
			if recorder.status >= http.StatusInternalServerError {
				if err := store.Release(ctx, key, reqHash); err != nil {
					log.Warn("idempotency release failed", zap.Error(err))
				}
				observability.IncrementIdempotencyEvent("released")
				return
			}

			contentType := recorder.Header().Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			if _, err := store.Finalize(ctx, key, reqHash, recorder.status, recorder.body.Bytes(), contentType); err != nil {
				observability.IncrementIdempotencyEvent("finalize_error")
				log.Warn("idempotency finalize failed", zap.Error(err))
				return
			}
			observability.IncrementIdempotencyEvent("finalized")
		})
	}
}

func awaitAndReplay(w http.ResponseWriter, r *http.Request, store *idempotency.Store, log *zap.Logger, key, reqHash string) {
	ctx, cancel := context.WithTimeout(r.Context(), idempotencyWait)
	defer cancel()

	rec, err := store.WaitForCompletion(ctx, key, reqHash)
	if err == nil {
		observability.IncrementIdempotencyEvent("replay_after_wait")
		respondFromRecord(w, rec)
		return
	}
	if errors.Is(err, idempotency.ErrHashMismatch) {
		observability.IncrementIdempotencyEvent("hash_mismatch")
		problem.Status(w, r, http.StatusConflict, problem.IdempotencyPrefix+"key-conflict", "Idempotency-Key was already used with a different request")
		return
	}
	observability.IncrementIdempotencyEvent("in_progress_conflict")
	log.Warn("idempotency wait failed", zap.Error(err))
	w.Header().Set("Retry-After", "1")
	problem.Status(w, r, http.StatusConflict, problem.IdempotencyPrefix+"in-progress", "a request with this Idempotency-Key is still being processed")
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, method+"|"+path+"|")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (br *bodyRecorder) WriteHeader(code int) {
	if br.status == 0 {
		br.status = code
	}
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	br.body.Write(b)
	return br.ResponseWriter.Write(b)
}

func respondFromRecord(w http.ResponseWriter, rec *idempotency.Record) {
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set(replayHeader, rec.ServedBy)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}
