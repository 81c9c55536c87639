package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/escrow-ledger/internal/api/middleware"
	"github.com/ayo6706/escrow-ledger/internal/api/problem"
	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	maxPageSize   = 100
	maxPageOffset = math.MaxInt32
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok || actor.IsSystem() {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return domain.Actor{}, false
	}
	return actor, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-"+name, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

// pagination reads limit/offset query parameters. Missing values default to
// 50 and 0. Offsets must fit the int32 OFFSET parameter of the list queries.
func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, offset := 50, 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxPageSize {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-limit", "limit must be between 1 and 100")
			return 0, 0, false
		}
		limit = parsed
	}
	if v := strings.TrimSpace(r.URL.Query().Get("offset")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > maxPageOffset {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-offset", "offset must be an integer between 0 and 2147483647")
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}

// writeServiceError maps domain and service errors onto problem responses.
// Anything unrecognized is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var transitionErr *domain.TransitionError
	switch {
	case errors.As(err, &transitionErr):
		RespondError(w, r, http.StatusConflict, "escrow/invalid-state-transition", err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		RespondError(w, r, http.StatusNotFound, "account/not-found", "Account not found")
	case errors.Is(err, domain.ErrEscrowNotFound):
		RespondError(w, r, http.StatusNotFound, "escrow/not-found", "Escrow not found")
	case errors.Is(err, domain.ErrWithdrawalNotFound):
		RespondError(w, r, http.StatusNotFound, "withdrawal/not-found", "Withdrawal not found")
	case errors.Is(err, domain.ErrServiceTypeNotFound):
		RespondError(w, r, http.StatusNotFound, "service-type/not-found", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		RespondError(w, r, http.StatusUnprocessableEntity, "ledger/insufficient-balance", "Insufficient available balance")
	case errors.Is(err, domain.ErrPermissionDenied):
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		w.Header().Set("Retry-After", "1")
		RespondError(w, r, http.StatusConflict, "ledger/concurrent-modification", "Resource is busy, retry the request")
	case errors.Is(err, domain.ErrDuplicateReference):
		RespondError(w, r, http.StatusConflict, "ledger/duplicate-reference", err.Error())
	case errors.Is(err, service.ErrDepositPayloadMismatch):
		RespondError(w, r, http.StatusConflict, "webhook/payload-mismatch", err.Error())
	case errors.Is(err, service.ErrInvalidSignature):
		RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnsupportedCurrency),
		errors.Is(err, domain.ErrInvalidOwner),
		errors.Is(err, domain.ErrInvalidRequest):
		RespondError(w, r, http.StatusBadRequest, "request/invalid", err.Error())
	default:
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error(op+" failed", zap.Error(err), zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
