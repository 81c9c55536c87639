package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayo6706/escrow-ledger/internal/api/problem"
	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/idempotency"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withActor(actor domain.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

func TestLoggingSeesActorSetByInnerMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	userID, orgID := uuid.New(), uuid.New()

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	h = withActor(domain.Actor{UserID: userID, OrgID: &orgID})(h)
	h = LoggingMiddleware(zap.New(core))(h)
	h = TraceMiddleware(h)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/escrows/x/fund", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, userID.String(), fields["user_id"])
	assert.Equal(t, orgID.String(), fields["org_id"])
	assert.EqualValues(t, http.StatusConflict, fields["status"])
	assert.NotEmpty(t, fields["trace_id"])
}

func TestRecoverWritesProblem(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := TraceMiddleware(RecoverMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/escrows", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var body problem.Details
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, problem.Type(problem.Internal), body.Type)
	assert.Equal(t, w.Header().Get("X-Trace-ID"), body.RequestID)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestOwnerKeySharesOrganizationBudget(t *testing.T) {
	orgID := uuid.New()
	keyFor := func(actor domain.Actor) string {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(ContextWithActor(r.Context(), actor))
		key, err := ownerKey(r)
		require.NoError(t, err)
		return key
	}

	alice := keyFor(domain.Actor{UserID: uuid.New(), OrgID: &orgID})
	bob := keyFor(domain.Actor{UserID: uuid.New(), OrgID: &orgID})
	solo := keyFor(domain.Actor{UserID: uuid.New()})

	assert.Equal(t, alice, bob)
	assert.NotEqual(t, alice, solo)
	assert.True(t, strings.HasPrefix(solo, domain.OwnerTypeUser+":"))
}

func TestAuthRateLimiterRejectsBurst(t *testing.T) {
	actor := domain.Actor{UserID: uuid.New()}
	h := withActor(actor)(AuthRateLimiter(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/v1/escrows", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/v1/escrows", nil))

	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), problem.RateLimited)
}

func TestIdempotencyKeyValidation(t *testing.T) {
	store := idempotency.NewStore(nil, nil, 0)
	h := IdempotencyMiddleware(store, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := []struct {
		name string
		key  string
		slug string
	}{
		{"missing", "", "idempotency/missing-key"},
		{"too long", strings.Repeat("k", maxIdempotencyKeyLen+1), "idempotency/invalid-key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/escrows", strings.NewReader(`{}`))
			if tc.key != "" {
				req.Header.Set(IdempotencyHeader, tc.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.slug)
		})
	}
}

func TestIdempotencySkipsReads(t *testing.T) {
	called := false
	h := IdempotencyMiddleware(idempotency.NewStore(nil, nil, 0), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/escrows", nil))
	assert.True(t, called)
}
