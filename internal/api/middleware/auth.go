package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/escrow-ledger/internal/api/problem"
	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	actorContextKey contextKey = "actor"
	traceContextKey contextKey = "trace_id"
	infoContextKey  contextKey = "request_info"
)

// ActingOrgHeader selects which of the caller's organizations a request acts
// for. It must match the org_id claim.
const ActingOrgHeader = "X-Acting-Org"

var jwtSecret []byte
var jwtIssuer string
var jwtAudience string

// Claims is the token payload issued by the identity provider.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	OrgID  string `json:"org_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

func JWTSecret() []byte {
	clone := make([]byte, len(jwtSecret))
	copy(clone, jwtSecret)
	return clone
}

func JWTIssuer() string {
	return jwtIssuer
}

func JWTAudience() string {
	return jwtAudience
}

func writeAuthProblem(w http.ResponseWriter, r *http.Request, status int, slug, detail string) {
	problem.Write(w, r, status, problem.Type("auth/"+slug), http.StatusText(status), detail)
}

// AuthMiddleware validates the JWT and stores the resulting domain.Actor in
// the request context. A request acts for an organization only when it sends
// X-Acting-Org and the token's org_id matches.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeAuthProblem(w, r, http.StatusUnauthorized, "authorization-header-required", "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeAuthProblem(w, r, http.StatusUnauthorized, "invalid-token-format", "Invalid token format")
			return
		}
		if len(jwtSecret) == 0 {
			writeAuthProblem(w, r, http.StatusInternalServerError, "misconfigured", "auth is not configured")
			return
		}

		claims := &Claims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if jwtIssuer != "" {
			opts = append(opts, jwt.WithIssuer(jwtIssuer))
		}
		if jwtAudience != "" {
			opts = append(opts, jwt.WithAudience(jwtAudience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return jwtSecret, nil
		}, opts...)
		if err != nil || !token.Valid {
			writeAuthProblem(w, r, http.StatusUnauthorized, "invalid-token", "Invalid token")
			return
		}
		if claims.Subject != "" && claims.Subject != claims.UserID {
			writeAuthProblem(w, r, http.StatusUnauthorized, "invalid-token-claims", "Invalid token claims")
			return
		}

		actor, err := actorFromClaims(claims, r.Header.Get(ActingOrgHeader))
		if err != nil {
			writeAuthProblem(w, r, http.StatusForbidden, "invalid-acting-org", err.Error())
			return
		}
		if actor.UserID == uuid.Nil {
			writeAuthProblem(w, r, http.StatusUnauthorized, "invalid-token-claims", "Invalid token claims")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

func actorFromClaims(claims *Claims, actingOrg string) (domain.Actor, error) {
	userID, err := uuid.Parse(strings.TrimSpace(claims.UserID))
	if err != nil {
		return domain.Actor{}, nil
	}
	actor := domain.Actor{
		UserID:  userID,
		Email:   strings.ToLower(strings.TrimSpace(claims.Email)),
		IsAdmin: claims.Role == domain.RoleAdmin,
	}

	actingOrg = strings.TrimSpace(actingOrg)
	if actingOrg == "" {
		return actor, nil
	}
	orgID, err := uuid.Parse(actingOrg)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%s is not a valid organization id", ActingOrgHeader)
	}
	if claims.OrgID == "" || !strings.EqualFold(strings.TrimSpace(claims.OrgID), orgID.String()) {
		return domain.Actor{}, fmt.Errorf("token is not a member of organization %s", orgID)
	}
	actor.OrgID = &orgID
	return actor, nil
}

// RequireAdmin rejects callers whose token does not carry the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || !actor.IsAdmin {
			writeAuthProblem(w, r, http.StatusForbidden, "insufficient-permissions", "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ContextWithActor stores actor for downstream handlers and records it on the
// request info that outer middleware logs from.
func ContextWithActor(ctx context.Context, actor domain.Actor) context.Context {
	if info, ok := ctx.Value(infoContextKey).(*requestInfo); ok {
		info.actor = &actor
	}
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext returns the authenticated actor.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	if ctx == nil {
		return domain.Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey).(domain.Actor)
	return actor, ok
}

// UserIDFromContext returns the authenticated user ID, or "" when absent.
func UserIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == uuid.Nil {
		return ""
	}
	return actor.UserID.String()
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
