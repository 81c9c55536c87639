package problem

import (
	"encoding/json"
	"net/http"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.escrow-ledger.dev/"
	traceHeader = "X-Trace-ID"
)

// Slugs shared by middleware. Handlers may pass any other slug to Type.
const (
	RateLimited       = "rate-limit-exceeded"
	Internal          = "internal-server-error"
	RouteNotFound     = "route/not-found"
	MethodNotAllowed  = "route/method-not-allowed"
	InvalidBody       = "request/invalid-body"
	IdempotencyPrefix = "idempotency/"
)

// Details is an RFC 7807 body. RequestID carries the trace id so clients can
// quote it back when reporting a failed escrow action.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

// Type expands a slug into an absolute problem type URI. Absolute URIs and
// about:blank pass through unchanged.
func Type(slug string) string {
	switch {
	case slug == "", slug == "about:blank":
		return "about:blank"
	case len(slug) > 4 && slug[:4] == "http":
		return slug
	default:
		return baseTypeURL + slug
	}
}

// Write sends an RFC 7807 response. An empty title falls back to the status text.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	d := Details{
		Type:   Type(problemType),
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if d.Title == "" {
		d.Title = http.StatusText(status)
	}
	d.RequestID = w.Header().Get(traceHeader)
	if r != nil {
		d.Instance = r.URL.Path
		if d.RequestID == "" {
			d.RequestID = r.Header.Get(traceHeader)
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(d)
}

// Status writes a problem whose title is the standard text for status.
func Status(w http.ResponseWriter, r *http.Request, status int, slug, detail string) {
	Write(w, r, status, slug, "", detail)
}
