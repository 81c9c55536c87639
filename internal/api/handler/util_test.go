package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		ok         bool
		limit      int
		offset     int
		problemTyp string
	}{
		{name: "defaults", query: "", ok: true, limit: 50, offset: 0},
		{name: "explicit", query: "?limit=10&offset=40", ok: true, limit: 10, offset: 40},
		{name: "largest_offset", query: "?offset=2147483647", ok: true, limit: 50, offset: 2147483647},
		{name: "offset_past_int32", query: "?offset=2147483648", problemTyp: "request/invalid-offset"},
		{name: "negative_offset", query: "?offset=-1", problemTyp: "request/invalid-offset"},
		{name: "limit_too_large", query: "?limit=101", problemTyp: "request/invalid-limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/v1/escrows"+tc.query, nil)
			limit, offset, ok := pagination(w, r)
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), tc.problemTyp)
				return
			}
			assert.Equal(t, tc.limit, limit)
			assert.Equal(t, tc.offset, offset)
		})
	}
}
