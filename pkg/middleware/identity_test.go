package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"forwarded user", "user-42", "user-42"},
		{"trimmed", "  user-7 ", "user-7"},
		{"anonymous", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = UserIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/products/p-1/reviews", nil)
			if tt.header != "" {
				req.Header.Set(UserIDHeader, tt.header)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCacheControl(t *testing.T) {
	tests := []struct {
		name   string
		maxAge int
		method string
		want   string
	}{
		{"get", 60, http.MethodGet, "public, max-age=60"},
		{"head", 60, http.MethodHead, "public, max-age=60"},
		{"post untouched", 60, http.MethodPost, ""},
		{"disabled", 0, http.MethodGet, "no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CacheControl(tt.maxAge)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/v1/products/p-1/rating", nil))
			assert.Equal(t, tt.want, rec.Header().Get("Cache-Control"))
		})
	}
}
