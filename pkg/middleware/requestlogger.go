package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/reviewrank/pkg/logger"
)

// RequestLogger stores a per-request logger in the context, retrievable with
// logger.FromContext. Mount it after RequestLogging and Tracing so the
// correlation and span IDs are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := requestUserID(r); id != "" {
				ctx = logger.WithUserID(ctx, id)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestUserID prefers the identity set by Identity and falls back to the
// raw header when that middleware is not mounted.
func requestUserID(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(UserIDHeader)
}
