package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/reviewrank/pkg/logger"
)

func TestRequestLogger_EnrichesScopedLogger(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	tests := []struct {
		name    string
		ctx     func(context.Context) context.Context
		header  string
		want    map[string]string
		missing []string
	}{
		{
			name:    "identity context",
			ctx:     func(ctx context.Context) context.Context { return WithUserID(ctx, "voter-1") },
			want:    map[string]string{"user_id": "voter-1"},
			missing: []string{"correlation_id", "trace_id"},
		},
		{
			name:   "header fallback",
			header: "voter-2",
			want:   map[string]string{"user_id": "voter-2"},
		},
		{
			name:   "context wins over header",
			ctx:    func(ctx context.Context) context.Context { return WithUserID(ctx, "voter-3") },
			header: "someone-else",
			want:   map[string]string{"user_id": "voter-3"},
		},
		{
			name: "correlation and span",
			ctx: func(ctx context.Context) context.Context {
				ctx = logger.WithCorrelationID(ctx, "corr-9")
				return trace.ContextWithSpanContext(ctx, spanCtx)
			},
			want: map[string]string{
				"correlation_id": "corr-9",
				"trace_id":       "4bf92f3577b34da6a3ce929d0e0e4736",
				"span_id":        "00f067aa0ba902b7",
			},
			missing: []string{"user_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := logger.NewWithWriter("review-service", "info", &buf)

			h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.FromContext(r.Context()).Info("scoring request")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p1/rating", nil)
			if tt.ctx != nil {
				req = req.WithContext(tt.ctx(req.Context()))
			}
			if tt.header != "" {
				req.Header.Set(UserIDHeader, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			var out map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
			for k, v := range tt.want {
				assert.Equal(t, v, out[k], k)
			}
			for _, k := range tt.missing {
				assert.NotContains(t, out, k)
			}
		})
	}
}

func TestRequestLogger_DefaultWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Same(t, slog.Default(), logger.FromContext(req.Context()))
}
