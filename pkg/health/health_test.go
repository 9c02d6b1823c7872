package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, hf http.HandlerFunc) (int, Response) {
	t.Helper()
	rr := httptest.NewRecorder()
	hf(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return rr.Code, resp
}

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestLiveness(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down)

	code, resp := probe(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		postgres Checker
		redis    Checker
		kafka    Checker
		code     int
		status   Status
	}{
		{"all up", up, up, up, http.StatusOK, StatusUp},
		{"kafka down degrades", up, up, down, http.StatusOK, StatusDegraded},
		{"redis down fails", up, down, up, http.StatusServiceUnavailable, StatusDown},
		{"critical beats degraded", down, up, down, http.StatusServiceUnavailable, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("postgres", tt.postgres)
			h.Register("redis", tt.redis)
			h.RegisterNonCritical("kafka", tt.kafka)

			code, resp := probe(t, h.ReadinessHandler())
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			require.Len(t, resp.Checks, 3)
			assert.True(t, resp.Checks["redis"].Critical)
			assert.False(t, resp.Checks["kafka"].Critical)
		})
	}
}

func TestReadiness_ReportsCheckError(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down)

	_, resp := probe(t, h.ReadinessHandler())
	assert.Equal(t, StatusDown, resp.Checks["postgres"].Status)
	assert.Equal(t, "connection refused", resp.Checks["postgres"].Error)
}

func TestReadiness_NoChecks(t *testing.T) {
	code, resp := probe(t, NewHandler().ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestReadiness_ChecksRunConcurrently(t *testing.T) {
	h := NewHandler()
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.RegisterCritical("postgres", slow)
	h.RegisterCritical("redis", slow)
	h.RegisterNonCritical("kafka", slow)

	start := time.Now()
	code, _ := probe(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestRegister_ReplacesByName(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down)
	h.RegisterCritical("postgres", up)

	code, resp := probe(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Checks, 1)
}
