package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*http.Response, []byte) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func decodeHealth(t *testing.T, body []byte) map[string]string {
	t.Helper()
	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Data
}

func TestRouter_Live(t *testing.T) {
	res, body := get(t, NewRouter(nil), "/health/live")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, "alive", decodeHealth(t, body)["status"])
}

func TestRouter_ReadyHealthy(t *testing.T) {
	h := NewRouter(map[string]Check{
		"redis": func(context.Context) error { return nil },
	})

	res, body := get(t, h, "/health/ready")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]string{"status": "healthy", "redis": "healthy"}, decodeHealth(t, body))
}

func TestRouter_ReadyDegraded(t *testing.T) {
	h := NewRouter(map[string]Check{
		"database": func(context.Context) error { return errors.New("connection refused") },
		"nats":     func(context.Context) error { return nil },
	})

	res, body := get(t, h, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, map[string]string{
		"status":   "degraded",
		"database": "unhealthy",
		"nats":     "healthy",
	}, decodeHealth(t, body))
}

func TestRouter_ReadyChecksHaveDeadline(t *testing.T) {
	var hasDeadline bool
	h := NewRouter(map[string]Check{
		"slow": func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		},
	})

	get(t, h, "/health")
	assert.True(t, hasDeadline)
}

func TestRouter_Metrics(t *testing.T) {
	h := NewRouter(nil)
	get(t, h, "/health/live")

	res, body := get(t, h, "/metrics")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `o1bot_ops_http_requests_total{method="GET",path="/health/live",status="200"}`)
}

func TestRouter_NotFound(t *testing.T) {
	res, body := get(t, NewRouter(nil), "/nope")

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))
}
