package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrolworks/inspection-service/internal/http/ratelimit"
)

func testConfig() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: 1000,
		MaxRetries:        2,
		InitialBackoffMs:  1,
		MaxBackoffMs:      5,
	}
}

func TestGetJSONDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Internal-API-Key"))
		w.Write([]byte(`{"status":"success","data":{"count":3},"timestamp":"2026-08-26T10:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", testConfig())

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "/api/tasks", &out))
	assert.Equal(t, 3, out.Count)
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"error","error":{"code":"NOT_FOUND","message":"resource not found"},"timestamp":"2026-08-26T10:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testConfig())

	err := client.GetJSON(context.Background(), "/api/tasks/nope", nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"success","data":null,"timestamp":"2026-08-26T10:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testConfig())

	require.NoError(t, client.GetJSON(context.Background(), "/health", nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestExhaustedRetriesReturnRetryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testConfig())

	err := client.GetJSON(context.Background(), "/health", nil)
	require.Error(t, err)

	retryErr, ok := err.(*ratelimit.RetryError)
	require.True(t, ok, "expected *ratelimit.RetryError, got %T", err)
	assert.Equal(t, http.StatusServiceUnavailable, retryErr.LastStatus)
	assert.Equal(t, 3, retryErr.Attempts)
}

func TestNonRetryableStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","error":{"code":"VALIDATION_ERROR","message":"bad station"},"timestamp":"2026-08-26T10:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testConfig())

	err := client.PostJSON(context.Background(), "/api/tasks", map[string]any{"station_id": -1}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
