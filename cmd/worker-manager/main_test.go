// cmd/worker-manager/main_test.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeReadiness(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestReadinessHandler_AllChecksPass(t *testing.T) {
	handler := readinessHandler([]readinessCheck{
		{name: "zeebe", check: func(ctx context.Context) error { return nil }},
		{name: "postgres", check: func(ctx context.Context) error { return nil }},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeReadiness(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "ok", body["zeebe"])
	assert.Equal(t, "ok", body["postgres"])
}

func TestReadinessHandler_FailingCheckReportsUnavailable(t *testing.T) {
	handler := readinessHandler([]readinessCheck{
		{name: "zeebe", check: func(ctx context.Context) error { return nil }},
		{name: "postgres", check: func(ctx context.Context) error { return errors.New("connection refused") }},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeReadiness(t, rec)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, "ok", body["zeebe"])
	assert.Equal(t, "unavailable", body["postgres"])
}
