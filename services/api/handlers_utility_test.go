// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

func TestHandleHealth_Shallow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.GET("/utility/health", handleHealth(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/utility/health", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["storage"])
	_, deepChecked := checks["registry"]
	assert.False(t, deepChecked, "shallow health should not probe providers")
}

func TestHandleMetrics_ServesPrometheusFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	metrics := httpcore.NewMetrics(reg)
	_ = metrics

	deps := newTestDeps(storage.NewMemoryRepository())
	deps.Registry = reg

	r := gin.New()
	r.GET("/utility/metrics", handleMetrics(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/utility/metrics", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestHandleListCircuitBreakers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	metrics := httpcore.NewMetrics(reg)
	client := httpcore.New(metrics, 5, 0)

	deps := newTestDeps(storage.NewMemoryRepository())
	deps.HTTP = client

	r := gin.New()
	r.GET("/utility/circuit-breakers", handleListCircuitBreakers(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/utility/circuit-breakers", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		CircuitBreakers map[string]string `json:"circuit_breakers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.CircuitBreakers, "no requests made yet, so no breaker state exists")
}

func TestHandleResetCircuitBreaker_RequiresAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	metrics := httpcore.NewMetrics(reg)
	deps := newTestDeps(storage.NewMemoryRepository())
	deps.HTTP = httpcore.New(metrics, 5, 0)
	deps.Config.AdminToken = "s3cr3t"

	r := gin.New()
	r.POST("/utility/circuit-breakers/:service/reset", adminAuthMiddleware(deps.Config.AdminToken), handleResetCircuitBreaker(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/utility/circuit-breakers/registry/reset", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleStorageStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.GET("/utility/stats/storage", handleStorageStats(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/utility/stats/storage", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats storage.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "memory", stats.Backend)
}
