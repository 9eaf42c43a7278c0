// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

func TestHandleGetReport_NotFoundIsNotAPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.GET("/reports/:report_id", handleGetReport(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/unknown", nil)
	assert.NotPanics(t, func() { r.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetReport_Found(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := storage.NewMemoryRepository()
	require.NoError(t, repo.CreateReport(context.Background(), storage.StoredReport{
		ReportID:   "rep-1",
		ClientName: "Acme Corp",
		ReportData: json.RawMessage(`{"summary":"ok"}`),
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}))
	deps := newTestDeps(repo)

	r := gin.New()
	r.GET("/reports/:report_id", handleGetReport(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/rep-1", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report storage.StoredReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "Acme Corp", report.ClientName)
}

func TestHandleListReports_AppliesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateReport(ctx, storage.StoredReport{ReportID: "r1", ClientName: "Acme", RiskLevel: "low", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repo.CreateReport(ctx, storage.StoredReport{ReportID: "r2", ClientName: "Contoso", RiskLevel: "high", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}))
	deps := newTestDeps(repo)

	r := gin.New()
	r.GET("/reports", handleListReports(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports?risk_level=high", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Reports []storage.StoredReport `json:"reports"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "r2", body.Reports[0].ReportID)
}

func TestHandleDeleteReport_RequiresAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())
	deps.Config.AdminToken = "s3cr3t"

	r := gin.New()
	r.DELETE("/reports/:report_id", adminAuthMiddleware(deps.Config.AdminToken), handleDeleteReport(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/reports/r1", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
