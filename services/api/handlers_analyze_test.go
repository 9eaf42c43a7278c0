// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/internal/config"
	"github.com/IvanKorch1289/client-analyze-agent/services/agents"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

func newTestDeps(repo storage.Repository) *Dependencies {
	return &Dependencies{
		Config:    config.Config{WorkflowTimeout: 5 * time.Second, MaxFeedbackRetries: 3},
		Repo:      repo,
		Planner:   fakePlanner{},
		Collector: fakeCollector{},
		Analyzer:  fakeAnalyzer{},
		Writer:    agents.NewWriter(repo, nil),
		Sessions:  NewSessionRegistry(),
		ServerCtx: context.Background(),
	}
}

func TestHandleAnalyzeClient_SyncSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.POST("/agent/analyze-client", handleAnalyzeClient(deps))

	body, err := json.Marshal(AnalysisRequest{ClientName: "Acme Corp", INN: "7707083893"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/analyze-client", bytes.NewReader(body))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report workflow.ClientAnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "Acme Corp", report.Metadata.ClientName)
	assert.Equal(t, "no material concerns found", report.Summary)
}

func TestHandleAnalyzeClient_InvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.POST("/agent/analyze-client", handleAnalyzeClient(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/analyze-client", bytes.NewReader([]byte(`{}`)))
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeClient_AnalyzerFailurePropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())
	deps.Analyzer = failingAnalyzer{err: apperr.New(apperr.KindUpstream, "llm cascade exhausted")}

	r := gin.New()
	r.POST("/agent/analyze-client", handleAnalyzeClient(deps))

	body, _ := json.Marshal(AnalysisRequest{ClientName: "Acme Corp"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/analyze-client", bytes.NewReader(body))
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleCancelSession_UnknownSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.DELETE("/agent/analyze/:session_id", handleCancelSession(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/agent/analyze/does-not-exist", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFeedback_RecordOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := storage.NewMemoryRepository()
	deps := newTestDeps(repo)

	reportID := runSyncAnalysisAndGetReportID(t, deps)

	r := gin.New()
	r.POST("/agent/feedback", handleFeedback(deps))

	body, _ := json.Marshal(FeedbackRequest{ReportID: reportID, Rating: "accurate", RerunAnalysis: false})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/feedback", bytes.NewReader(body))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "feedback_recorded", resp["status"])
}

func TestHandleFeedback_RerunAccurateReturnsReport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := storage.NewMemoryRepository()
	deps := newTestDeps(repo)

	reportID := runSyncAnalysisAndGetReportID(t, deps)

	r := gin.New()
	r.POST("/agent/feedback", handleFeedback(deps))

	body, _ := json.Marshal(FeedbackRequest{ReportID: reportID, Rating: "accurate", RerunAnalysis: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/feedback", bytes.NewReader(body))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report workflow.ClientAnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "Acme Corp", report.Metadata.ClientName)
}

func TestHandleFeedback_UnknownReportID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.POST("/agent/feedback", handleFeedback(deps))

	body, _ := json.Marshal(FeedbackRequest{ReportID: "nope", Rating: "accurate"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/feedback", bytes.NewReader(body))
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// runSyncAnalysisAndGetReportID drives a full synchronous analysis through
// the real handler and returns the report_id its Writer persisted, so
// feedback tests have a genuine report/thread pair to act on.
func runSyncAnalysisAndGetReportID(t *testing.T, deps *Dependencies) string {
	t.Helper()
	r := gin.New()
	r.POST("/agent/analyze-client", handleAnalyzeClient(deps))

	body, err := json.Marshal(AnalysisRequest{ClientName: "Acme Corp", INN: "7707083893"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agent/analyze-client", bytes.NewReader(body))
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	reports, err := deps.Repo.ListReports(context.Background(), storage.ReportFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	return reports[0].ReportID
}
