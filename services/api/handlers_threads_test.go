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

func TestHandleThreadHistory_NotFoundIsNotAPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := newTestDeps(storage.NewMemoryRepository())

	r := gin.New()
	r.GET("/agent/thread_history/:thread_id", handleThreadHistory(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/agent/thread_history/unknown", nil)
	assert.NotPanics(t, func() { r.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleThreadHistory_Found(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := storage.NewMemoryRepository()
	require.NoError(t, repo.SaveThread(context.Background(), storage.ThreadRecord{
		ThreadID:   "t1",
		ThreadData: json.RawMessage(`{"session_id":"t1"}`),
		ClientName: "Acme Corp",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}))
	deps := newTestDeps(repo)

	r := gin.New()
	r.GET("/agent/thread_history/:thread_id", handleThreadHistory(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/agent/thread_history/t1", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var thread storage.ThreadRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))
	assert.Equal(t, "Acme Corp", thread.ClientName)
}

func TestHandleListThreads_RespectsLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveThread(ctx, storage.ThreadRecord{ThreadID: string(rune('a' + i)), CreatedAt: time.Now(), UpdatedAt: time.Now()}))
	}
	deps := newTestDeps(repo)

	r := gin.New()
	r.GET("/agent/threads", handleListThreads(deps))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/agent/threads?limit=2", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Threads []storage.ThreadRecord `json:"threads"`
		Count   int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestQueryInt_FallsBackOnInvalidOrNonPositive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	c.Request = httptest.NewRequest(http.MethodGet, "/x?limit=notanumber", nil)
	assert.Equal(t, 50, queryInt(c, "limit", 50))

	c.Request = httptest.NewRequest(http.MethodGet, "/x?limit=0", nil)
	assert.Equal(t, 50, queryInt(c, "limit", 50))

	c.Request = httptest.NewRequest(http.MethodGet, "/x?limit=7", nil)
	assert.Equal(t, 7, queryInt(c, "limit", 50))

	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, 50, queryInt(c, "limit", 50))
}
