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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/services/queue"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// handleAnalyzeClientAsync implements POST /agent/analyze-client/async:
// enqueue the task onto analysis_queue and hand back a task_id the caller
// polls via GET /agent/task/{task_id}.
func handleAnalyzeClientAsync(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Publisher == nil {
			writeError(c, apperr.New(apperr.KindInternal, "async analysis is not configured: no queue brokers"))
			return
		}
		var req AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
			return
		}

		task := workflow.AnalysisTask{
			TaskID:      uuid.NewString(),
			ClientName:  req.ClientName,
			INN:         req.INN,
			Notes:       req.AdditionalNotes,
			Priority:    req.Priority,
			CreatedAt:   time.Now(),
			Status:      string(queue.TaskPending),
			RequestedBy: req.RequestedBy,
		}

		ctx := c.Request.Context()
		if err := deps.Publisher.PublishAnalysisTask(ctx, task); err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to enqueue analysis task", err))
			return
		}

		pending := queue.AnalysisResult{TaskID: task.TaskID, Status: queue.TaskPending}
		raw, err := json.Marshal(pending)
		if err == nil {
			_ = deps.Repo.SetWithTTL(ctx, queue.TaskStatusKey(task.TaskID), raw, "queue", queue.TaskStatusTTL)
		}

		c.JSON(http.StatusAccepted, AsyncTaskResponse{TaskID: task.TaskID, Status: string(queue.TaskPending)})
	}
}

// handleTaskStatus implements GET /agent/task/{task_id}, reading the
// latest status a ResultSink (or the enqueue call itself, for "pending")
// wrote into the cache space.
func handleTaskStatus(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("task_id")
		entry, err := deps.Repo.GetCache(c.Request.Context(), queue.TaskStatusKey(taskID))
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to read task status", err))
			return
		}
		if entry == nil {
			writeError(c, apperr.New(apperr.KindNotFound, "unknown or expired task_id"))
			return
		}
		var result queue.AnalysisResult
		if err := json.Unmarshal(entry.Value, &result); err != nil {
			writeError(c, apperr.Wrap(apperr.KindInternal, "corrupt task status entry", err))
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
