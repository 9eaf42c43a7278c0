// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/sse"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// handleAnalyzeClient runs POST /agent/analyze-client. With ?stream=true it
// renders the run as Server-Sent Events; otherwise it blocks until the
// session reaches completed/failed and returns the final report as JSON.
// Either way the run itself executes against a context detached from the
// request, per §4.9 — a client disconnect during streaming tears down only
// the SSE subscription.
func handleAnalyzeClient(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
			return
		}

		sessionID := uuid.NewString()
		task := workflow.AnalysisTask{
			TaskID:      sessionID,
			ClientName:  req.ClientName,
			INN:         req.INN,
			Notes:       req.AdditionalNotes,
			Priority:    req.Priority,
			CreatedAt:   time.Now(),
			Status:      "processing",
			RequestedBy: req.RequestedBy,
		}
		bus := workflow.NewEventBus(256)
		machine := workflow.NewMachine(sessionID, task, bus, deps.Planner, deps.Collector, deps.Analyzer, deps.Writer)

		runCtx, cancel := context.WithTimeout(context.Background(), deps.Config.WorkflowTimeout)
		deps.Sessions.Register(sessionID, cancel, bus, machine.State)

		runDone := make(chan error, 1)
		startRun := func() {
			go func() {
				_, err := machine.Run(runCtx)
				runDone <- err
			}()
		}

		if c.Query("stream") == "true" {
			adapter := sse.NewAdapter(bus)
			if err := adapter.Serve(deps.ServerCtx, c.Writer, c.Request, sessionID, machine.State, startRun); err != nil {
				logging.FromContext(c.Request.Context()).Warn("sse stream ended with error", "session_id", sessionID, "error", err)
			}
			cancel()
			deps.Sessions.Unregister(sessionID)
			return
		}

		startRun()
		err := <-runDone
		cancel()
		deps.Sessions.Unregister(sessionID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, machine.State().Report)
	}
}

// handleCancelSession implements DELETE /agent/analyze/{session_id}.
func handleCancelSession(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if !deps.Sessions.Cancel(sessionID) {
			writeError(c, apperr.New(apperr.KindNotFound, "no running session with that id"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "status": "cancelled"})
	}
}

// handleFeedback implements POST /agent/feedback. When rerun_analysis is
// false this only records the verdict; when true it rehydrates the
// session that produced report_id and drives Machine.Resume, which either
// re-analyzes from existing evidence or recollects for any focus_areas.
func handleFeedback(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
			return
		}

		ctx := c.Request.Context()
		sessionID, err := resolveSessionForReport(ctx, deps, req.ReportID)
		if err != nil {
			writeError(c, err)
			return
		}

		if !req.RerunAnalysis {
			if err := recordFeedbackOnly(ctx, deps, req); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"report_id": req.ReportID, "status": "feedback_recorded"})
			return
		}

		thread, err := deps.Repo.GetThread(ctx, sessionID)
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to read thread for report", err))
			return
		}
		if thread == nil {
			writeError(c, apperr.New(apperr.KindNotFound, "thread for report not found"))
			return
		}
		state, err := decodeThreadState(*thread)
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindInternal, "failed to decode stored session state", err))
			return
		}

		bus := workflow.NewEventBus(256)
		machine := workflow.RehydrateMachine(state, bus, deps.Planner, deps.Collector, deps.Analyzer, deps.Writer)

		runCtx, cancel := context.WithTimeout(context.Background(), deps.Config.WorkflowTimeout)
		defer cancel()
		deps.Sessions.Register(sessionID, cancel, bus, machine.State)
		defer deps.Sessions.Unregister(sessionID)

		if err := machine.Resume(runCtx, workflow.Feedback(req.Rating), req.Comment, req.FocusAreas); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, machine.State().Report)
	}
}
