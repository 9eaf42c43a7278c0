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
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/services/agents"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// feedbackTTL matches the 30-day report lifetime a feedback verdict is
// filed against.
const feedbackTTL = 30 * 24 * time.Hour

// resolveSessionForReport looks up the session/thread ID a report was
// produced by, via the index Writer.Persist writes alongside every report.
func resolveSessionForReport(ctx context.Context, deps *Dependencies, reportID string) (string, error) {
	entry, err := deps.Repo.GetCache(ctx, agents.ReportThreadIndexKey(reportID))
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "failed to resolve report's session", err)
	}
	if entry == nil {
		return "", apperr.New(apperr.KindNotFound, "report not found or its session has expired")
	}
	var sessionID string
	if err := json.Unmarshal(entry.Value, &sessionID); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "corrupt report/session index entry", err)
	}
	return sessionID, nil
}

// recordFeedbackOnly files a verdict without triggering a rerun.
func recordFeedbackOnly(ctx context.Context, deps *Dependencies, req FeedbackRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to encode feedback", err)
	}
	if err := deps.Repo.SetWithTTL(ctx, "feedback:"+req.ReportID, raw, "api", feedbackTTL); err != nil {
		return apperr.Wrap(apperr.KindStorage, "failed to persist feedback", err)
	}
	return nil
}

// decodeThreadState unmarshals a ThreadRecord's opaque ThreadData back into
// the WorkflowState Writer.Persist marshaled it from.
func decodeThreadState(t storage.ThreadRecord) (workflow.WorkflowState, error) {
	var state workflow.WorkflowState
	if err := json.Unmarshal(t.ThreadData, &state); err != nil {
		return workflow.WorkflowState{}, err
	}
	return state, nil
}
