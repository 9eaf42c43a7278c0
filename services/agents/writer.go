// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// reportTTL is the fixed 30-day lifetime invariant 2 requires.
const reportTTL = 30 * 24 * time.Hour

// reportThreadIndexKey names the cache-space entry mapping a report_id back
// to the session/thread it was produced by.
func reportThreadIndexKey(reportID string) string { return "report_thread:" + reportID }

// ReportThreadIndexKey is the exported form of reportThreadIndexKey, used by
// the API layer to resolve a report_id to a thread for feedback reruns.
func ReportThreadIndexKey(reportID string) string { return reportThreadIndexKey(reportID) }

// Writer persists the final report and a thread snapshot of the whole
// session. A PDF render step is a named Non-goal collaborator hook: render
// is invoked only if renderer is non-nil, keeping this package importable
// without pulling in a rendering dependency when the caller doesn't need one.
type Writer struct {
	repo     storage.Repository
	renderer func(ctx context.Context, report *workflow.ClientAnalysisReport) ([]byte, error)
}

// NewWriter builds a Writer. renderer may be nil; if set, its output bytes
// are discarded here but the call is made so a caller wiring in a renderer
// observes failures during Persist rather than only at API response time.
func NewWriter(repo storage.Repository, renderer func(ctx context.Context, report *workflow.ClientAnalysisReport) ([]byte, error)) *Writer {
	return &Writer{repo: repo, renderer: renderer}
}

// Persist implements workflow.Writer.
func (w *Writer) Persist(ctx context.Context, state workflow.WorkflowState) (workflow.PersistDelta, error) {
	reportData, err := json.Marshal(state.Report)
	if err != nil {
		return workflow.PersistDelta{}, err
	}

	reportID := state.ReportID
	now := time.Now()
	stored := storage.StoredReport{
		ReportID:   reportID,
		INN:        state.Task.INN,
		ClientName: state.Task.ClientName,
		ReportData: reportData,
		RiskLevel:  string(state.Report.RiskAssessment.Level),
		RiskScore:  state.Report.RiskAssessment.Score,
		CreatedAt:  now,
		ExpiresAt:  now.Add(reportTTL),
	}
	if err := w.repo.CreateReport(ctx, stored); err != nil {
		return workflow.PersistDelta{}, err
	}

	threadData, err := json.Marshal(state)
	if err != nil {
		return workflow.PersistDelta{}, err
	}
	thread := storage.ThreadRecord{
		ThreadID:   state.SessionID,
		ThreadData: threadData,
		ClientName: state.Task.ClientName,
		INN:        state.Task.INN,
		CreatedAt:  state.CreatedAt,
		UpdatedAt:  now,
	}
	if err := w.repo.SaveThread(ctx, thread); err != nil {
		return workflow.PersistDelta{}, err
	}

	// Index report_id -> thread_id so POST /agent/feedback can locate the
	// session a report came from without scanning every thread.
	indexed, err := json.Marshal(state.SessionID)
	if err != nil {
		return workflow.PersistDelta{}, err
	}
	if err := w.repo.SetWithTTL(ctx, reportThreadIndexKey(reportID), indexed, "queue", reportTTL); err != nil {
		return workflow.PersistDelta{}, err
	}

	if w.renderer != nil {
		if _, err := w.renderer(ctx, state.Report); err != nil {
			return workflow.PersistDelta{ReportID: reportID}, err
		}
	}

	return workflow.PersistDelta{ReportID: reportID}, nil
}
