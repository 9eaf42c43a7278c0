// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"

	"github.com/IvanKorch1289/client-analyze-agent/services/scoring"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// fakePlanner/fakeCollector/fakeAnalyzer/fakeWriter stand in for the real
// agents package, letting handler tests drive a full Machine.Run without a
// network call or LLM key.

type fakePlanner struct{}

func (fakePlanner) Plan(ctx context.Context, state workflow.WorkflowState) (workflow.PlanDelta, error) {
	return workflow.PlanDelta{Plan: []workflow.SearchIntent{{Category: workflow.IntentReputation, Query: state.Task.ClientName}}}, nil
}

type fakeCollector struct{}

func (fakeCollector) Collect(ctx context.Context, state workflow.WorkflowState, intents []workflow.SearchIntent) (workflow.CollectDelta, error) {
	return workflow.CollectDelta{
		SourceData: map[string]workflow.SourceResultEnvelope{
			"registry": {Source: "registry", Status: "success", DurationMs: 10},
		},
	}, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, state workflow.WorkflowState) (workflow.AnalyzeDelta, error) {
	return workflow.AnalyzeDelta{Report: &workflow.ClientAnalysisReport{
		Metadata:       workflow.ReportMetadata{ClientName: state.Task.ClientName, INN: state.Task.INN},
		RiskAssessment: scoring.Assessment{Score: 10, Level: scoring.LevelLow},
		Summary:        "no material concerns found",
	}}, nil
}

// fakeWriter records every persisted state in memory instead of going
// through services/agents.Writer, so tests can assert on what was written
// without a storage.Repository in the loop.
type fakeWriter struct {
	persisted []workflow.WorkflowState
}

func (w *fakeWriter) Persist(ctx context.Context, state workflow.WorkflowState) (workflow.PersistDelta, error) {
	w.persisted = append(w.persisted, state)
	return workflow.PersistDelta{ReportID: state.ReportID}, nil
}

// failingAnalyzer lets a test force Machine.Run down the failure path.
type failingAnalyzer struct{ err error }

func (f failingAnalyzer) Analyze(ctx context.Context, state workflow.WorkflowState) (workflow.AnalyzeDelta, error) {
	return workflow.AnalyzeDelta{}, f.err
}
