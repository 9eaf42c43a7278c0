// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

func TestAdapter_Serve_OrderedEvents(t *testing.T) {
	bus := workflow.NewEventBus(64)
	adapter := NewAdapter(bus)

	var mu sync.Mutex
	state := workflow.WorkflowState{
		SessionID: "sess-1",
		ReportID:  "rep-1",
		Task:      workflow.AnalysisTask{ClientName: "Acme Corp", INN: "7707083893"},
		Stage:     workflow.StagePlanning,
	}
	getState := func() workflow.WorkflowState {
		mu.Lock()
		defer mu.Unlock()
		return state.Clone()
	}

	req := httptest.NewRequest("POST", "/api/v1/agent/analyze-client?stream=true", nil)
	rec := httptest.NewRecorder()

	done := make(chan error, 1)
	go func() {
		done <- adapter.Serve(context.Background(), rec, req, "sess-1", getState)
	}()

	publish := func(t workflow.EventType, data any) {
		bus.Publish("sess-1", t, data)
		time.Sleep(5 * time.Millisecond)
	}

	publish(workflow.EventStageStarted, map[string]any{"stage": workflow.StagePlanning})

	mu.Lock()
	state.Plan = []workflow.SearchIntent{{Category: workflow.IntentReputation, Query: "Acme Corp reputation"}}
	mu.Unlock()
	publish(workflow.EventStageCompleted, map[string]any{"stage": workflow.StagePlanning})

	mu.Lock()
	state.SourceData = map[string]workflow.SourceResultEnvelope{"registry": {Source: "registry", Status: "success", DurationMs: 42}}
	mu.Unlock()
	publish(workflow.EventSourceResult, map[string]any{"source": "registry", "status": "success"})

	mu.Lock()
	state.Report = &workflow.ClientAnalysisReport{Summary: "looks fine"}
	mu.Unlock()
	publish(workflow.EventReportReady, map[string]any{"degraded": false})

	publish(workflow.EventAwaitingFeedback, map[string]any{"report_id": "rep-1"})

	mu.Lock()
	state.Stage = workflow.StageCompleted
	mu.Unlock()
	bus.Publish("sess-1", workflow.EventCompleted, map[string]any{"session_id": "sess-1"})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after completed event")
	}

	body := rec.Body.String()
	wantOrder := []string{
		"event: start",
		"event: progress",
		"event: orchestrator",
		"event: progress",
		"event: source_result",
		"event: report",
		"event: awaiting_feedback",
		"event: result",
		"event: complete",
	}
	idx := 0
	for _, want := range wantOrder {
		at := strings.Index(body[idx:], want)
		if at < 0 {
			t.Fatalf("missing or out-of-order %q in body:\n%s", want, body)
		}
		idx += at + len(want)
	}
}

func TestAdapter_Serve_ClientDisconnectDoesNotError(t *testing.T) {
	bus := workflow.NewEventBus(8)
	adapter := NewAdapter(bus)

	state := workflow.WorkflowState{SessionID: "sess-2", Task: workflow.AnalysisTask{ClientName: "Acme"}}
	getState := func() workflow.WorkflowState { return state.Clone() }

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/api/v1/agent/analyze-client?stream=true", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan error, 1)
	go func() { done <- adapter.Serve(context.Background(), rec, req, "sess-2", getState) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error on disconnect: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after client disconnect")
	}
}
