// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sse

import (
	"context"
	"net/http"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

const keepAliveInterval = 15 * time.Second

// stageStartPercent/stageDonePercent give the "progress" event a coarse,
// monotonic percent for each stage's start/completion, since the state
// machine itself tracks no per-stage percentage.
var stageStartPercent = map[workflow.Stage]int{
	workflow.StagePlanning:         0,
	workflow.StageCollecting:       15,
	workflow.StageAnalyzing:        60,
	workflow.StageAwaitingFeedback: 85,
	workflow.StagePersisting:       90,
}

var stageDonePercent = map[workflow.Stage]int{
	workflow.StagePlanning:         15,
	workflow.StageCollecting:       60,
	workflow.StageAnalyzing:        85,
	workflow.StageAwaitingFeedback: 90,
	workflow.StagePersisting:       100,
}

// StateFunc returns a read-only snapshot of the session currently being
// streamed; the adapter calls it whenever an event needs fields the bus
// payload didn't carry (the plan, the report, the stable report ID).
type StateFunc func() workflow.WorkflowState

// Adapter bridges a workflow.EventBus to the ordered SSE event stream
// documented for POST /agent/analyze-client?stream=true. One Adapter may
// serve many concurrent sessions; it holds no per-session state itself.
type Adapter struct {
	bus *workflow.EventBus
}

// NewAdapter builds an Adapter over bus.
func NewAdapter(bus *workflow.EventBus) *Adapter {
	return &Adapter{bus: bus}
}

// Serve subscribes to sessionID's events and writes them as SSE to w until
// the run reaches completed/failed, the server shuts down (ctx canceled),
// or the client disconnects (r.Context() canceled). A client disconnect
// only tears down this subscription; the run underneath continues to the
// thread store and a reconnecting client can still fetch the final report.
// onSubscribed, if given, is called once the bus subscription is live and
// before the event loop starts — the caller's signal to start the run that
// will feed this subscription, so no event published between subscribe and
// "the caller noticed" is lost.
func (a *Adapter) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionID string, getState StateFunc, onSubscribed ...func()) error {
	SetHeaders(w)
	writer, err := NewWriter(w)
	if err != nil {
		return err
	}
	log := logging.FromContext(r.Context())

	initial := getState()
	if err := writer.WriteEvent("start", map[string]any{
		"session_id":  sessionID,
		"client_name": initial.Task.ClientName,
		"inn":         initial.Task.INN,
	}); err != nil {
		return err
	}

	events := make(chan *workflow.Event, 256)
	subID := a.bus.Subscribe(func(event *workflow.Event) {
		if event.SessionID != sessionID {
			return
		}
		select {
		case events <- event:
		default:
			log.Warn("sse subscriber backpressure, dropping event", "session_id", sessionID, "event_type", event.Type)
		}
	})
	defer a.bus.Unsubscribe(subID)

	for _, fn := range onSubscribed {
		fn()
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Client disconnected. The subscription above is torn down by
			// the deferred Unsubscribe; the underlying run is untouched.
			return nil

		case <-ctx.Done():
			_ = writer.WriteEvent("error", map[string]any{"kind": "ServerShuttingDown", "message": "server is shutting down"})
			return ctx.Err()

		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				return err
			}

		case event := <-events:
			done, err := a.dispatch(writer, event, getState)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// dispatch translates one bus event into zero or more SSE events. It
// returns done=true once the session has reached a terminal SSE event
// (complete or error).
func (a *Adapter) dispatch(w *Writer, event *workflow.Event, getState StateFunc) (bool, error) {
	switch event.Type {
	case workflow.EventStageStarted:
		stage, _ := event.Data.(map[string]any)["stage"].(workflow.Stage)
		return false, w.WriteEvent("progress", map[string]any{"percent": stageStartPercent[stage], "stage": stage})

	case workflow.EventStageCompleted:
		data, _ := event.Data.(map[string]any)
		stage, _ := data["stage"].(workflow.Stage)
		if stage == workflow.StagePlanning {
			if err := w.WriteEvent("orchestrator", map[string]any{"plan": getState().Plan}); err != nil {
				return false, err
			}
		}
		return false, w.WriteEvent("progress", map[string]any{"percent": stageDonePercent[stage], "stage": stage})

	case workflow.EventSourceResult:
		data, _ := event.Data.(map[string]any)
		source, _ := data["source"].(string)
		status, _ := data["status"].(string)
		durationMs := int64(0)
		if env, ok := getState().SourceData[source]; ok {
			durationMs = env.DurationMs
		}
		return false, w.WriteEvent("source_result", map[string]any{"source": source, "status": status, "duration_ms": durationMs})

	case workflow.EventReportReady:
		return false, w.WriteEvent("report", map[string]any{"report": getState().Report})

	case workflow.EventAwaitingFeedback:
		data, _ := event.Data.(map[string]any)
		return false, w.WriteEvent("awaiting_feedback", map[string]any{"report_id": data["report_id"]})

	case workflow.EventCompleted:
		state := getState()
		if err := w.WriteEvent("result", map[string]any{"report": state.Report}); err != nil {
			return false, err
		}
		if err := w.WriteEvent("complete", map[string]any{"session_id": state.SessionID}); err != nil {
			return false, err
		}
		return true, nil

	case workflow.EventFailed:
		data, _ := event.Data.(map[string]any)
		if err := w.WriteEvent("error", map[string]any{"kind": "InternalError", "message": data["error"]}); err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, nil
	}
}
