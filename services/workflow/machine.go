// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
)

// PlanDelta is what the Planner contributes.
type PlanDelta struct {
	Plan    []SearchIntent
	Warning string
}

// CollectDelta is what the Collector contributes.
type CollectDelta struct {
	SourceData    map[string]SourceResultEnvelope
	SearchResults []SearchSnippet
	Stats         CollectionStats
	Insufficient  bool
}

// AnalyzeDelta is what the Analyzer contributes.
type AnalyzeDelta struct {
	Report *ClientAnalysisReport
}

// PersistDelta is what the Writer contributes.
type PersistDelta struct {
	ReportID string
}

// Planner generates the initial search plan.
type Planner interface {
	Plan(ctx context.Context, state WorkflowState) (PlanDelta, error)
}

// Collector fans out to provider clients for the planned intents.
type Collector interface {
	Collect(ctx context.Context, state WorkflowState, intents []SearchIntent) (CollectDelta, error)
}

// Analyzer synthesizes a report from collected evidence via the LLM
// cascade and the risk scorer.
type Analyzer interface {
	Analyze(ctx context.Context, state WorkflowState) (AnalyzeDelta, error)
}

// Writer persists the final report and a thread snapshot.
type Writer interface {
	Persist(ctx context.Context, state WorkflowState) (PersistDelta, error)
}

// Machine is the single-writer owner of a WorkflowState. Only its methods
// mutate the state; agents receive read-only clones and return deltas.
type Machine struct {
	state    WorkflowState
	bus      *EventBus
	planner  Planner
	collector Collector
	analyzer Analyzer
	writer   Writer
}

// NewMachine creates a Machine seeded from task, in the planning stage.
func NewMachine(sessionID string, task AnalysisTask, bus *EventBus, planner Planner, collector Collector, analyzer Analyzer, writer Writer) *Machine {
	now := time.Now()
	return &Machine{
		state: WorkflowState{
			SessionID: sessionID,
			ReportID:  uuid.NewString(),
			Task:      task,
			Stage:     StagePlanning,
			CreatedAt: now,
			UpdatedAt: now,
		},
		bus:       bus,
		planner:   planner,
		collector: collector,
		analyzer:  analyzer,
		writer:    writer,
	}
}

// RehydrateMachine reconstructs a Machine from a previously persisted
// WorkflowState (as saved in a ThreadRecord), for a feedback-driven rerun
// arriving after the original Run has already returned and its goroutine
// exited. The rehydrated state is parked back in awaiting_feedback with any
// stale verdict cleared, so Resume's stage guard accepts it.
func RehydrateMachine(state WorkflowState, bus *EventBus, planner Planner, collector Collector, analyzer Analyzer, writer Writer) *Machine {
	state.Stage = StageAwaitingFeedback
	state.UserFeedback = ""
	state.UserComment = ""
	return &Machine{
		state:     state,
		bus:       bus,
		planner:   planner,
		collector: collector,
		analyzer:  analyzer,
		writer:    writer,
	}
}

// State returns a read-only snapshot of the current state.
func (m *Machine) State() WorkflowState { return m.state.Clone() }

func (m *Machine) publish(eventType EventType, data any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(m.state.SessionID, eventType, data)
}

func (m *Machine) fail(err error) error {
	m.state.Stage = StageFailed
	m.state.LastError = err.Error()
	m.state.UpdatedAt = time.Now()
	m.publish(EventFailed, map[string]any{"error": err.Error()})
	return err
}

// Run drives the machine from planning through completed/failed, honoring
// the entry invariants in the state diagram. It returns the final
// WorkflowState clone; callers wanting progress should subscribe to the
// bus before calling Run.
func (m *Machine) Run(ctx context.Context) (WorkflowState, error) {
	if err := m.runPlanning(ctx); err != nil {
		return m.State(), err
	}
	if err := m.runCollecting(ctx, m.state.Plan); err != nil {
		return m.State(), err
	}
	if err := m.runAnalyzing(ctx); err != nil {
		return m.State(), err
	}
	if err := m.runAwaitingFeedback(ctx); err != nil {
		return m.State(), err
	}
	return m.State(), nil
}

func (m *Machine) runPlanning(ctx context.Context) error {
	if m.state.Task.ClientName == "" {
		return m.fail(apperr.New(apperr.KindValidation, "planning requires a non-empty client_name"))
	}
	m.state.Stage = StagePlanning
	m.publish(EventStageStarted, map[string]any{"stage": StagePlanning})

	delta, err := m.planner.Plan(ctx, m.state.Clone())
	if err != nil {
		return m.fail(apperr.Wrap(apperr.KindInternal, "planner failed", err))
	}
	m.state.Plan = delta.Plan
	m.state.UpdatedAt = time.Now()
	m.publish(EventStageCompleted, map[string]any{"stage": StagePlanning, "intents": len(delta.Plan), "warning": delta.Warning})
	return nil
}

func (m *Machine) runCollecting(ctx context.Context, intents []SearchIntent) error {
	if len(intents) == 0 {
		return m.fail(apperr.New(apperr.KindValidation, "collecting requires a non-empty plan"))
	}
	m.state.Stage = StageCollecting
	m.publish(EventStageStarted, map[string]any{"stage": StageCollecting})

	delta, err := m.collector.Collect(ctx, m.state.Clone(), intents)
	if err != nil {
		return m.fail(apperr.Wrap(apperr.KindUpstream, "collector failed", err))
	}
	if m.state.SourceData == nil {
		m.state.SourceData = make(map[string]SourceResultEnvelope)
	}
	for k, v := range delta.SourceData {
		m.state.SourceData[k] = v
		m.publish(EventSourceResult, map[string]any{"source": k, "status": v.Status})
	}
	m.state.SearchResults = append(m.state.SearchResults, delta.SearchResults...)
	m.state.CollectionStats = delta.Stats
	m.state.UpdatedAt = time.Now()

	if delta.Insufficient && !m.state.DegradedAccepted {
		return m.fail(apperr.New(apperr.KindInternal, "insufficient data: critical sources failed"))
	}
	m.publish(EventStageCompleted, map[string]any{"stage": StageCollecting, "stats": delta.Stats})
	return nil
}

func (m *Machine) runAnalyzing(ctx context.Context) error {
	hasSuccess := false
	for _, env := range m.state.SourceData {
		if env.Status == "success" {
			hasSuccess = true
			break
		}
	}
	if !hasSuccess && !m.state.DegradedAccepted {
		return m.fail(apperr.New(apperr.KindInternal, "insufficient data: no source succeeded"))
	}

	m.state.Stage = StageAnalyzing
	m.publish(EventStageStarted, map[string]any{"stage": StageAnalyzing})

	delta, err := m.analyzer.Analyze(ctx, m.state.Clone())
	if err != nil {
		return m.fail(apperr.Wrap(apperr.KindLLMExhausted, "analyzer failed", err))
	}
	m.state.Report = delta.Report
	m.state.UpdatedAt = time.Now()
	m.publish(EventReportReady, map[string]any{"degraded": delta.Report.Degraded})
	m.publish(EventStageCompleted, map[string]any{"stage": StageAnalyzing})
	return nil
}

func (m *Machine) runAwaitingFeedback(ctx context.Context) error {
	m.state.Stage = StageAwaitingFeedback
	m.publish(EventAwaitingFeedback, map[string]any{"report_id": m.state.ReportID})
	// The actual wait for a human verdict happens outside the machine
	// (API handler / queue consumer call Resume with the verdict); a
	// session with no feedback solicited proceeds straight through.
	if m.state.UserFeedback == "" {
		return m.runPersisting(ctx)
	}
	return nil
}

// Resume applies a feedback verdict to a session parked in
// awaiting_feedback. "accurate" (or empty, meaning no feedback was
// solicited) proceeds to persisting. "inaccurate"/"partially_accurate"
// loops back to analyzing, re-synthesizing from existing evidence unless
// focusAreas requires a restricted recollection pass.
func (m *Machine) Resume(ctx context.Context, feedback Feedback, comment string, focusAreas []string) error {
	if m.state.Stage != StageAwaitingFeedback {
		return apperr.New(apperr.KindConflict, fmt.Sprintf("cannot resume: session is in stage %q, not awaiting_feedback", m.state.Stage))
	}

	m.state.UserFeedback = feedback
	m.state.UserComment = comment
	m.state.FocusAreas = focusAreas
	m.state.AttemptHistory = append(m.state.AttemptHistory, AttemptRecord{
		Rating: feedback, Comment: comment, Timestamp: time.Now(),
	})

	if feedback == FeedbackAccurate || feedback == "" {
		return m.runPersisting(ctx)
	}

	m.state.RetryCount++
	if m.state.RetryCount > MaxFeedbackRetries {
		return m.fail(apperr.New(apperr.KindInternal, "feedback retry budget exhausted"))
	}

	m.state.PreviousReport = m.state.Report
	logging.FromContext(ctx).Info("feedback rerun", "session_id", m.state.SessionID, "retry_count", m.state.RetryCount, "feedback", feedback)

	if len(focusAreas) > 0 {
		extra := make([]SearchIntent, 0, len(focusAreas))
		for _, fa := range focusAreas {
			extra = append(extra, SearchIntent{Category: IntentCustom, Query: fa})
		}
		m.state.Plan = append(m.state.Plan, extra...)
		if err := m.runCollecting(ctx, extra); err != nil {
			return err
		}
	}

	if err := m.runAnalyzing(ctx); err != nil {
		return err
	}
	return m.runAwaitingFeedback(ctx)
}

func (m *Machine) runPersisting(ctx context.Context) error {
	if m.state.UserFeedback != FeedbackAccurate && m.state.UserFeedback != "" {
		return m.fail(apperr.New(apperr.KindConflict, "persisting requires accurate feedback or none solicited"))
	}
	m.state.Stage = StagePersisting
	m.publish(EventStageStarted, map[string]any{"stage": StagePersisting})

	_, err := m.writer.Persist(ctx, m.state.Clone())
	if err != nil {
		return m.fail(apperr.Wrap(apperr.KindStorage, "writer failed", err))
	}
	m.state.Stage = StageCompleted
	m.state.UpdatedAt = time.Now()
	m.publish(EventCompleted, map[string]any{"session_id": m.state.SessionID})
	return nil
}
