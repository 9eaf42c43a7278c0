// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workflow implements the counterparty-analysis state machine: the
// single-writer owner of a WorkflowState for the lifetime of a session.
// Agents (services/agents) hold short-lived borrows of state and return
// deltas; only Machine's own methods ever mutate a WorkflowState.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/services/scoring"
)

// MaxFeedbackRetries bounds the number of analyzer-rerun rounds a session
// may take in response to "inaccurate"/"partially_accurate" feedback.
const MaxFeedbackRetries = 3

// Stage is one node of the workflow state machine.
type Stage string

const (
	StagePlanning         Stage = "planning"
	StageCollecting       Stage = "collecting"
	StageAnalyzing        Stage = "analyzing"
	StageAwaitingFeedback Stage = "awaiting_feedback"
	StagePersisting       Stage = "persisting"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// IntentCategory classifies a planned search intent.
type IntentCategory string

const (
	IntentReputation IntentCategory = "reputation"
	IntentLawsuits   IntentCategory = "lawsuits"
	IntentNews       IntentCategory = "news"
	IntentNegative   IntentCategory = "negative"
	IntentFinancial  IntentCategory = "financial"
	IntentCustom     IntentCategory = "custom"
)

// SearchIntent is one unit of the plan the Planner produces.
type SearchIntent struct {
	Category IntentCategory `json:"category"`
	Query    string         `json:"query"`
}

// Feedback is the caller's verdict on a completed report.
type Feedback string

const (
	FeedbackAccurate          Feedback = "accurate"
	FeedbackInaccurate        Feedback = "inaccurate"
	FeedbackPartiallyAccurate Feedback = "partially_accurate"
)

// AnalysisTask is the immutable (except terminal status) unit of work
// created by the API or the queue publisher.
type AnalysisTask struct {
	TaskID      string    `json:"task_id"`
	ClientName  string    `json:"client_name"`
	INN         string    `json:"inn,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
	RequestedBy string    `json:"requested_by,omitempty"`
}

// SourceResultEnvelope mirrors services/providers.SourceResultEnvelope; the
// workflow package keeps its own copy to avoid importing the providers
// package into the state machine's core types.
type SourceResultEnvelope struct {
	Source     string          `json:"source"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// SearchSnippet is one sentiment-annotated web-search result gathered by
// the collector.
type SearchSnippet struct {
	Source    string `json:"source"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Text      string `json:"text"`
	Sentiment string `json:"sentiment"` // positive | neutral | negative
}

// CollectionStats summarizes a collecting pass for telemetry/reporting.
type CollectionStats struct {
	SourcesAttempted int `json:"sources_attempted"`
	SourcesSucceeded int `json:"sources_succeeded"`
	SourcesFailed    int `json:"sources_failed"`
	DurationMs       int64 `json:"duration_ms"`
}

// ReportMetadata is the header block of a ClientAnalysisReport.
type ReportMetadata struct {
	ClientName   string   `json:"client_name"`
	INN          string   `json:"inn,omitempty"`
	AnalysisDate time.Time `json:"analysis_date"`
	SourcesUsed  []string `json:"sources_used"`
}

// Finding is one evidence-backed observation in the final report.
type Finding struct {
	Category    string `json:"category"`
	Source      string `json:"source"`
	Sentiment   string `json:"sentiment"`
	KeyPoints   string `json:"key_points"`
}

// ClientAnalysisReport is the system's primary output artifact.
type ClientAnalysisReport struct {
	Metadata         ReportMetadata       `json:"metadata"`
	CompanyInfo      json.RawMessage      `json:"company_info,omitempty"`
	LegalCasesCount  int                  `json:"legal_cases_count"`
	RiskAssessment   scoring.Assessment   `json:"risk_assessment"`
	Findings         []Finding            `json:"findings"`
	Summary          string               `json:"summary"`
	Citations        []string             `json:"citations"`
	Recommendations  []string             `json:"recommendations"`
	Degraded         bool                 `json:"degraded,omitempty"`
	// Confidence is the analyzer's self-reported confidence in Summary,
	// separate from RiskAssessment.Score (which is deterministic and
	// always trustworthy). Low and fixed for a degraded report.
	Confidence       float64              `json:"confidence"`
}

// AttemptRecord is one feedback verdict recorded against a session, so a
// thread's full feedback trail is inspectable rather than only the most
// recent PreviousReport.
type AttemptRecord struct {
	Rating    Feedback  `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowState is the single-writer-owned aggregate the state machine
// advances through Stage transitions. Agents never hold a long-lived
// reference to this struct; they receive a read-only snapshot and return a
// Delta for the Machine to apply.
type WorkflowState struct {
	SessionID        string
	ReportID         string
	Task             AnalysisTask
	Stage            Stage
	Plan             []SearchIntent
	SourceData       map[string]SourceResultEnvelope
	SearchResults    []SearchSnippet
	CollectionStats  CollectionStats
	Report           *ClientAnalysisReport
	PreviousReport   *ClientAnalysisReport
	RetryCount       int
	UserFeedback     Feedback
	UserComment      string
	FocusAreas       []string
	AttemptHistory   []AttemptRecord
	LastError        string
	DegradedAccepted bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep-enough copy for safe read-only handoff to an agent;
// slices/maps are copied one level so an agent mutating its local view
// cannot corrupt the machine's owned state.
func (s *WorkflowState) Clone() WorkflowState {
	c := *s
	c.Plan = append([]SearchIntent(nil), s.Plan...)
	c.SourceData = make(map[string]SourceResultEnvelope, len(s.SourceData))
	for k, v := range s.SourceData {
		c.SourceData[k] = v
	}
	c.SearchResults = append([]SearchSnippet(nil), s.SearchResults...)
	c.FocusAreas = append([]string(nil), s.FocusAreas...)
	c.AttemptHistory = append([]AttemptRecord(nil), s.AttemptHistory...)
	return c
}
