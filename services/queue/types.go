// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package queue carries analysis tasks and their results over Kafka for
// the async surface (POST /agent/analyze-client/async, GET
// /agent/task/{task_id}), plus a side channel for cache-invalidation jobs.
package queue

import (
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// Topic names. Kafka itself has no priority queue primitive; "priority-aware"
// is honored by carrying AnalysisTask.Priority as a message header so a
// consumer can apply its own scheduling policy, not by separate per-priority
// partitions — documented as a deliberate simplification, not an oversight.
const (
	TopicAnalysisQueue   = "analysis_queue"
	TopicAnalysisResults = "analysis_results"
	TopicDLQAnalysis     = "dlq.analysis"
	TopicCacheQueue      = "cache_queue"
	TopicDLQCache        = "dlq.cache"
)

// TaskStatus mirrors the status field of GET /agent/task/{task_id}.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// AnalysisResult is the analysis_results fanout message shape.
type AnalysisResult struct {
	TaskID      string                          `json:"task_id"`
	Status      TaskStatus                      `json:"status"`
	Report      *workflow.ClientAnalysisReport  `json:"report,omitempty"`
	Error       string                          `json:"error,omitempty"`
	CompletedAt time.Time                       `json:"completed_at"`
}

// DLQEnvelope wraps a message that exhausted its delivery attempts, with
// the original payload preserved for manual replay or inspection.
type DLQEnvelope struct {
	Original []byte    `json:"original"`
	LastErr  string    `json:"last_error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// CacheInvalidationJob is the cache_queue message shape: invalidate one
// cached entry (e.g. after an admin-triggered upstream refresh).
type CacheInvalidationJob struct {
	Space string `json:"space"`
	Key   string `json:"key"`
}
