// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

// TaskStatusKeyPrefix namespaces the cache-space entry GET /agent/task/{id}
// reads. Exported so the API layer and this sink agree on the key shape
// without importing each other.
const TaskStatusKeyPrefix = "task_status:"

// TaskStatusTTL bounds how long a completed/failed task's status is kept
// around for polling, matching the idempotency marker's window.
const TaskStatusTTL = idempotencyTTL

// TaskStatusKey is the cache-space key for a task's latest known status.
func TaskStatusKey(taskID string) string { return TaskStatusKeyPrefix + taskID }

// ResultSink drains analysis_results and materializes each AnalysisResult
// into the repository's cache space, so GET /agent/task/{task_id} can
// answer from storage rather than holding a live connection into Kafka.
type ResultSink struct {
	cfg    ConsumerConfig
	reader *kafka.Reader
	repo   storage.Repository
	wg     sync.WaitGroup
}

// NewResultSink builds a ResultSink reading analysis_results under its own
// consumer group, independent of the analysis_queue workers.
func NewResultSink(cfg ConsumerConfig, repo storage.Repository) *ResultSink {
	if cfg.MaxConsumers <= 0 {
		cfg.MaxConsumers = 4
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 30 * time.Second
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          TopicAnalysisResults,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	return &ResultSink{cfg: cfg, reader: reader, repo: repo}
}

// Run mirrors Consumer.Run.
func (s *ResultSink) Run(ctx context.Context) error {
	for i := 0; i < s.cfg.MaxConsumers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(s.cfg.GracefulTimeout):
		logging.FromContext(ctx).Warn("result sink graceful shutdown timed out", "timeout", s.cfg.GracefulTimeout)
	}
	return s.reader.Close()
}

func (s *ResultSink) worker(ctx context.Context) {
	defer s.wg.Done()
	log := logging.FromContext(ctx)

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("result sink fetch failed", "error", err)
			continue
		}

		var result AnalysisResult
		if err := json.Unmarshal(msg.Value, &result); err == nil {
			raw, marshalErr := json.Marshal(result)
			if marshalErr != nil {
				log.Error("result sink marshal failed", "task_id", result.TaskID, "error", marshalErr)
			} else if err := s.repo.SetWithTTL(ctx, TaskStatusKey(result.TaskID), raw, "queue", TaskStatusTTL); err != nil {
				log.Error("result sink store failed", "task_id", result.TaskID, "error", err)
			}
		} else {
			log.Error("result sink unmarshal failed", "error", err)
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("result sink commit failed", "offset", msg.Offset, "error", err)
		}
	}
}
