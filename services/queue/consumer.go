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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

const attemptHeader = "x-attempt"

// idempotencyTTL bounds how long a processed task_id is remembered; a
// redelivery of the same task_id within this window is a no-op ack.
const idempotencyTTL = 24 * time.Hour

// Handler runs one AnalysisTask to completion (typically by driving a
// workflow.Machine) and returns the report, or an error for a terminal
// workflow failure.
type Handler func(ctx context.Context, task workflow.AnalysisTask) (*workflow.ClientAnalysisReport, error)

// ConsumerConfig tunes the reader and delivery/ack semantics.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	MaxConsumers    int           // default 10, per max_consumers
	MaxDelivery     int           // default 3 attempts before DLQ
	GracefulTimeout time.Duration // default 30s, per graceful_timeout
}

// Consumer drains analysis_queue with bounded worker parallelism. Acks
// (commits) only after the task's result has been durably persisted via
// Handler and published to analysis_results — at-least-once delivery,
// idempotency enforced against repo by task_id.
type Consumer struct {
	cfg       ConsumerConfig
	reader    *kafka.Reader
	publisher *Publisher
	repo      storage.Repository
	handler   Handler
	wg        sync.WaitGroup
}

// NewConsumer builds a Consumer. Commits are manual (CommitInterval=0) so
// an ack never races ahead of the handler's own durability guarantee.
func NewConsumer(cfg ConsumerConfig, publisher *Publisher, repo storage.Repository, handler Handler) *Consumer {
	if cfg.MaxConsumers <= 0 {
		cfg.MaxConsumers = 10
	}
	if cfg.MaxDelivery <= 0 {
		cfg.MaxDelivery = 3
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 30 * time.Second
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          TopicAnalysisQueue,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	return &Consumer{cfg: cfg, reader: reader, publisher: publisher, repo: repo, handler: handler}
}

// Run starts MaxConsumers worker goroutines and blocks until ctx is
// canceled, then waits up to GracefulTimeout for in-flight messages to
// finish before returning.
func (c *Consumer) Run(ctx context.Context) error {
	for i := 0; i < c.cfg.MaxConsumers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() { c.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(c.cfg.GracefulTimeout):
		logging.FromContext(ctx).Warn("queue consumer graceful shutdown timed out", "timeout", c.cfg.GracefulTimeout)
	}
	return c.reader.Close()
}

func (c *Consumer) worker(ctx context.Context, workerID int) {
	defer c.wg.Done()
	log := logging.FromContext(ctx)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("kafka fetch failed", "worker_id", workerID, "error", err)
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("kafka commit failed", "worker_id", workerID, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := logging.FromContext(ctx)

	var task workflow.AnalysisTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		c.deadLetter(ctx, msg, fmt.Errorf("unmarshal analysis task: %w", err), attemptCount(msg))
		return
	}

	idemKey := "idem:task:" + task.TaskID
	if seen, err := c.repo.Exists(ctx, "cache", idemKey); err == nil && seen {
		log.Info("duplicate task_id delivery, skipping", "task_id", task.TaskID)
		return
	}

	report, err := c.handler(ctx, task)
	if err != nil {
		c.retryOrDeadLetter(ctx, msg, task, err)
		return
	}

	result := AnalysisResult{TaskID: task.TaskID, Status: TaskCompleted, Report: report, CompletedAt: time.Now()}
	if err := c.publisher.PublishResult(ctx, result); err != nil {
		c.retryOrDeadLetter(ctx, msg, task, apperr.Wrap(apperr.KindStorage, "publish analysis result", err))
		return
	}

	if err := c.repo.SetWithTTL(ctx, idemKey, json.RawMessage(`true`), "queue", idempotencyTTL); err != nil {
		log.Warn("failed to record idempotency marker", "task_id", task.TaskID, "error", err)
	}
}

func (c *Consumer) retryOrDeadLetter(ctx context.Context, msg kafka.Message, task workflow.AnalysisTask, err error) {
	attempts := attemptCount(msg) + 1
	if attempts < c.cfg.MaxDelivery {
		logging.FromContext(ctx).Warn("analysis task failed, requeuing", "task_id", task.TaskID, "attempt", attempts, "error", err)
		if pubErr := c.publisher.write(ctx, TopicAnalysisQueue, task.TaskID, msg.Value, kafka.Header{
			Key: attemptHeader, Value: []byte(strconv.Itoa(attempts)),
		}); pubErr != nil {
			logging.FromContext(ctx).Error("failed to requeue analysis task", "task_id", task.TaskID, "error", pubErr)
		}
		return
	}
	c.deadLetter(ctx, msg, err, attempts)

	result := AnalysisResult{TaskID: task.TaskID, Status: TaskFailed, Error: err.Error(), CompletedAt: time.Now()}
	if pubErr := c.publisher.PublishResult(ctx, result); pubErr != nil {
		logging.FromContext(ctx).Error("failed to publish terminal failure result", "task_id", task.TaskID, "error", pubErr)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, err error, attempts int) {
	if dlqErr := c.publisher.PublishDLQ(ctx, TopicDLQAnalysis, string(msg.Key), msg.Value, err, attempts); dlqErr != nil {
		logging.FromContext(ctx).Error("failed to publish to dlq.analysis", "key", string(msg.Key), "error", dlqErr)
	}
}

func attemptCount(msg kafka.Message) int {
	for _, h := range msg.Headers {
		if h.Key == attemptHeader {
			n, err := strconv.Atoi(string(h.Value))
			if err == nil {
				return n
			}
		}
	}
	return 0
}
