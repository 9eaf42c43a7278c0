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
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// ProducerConfig tunes the underlying kafka.Writer instances.
type ProducerConfig struct {
	Brokers      []string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
}

// Publisher owns one kafka.Writer per topic it has been asked to publish
// to, created lazily on first use.
type Publisher struct {
	cfg     ProducerConfig
	writers map[string]*kafka.Writer
}

// NewPublisher builds a Publisher. Defaults: batch timeout 100ms, write
// timeout 10s, RequireAll acks (matches the writer-commits-before-ack
// durability the spec's consumer protocol assumes).
func NewPublisher(cfg ProducerConfig) *Publisher {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = kafka.RequireAll
	}
	return &Publisher{cfg: cfg, writers: make(map[string]*kafka.Writer)}
}

func (p *Publisher) writerFor(topic string) *kafka.Writer {
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: p.cfg.BatchTimeout,
		WriteTimeout: p.cfg.WriteTimeout,
		RequiredAcks: p.cfg.RequiredAcks,
		Async:        false,
	}
	p.writers[topic] = w
	return w
}

// PublishAnalysisTask enqueues task onto analysis_queue, keyed by task_id
// for at-least-once idempotent consumption.
func (p *Publisher) PublishAnalysisTask(ctx context.Context, task workflow.AnalysisTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal analysis task: %w", err)
	}
	return p.write(ctx, TopicAnalysisQueue, task.TaskID, body, kafka.Header{
		Key: "priority", Value: []byte(strconv.Itoa(task.Priority)),
	})
}

// PublishResult publishes a completed/failed outcome to analysis_results.
func (p *Publisher) PublishResult(ctx context.Context, result AnalysisResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}
	return p.write(ctx, TopicAnalysisResults, result.TaskID, body)
}

// PublishCacheInvalidation enqueues a cache-invalidation job.
func (p *Publisher) PublishCacheInvalidation(ctx context.Context, job CacheInvalidationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal cache invalidation job: %w", err)
	}
	return p.write(ctx, TopicCacheQueue, job.Space+":"+job.Key, body)
}

// PublishDLQ sends original (the undecoded message body that exhausted its
// delivery attempts) to the given dead-letter topic, wrapped in a
// DLQEnvelope recording why and how many times it was tried.
func (p *Publisher) PublishDLQ(ctx context.Context, dlqTopic, key string, original []byte, lastErr error, attempts int) error {
	env := DLQEnvelope{Original: original, LastErr: lastErr.Error(), Attempts: attempts, FailedAt: time.Now()}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal dlq envelope: %w", err)
	}
	return p.write(ctx, dlqTopic, key, body)
}

func (p *Publisher) write(ctx context.Context, topic, key string, body []byte, headers ...kafka.Header) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(key), Value: body, Time: time.Now(), Headers: headers}
	if err := p.writerFor(topic).WriteMessages(writeCtx, msg); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "topic", topic, "key", key, "error", err)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close closes every writer this Publisher has opened.
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
