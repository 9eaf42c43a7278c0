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
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

// CacheConsumer drains cache_queue, invalidating one cache-space entry per
// job. Failures after MaxDelivery attempts flow to dlq.cache, mirroring
// the analysis queue's retry/DLQ shape on a much smaller message body.
type CacheConsumer struct {
	cfg       ConsumerConfig
	reader    *kafka.Reader
	publisher *Publisher
	repo      storage.Repository
	wg        sync.WaitGroup
}

// NewCacheConsumer builds a CacheConsumer.
func NewCacheConsumer(cfg ConsumerConfig, publisher *Publisher, repo storage.Repository) *CacheConsumer {
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
		Topic:          TopicCacheQueue,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	return &CacheConsumer{cfg: cfg, reader: reader, publisher: publisher, repo: repo}
}

// Run mirrors Consumer.Run: bounded workers, manual commit after the
// invalidation has actually happened, graceful drain on shutdown.
func (c *CacheConsumer) Run(ctx context.Context) error {
	for i := 0; i < c.cfg.MaxConsumers; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() { c.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(c.cfg.GracefulTimeout):
		logging.FromContext(ctx).Warn("cache consumer graceful shutdown timed out", "timeout", c.cfg.GracefulTimeout)
	}
	return c.reader.Close()
}

func (c *CacheConsumer) worker(ctx context.Context) {
	defer c.wg.Done()
	log := logging.FromContext(ctx)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("cache queue fetch failed", "error", err)
			continue
		}

		var job CacheInvalidationJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			c.deadLetter(ctx, msg, err, attemptCount(msg))
		} else if err := c.repo.DeleteCache(ctx, job.Space+":"+job.Key); err != nil {
			attempts := attemptCount(msg) + 1
			if attempts < c.cfg.MaxDelivery {
				log.Warn("cache invalidation failed, requeuing", "space", job.Space, "key", job.Key, "attempt", attempts, "error", err)
				_ = c.publisher.write(ctx, TopicCacheQueue, job.Space+":"+job.Key, msg.Value, kafka.Header{Key: attemptHeader, Value: []byte(strconv.Itoa(attempts))})
			} else {
				c.deadLetter(ctx, msg, err, attempts)
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("cache queue commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *CacheConsumer) deadLetter(ctx context.Context, msg kafka.Message, err error, attempts int) {
	if dlqErr := c.publisher.PublishDLQ(ctx, TopicDLQCache, string(msg.Key), msg.Value, err, attempts); dlqErr != nil {
		logging.FromContext(ctx).Error("failed to publish to dlq.cache", "key", string(msg.Key), "error", dlqErr)
	}
}
