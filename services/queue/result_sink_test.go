// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusKey(t *testing.T) {
	assert.Equal(t, "task_status:abc-123", TaskStatusKey("abc-123"))
	assert.Equal(t, TaskStatusKeyPrefix+"abc-123", TaskStatusKey("abc-123"))
}

func TestTaskStatusTTL_MatchesIdempotencyWindow(t *testing.T) {
	assert.Equal(t, 24*time.Hour, TaskStatusTTL)
}

func TestNewResultSink_DefaultsConsumersAndTimeout(t *testing.T) {
	s := NewResultSink(ConsumerConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Equal(t, 4, s.cfg.MaxConsumers)
	assert.Equal(t, 30*time.Second, s.cfg.GracefulTimeout)
}
