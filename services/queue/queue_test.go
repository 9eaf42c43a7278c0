// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package queue

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptCount(t *testing.T) {
	t.Run("no header defaults to zero", func(t *testing.T) {
		assert.Equal(t, 0, attemptCount(kafka.Message{}))
	})

	t.Run("reads the attempt header", func(t *testing.T) {
		msg := kafka.Message{Headers: []kafka.Header{{Key: attemptHeader, Value: []byte("2")}}}
		assert.Equal(t, 2, attemptCount(msg))
	})

	t.Run("non-numeric header defaults to zero", func(t *testing.T) {
		msg := kafka.Message{Headers: []kafka.Header{{Key: attemptHeader, Value: []byte("not-a-number")}}}
		assert.Equal(t, 0, attemptCount(msg))
	})
}

func TestDLQEnvelope_RoundTrips(t *testing.T) {
	env := DLQEnvelope{Original: []byte(`{"task_id":"t1"}`), LastErr: "upstream timeout", Attempts: 3}

	body, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded DLQEnvelope
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, env.LastErr, decoded.LastErr)
	assert.Equal(t, env.Attempts, decoded.Attempts)
	assert.JSONEq(t, `{"task_id":"t1"}`, string(decoded.Original))
}

func TestAnalysisResult_FailedHasNoReport(t *testing.T) {
	result := AnalysisResult{TaskID: "t1", Status: TaskFailed, Error: "insufficient data"}
	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(body), `"report"`)
}
