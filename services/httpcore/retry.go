// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpcore

import (
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy configures the resilient client's retry behavior: transport
// errors and 5xx/429 responses are retried with exponential backoff and
// jitter; any other 4xx is terminal.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy matches the spec's default of 3 retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// ShouldRetry reports whether a response/transport-error combination is
// retryable. resp is nil on a transport-level failure.
func ShouldRetry(resp *http.Response, transportErr error) bool {
	if transportErr != nil {
		return true
	}
	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode >= 500
}

// Backoff returns the delay before retry attempt n (1-indexed), exponential
// with up to 30% jitter, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	exp := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(p.MaxDelay) {
		exp = float64(p.MaxDelay)
	}
	jitter := exp * 0.3 * rand.Float64()
	return time.Duration(exp + jitter)
}
