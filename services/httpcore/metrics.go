// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpcore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore/breaker"
)

const (
	metricsNamespace = "risk_engine"
	httpcoreSubsystem = "httpcore"
)

// Metrics holds the Prometheus collectors the resilient HTTP core feeds,
// rendered at GET /utility/metrics.
type Metrics struct {
	requests   *prometheus.CounterVec
	successes  *prometheus.CounterVec
	retries    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	cbTransitions *prometheus.CounterVec
}

// NewMetrics registers the httpcore collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: httpcoreSubsystem,
			Name: "requests_total", Help: "Outbound HTTP requests by host key.",
		}, []string{"host_key"}),
		successes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: httpcoreSubsystem,
			Name: "successes_total", Help: "Outbound HTTP requests that succeeded.",
		}, []string{"host_key"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: httpcoreSubsystem,
			Name: "retries_total", Help: "Retry attempts by host key.",
		}, []string{"host_key"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: httpcoreSubsystem,
			Name: "request_duration_seconds", Help: "Outbound request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host_key"}),
		cbTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: httpcoreSubsystem,
			Name: "circuit_breaker_transitions_total", Help: "Circuit breaker state transitions.",
		}, []string{"host_key", "from", "to"}),
	}
}

func (m *Metrics) transitionHook(hostKey string) func(from, to breaker.State) {
	return func(from, to breaker.State) {
		m.cbTransitions.WithLabelValues(hostKey, from.String(), to.String()).Inc()
	}
}
