// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sse turns the workflow state machine's event bus into the
// ordered text/event-stream the HTTP layer exposes for
// POST /agent/analyze-client?stream=true.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer emits Server-Sent Events onto an http.ResponseWriter. Safe for
// concurrent use; a session emits from a single goroutine in practice but
// WriteKeepAlive may run concurrently from a ticker.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewWriter wraps w. Returns an error if w does not support http.Flusher,
// which every net/http ResponseWriter given to a handler does in practice.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// SetHeaders configures the response for SSE. Must be called before any
// write, including before the handler returns on an error path.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteEvent writes one named event with a JSON-serializable payload and
// flushes immediately so the client sees it without delay.
func (w *Writer) WriteEvent(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteKeepAlive sends an SSE comment line to hold the connection open
// through intermediary idle timeouts (load balancers, proxies) during long
// collecting/analyzing stages.
func (w *Writer) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprint(w.w, ": ping\n\n"); err != nil {
		return fmt.Errorf("write sse keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}
