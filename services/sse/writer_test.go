// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sse

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriter_WriteEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.WriteEvent("start", map[string]any{"session_id": "abc"}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: start\n") {
		t.Fatalf("unexpected frame prefix: %q", body)
	}
	if !strings.Contains(body, `"session_id":"abc"`) {
		t.Fatalf("payload not present: %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("frame not double-newline terminated: %q", body)
	}
}

func TestWriter_WriteKeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteKeepAlive(); err != nil {
		t.Fatalf("WriteKeepAlive: %v", err)
	}
	if rec.Body.String() != ": ping\n\n" {
		t.Fatalf("unexpected keepalive frame: %q", rec.Body.String())
	}
}
