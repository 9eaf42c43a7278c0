// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"sync"

	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// activeSession is one in-flight Machine.Run, kept alive for the duration
// of the request regardless of whether the caller is streaming, so
// DELETE /agent/analyze/{session_id} has something to cancel and a
// reconnecting SSE client has a bus and state to catch up from.
type activeSession struct {
	cancel   func()
	bus      *workflow.EventBus
	getState func() workflow.WorkflowState
}

// SessionRegistry tracks sessions currently executing. Safe for concurrent
// use; the API layer registers a session before starting its goroutine and
// unregisters it once Machine.Run returns.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*activeSession
}

// NewSessionRegistry builds an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*activeSession)}
}

// Register records a running session.
func (r *SessionRegistry) Register(sessionID string, cancel func(), bus *workflow.EventBus, getState func() workflow.WorkflowState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = &activeSession{cancel: cancel, bus: bus, getState: getState}
}

// Unregister drops a session once its run has finished, successfully or
// not. Calling it twice, or on an unknown ID, is a no-op.
func (r *SessionRegistry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Get returns the active session, if any, for SSE reconnect.
func (r *SessionRegistry) Get(sessionID string) (bus *workflow.EventBus, getState func() workflow.WorkflowState, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, found := r.sessions[sessionID]
	if !found {
		return nil, nil, false
	}
	return s.bus, s.getState, true
}

// Cancel stops a running session's context, per DELETE /agent/analyze/{id}.
// Returns false if the session is not currently running (already completed
// or unknown), which the handler maps to 404.
func (r *SessionRegistry) Cancel(sessionID string) bool {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.cancel()
	return true
}
