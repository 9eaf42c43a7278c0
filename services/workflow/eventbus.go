// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names one of the typed workflow events every subscriber
// (SSE adapter, thread store, metrics) can filter on.
type EventType string

const (
	EventStageStarted     EventType = "stage_started"
	EventStageCompleted   EventType = "stage_completed"
	EventSourceResult     EventType = "source_result"
	EventReportReady      EventType = "report_ready"
	EventAwaitingFeedback EventType = "awaiting_feedback"
	EventCompleted        EventType = "completed"
	EventFailed           EventType = "failed"
)

// Event is one item on the bus.
type Event struct {
	ID        string
	Type      EventType
	SessionID string
	Timestamp time.Time
	Data      any
}

// Handler processes an event. Panics inside a Handler are recovered by the
// bus so one misbehaving subscriber cannot take down the others or the
// state machine goroutine that's emitting.
type Handler func(event *Event)

// EventBus broadcasts workflow transitions to subscribers. Safe for
// concurrent use.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	buffer        []Event
	bufferSize    int
}

type subscription struct {
	handler Handler
	types   map[EventType]struct{}
}

// NewEventBus builds an EventBus retaining up to bufferSize recent events
// for late subscribers (e.g. an SSE client reconnecting mid-run).
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventBus{
		subscriptions: make(map[string]*subscription),
		bufferSize:    bufferSize,
		buffer:        make([]Event, 0, bufferSize),
	}
}

// Subscribe registers handler for the given event types (all types if
// none given) and returns a subscription ID for Unsubscribe.
func (b *EventBus) Subscribe(handler Handler, types ...EventType) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	set := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	b.subscriptions[id] = &subscription{handler: handler, types: set}
	return id
}

// Unsubscribe removes a subscription. Returns false if it was already gone.
func (b *EventBus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscriptions[id]; ok {
		delete(b.subscriptions, id)
		return true
	}
	return false
}

// Publish broadcasts an event of the given type to every matching
// subscriber and appends it to the replay buffer.
func (b *EventBus) Publish(sessionID string, eventType EventType, data any) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, s := range b.subscriptions {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	event := Event{ID: uuid.NewString(), Type: eventType, SessionID: sessionID, Timestamp: time.Now(), Data: data}

	b.mu.Lock()
	if len(b.buffer) >= b.bufferSize {
		b.buffer = b.buffer[1:]
	}
	b.buffer = append(b.buffer, event)
	b.mu.Unlock()

	for _, s := range subs {
		if len(s.types) > 0 {
			if _, ok := s.types[eventType]; !ok {
				continue
			}
		}
		b.invoke(s.handler, &event)
	}
}

func (b *EventBus) invoke(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("workflow event handler panicked", "event_type", event.Type, "event_id", event.ID, "panic", r)
		}
	}()
	handler(event)
}

// Since returns buffered events published after t, for reconnecting
// subscribers that missed a window of the run.
func (b *EventBus) Since(t time.Time) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, e := range b.buffer {
		if e.Timestamp.After(t) {
			out = append(out, e)
		}
	}
	return out
}
