// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package breaker implements a per-host circuit breaker for the resilient
// HTTP core: closed → open after a run of consecutive failures, open → one
// half-open probe after a reset timeout, probe success closes it again.
package breaker

import (
	"sync"
	"time"
)

// State is one of Closed, Open, HalfOpen.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker guards a single logical host key. Safe for concurrent use.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	failureThreshold int
	resetTimeout     time.Duration
	openedAt         time.Time
	probing          bool

	onTransition func(from, to State)
}

// Option configures a Breaker at construction time.
type Option func(*Breaker)

// WithTransitionHook registers a callback invoked (under the lock) on
// every state change, used by the HTTP core to record CB transition metrics.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onTransition = fn }
}

// New creates a Breaker with the given failure threshold and reset timeout.
func New(failureThreshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		state:            Closed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a request may proceed. When the breaker is open
// past its reset timeout it transitions to half-open and allows exactly one
// probe through; concurrent callers racing for that probe will see false
// until the probe resolves via RecordSuccess/RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.openedAt) < b.resetTimeout {
			return false
		}
		if b.probing {
			return false
		}
		b.probing = true
		b.transition(HalfOpen)
		return true
	case HalfOpen:
		return false
	default:
		return false
	}
}

// RecordSuccess closes the breaker (from closed: resets the failure count;
// from half-open: the probe succeeded).
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	if b.state != Closed {
		b.transition(Closed)
	}
}

// RecordFailure registers a failed call. From closed it may open the
// breaker once failures reach the threshold; from half-open the failed
// probe reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	switch b.state {
	case HalfOpen:
		b.openedAt = time.Now()
		b.transition(Open)
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.openedAt = time.Now()
			b.transition(Open)
		}
	}
}

// State returns the current state for introspection (e.g. the
// GET /utility/circuit-breakers route).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed, used by the admin reset route.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	if b.state != Closed {
		b.transition(Closed)
	}
}

// transition must be called with b.mu held. The hook is expected to be a
// simple, non-reentrant metrics recorder — it is invoked under the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.onTransition != nil && from != to {
		b.onTransition(from, to)
	}
}
