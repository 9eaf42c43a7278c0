// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

func TestSessionRegistry_RegisterGetCancelUnregister(t *testing.T) {
	reg := NewSessionRegistry()

	canceled := false
	cancel := func() { canceled = true }
	bus := workflow.NewEventBus(4)
	getState := func() workflow.WorkflowState { return workflow.WorkflowState{SessionID: "s1"} }

	_, _, ok := reg.Get("s1")
	assert.False(t, ok, "unregistered session should not be found")

	reg.Register("s1", cancel, bus, getState)

	gotBus, gotState, ok := reg.Get("s1")
	assert.True(t, ok)
	assert.Same(t, bus, gotBus)
	assert.Equal(t, "s1", gotState().SessionID)

	assert.True(t, reg.Cancel("s1"))
	assert.True(t, canceled)

	reg.Unregister("s1")
	_, _, ok = reg.Get("s1")
	assert.False(t, ok)

	assert.False(t, reg.Cancel("s1"), "cancelling an unknown session returns false")
}

func TestSessionRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	reg := NewSessionRegistry()
	assert.NotPanics(t, func() { reg.Unregister("does-not-exist") })
}
