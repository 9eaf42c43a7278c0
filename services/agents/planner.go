// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agents implements the four workflow agents (planner, collector,
// analyzer, writer) as short-lived borrowers of a workflow.WorkflowState
// snapshot that return deltas rather than mutating shared state.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/IvanKorch1289/client-analyze-agent/internal/validation"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// Planner builds the initial plan of search intents: five built-in
// templates parameterized by client_name/inn, plus one custom intent per
// non-empty line of notes.
type Planner struct{}

// NewPlanner builds a Planner.
func NewPlanner() *Planner { return &Planner{} }

// Plan implements workflow.Planner.
func (p *Planner) Plan(_ context.Context, state workflow.WorkflowState) (workflow.PlanDelta, error) {
	name := state.Task.ClientName
	inn := state.Task.INN

	warning := ""
	innValid := inn != ""
	if inn != "" {
		if err := validation.ValidateINN(inn); err != nil {
			innValid = false
			warning = fmt.Sprintf("inn %q failed validation (%v); financial/legal categories will be downweighted", inn, err)
		}
	}

	intents := []workflow.SearchIntent{
		{Category: workflow.IntentReputation, Query: fmt.Sprintf("%s reputation reviews", name)},
		{Category: workflow.IntentNews, Query: fmt.Sprintf("%s news", name)},
		{Category: workflow.IntentNegative, Query: fmt.Sprintf("%s complaints fraud scandal", name)},
	}
	if innValid {
		intents = append(intents,
			workflow.SearchIntent{Category: workflow.IntentLawsuits, Query: inn},
			workflow.SearchIntent{Category: workflow.IntentFinancial, Query: inn},
		)
	} else {
		intents = append(intents,
			workflow.SearchIntent{Category: workflow.IntentLawsuits, Query: name},
			workflow.SearchIntent{Category: workflow.IntentFinancial, Query: name},
		)
	}

	for _, line := range strings.Split(state.Task.Notes, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		intents = append(intents, workflow.SearchIntent{Category: workflow.IntentCustom, Query: line})
	}

	return workflow.PlanDelta{Plan: intents, Warning: warning}, nil
}
