// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/IvanKorch1289/client-analyze-agent/services/providers"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// Collector fans out to the provider clients for each planned intent,
// bounded by a semaphore, and annotates every web-search snippet with a
// deterministic sentiment label.
type Collector struct {
	registry  *providers.RegistryClient
	court     *providers.CourtClient
	analytics *providers.AnalyticsClient
	search    *providers.SearchClient
	searchDeep *providers.SearchClient
	maxConcurrent int64
}

// NewCollector builds a Collector. maxConcurrent bounds simultaneous
// in-flight provider calls (default 5, per MAX_CONCURRENT_SEARCHES).
func NewCollector(registry *providers.RegistryClient, court *providers.CourtClient, analytics *providers.AnalyticsClient, search, searchDeep *providers.SearchClient, maxConcurrent int) *Collector {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Collector{
		registry: registry, court: court, analytics: analytics,
		search: search, searchDeep: searchDeep, maxConcurrent: int64(maxConcurrent),
	}
}

// Collect implements workflow.Collector.
func (c *Collector) Collect(ctx context.Context, state workflow.WorkflowState, intents []workflow.SearchIntent) (workflow.CollectDelta, error) {
	start := time.Now()
	sem := semaphore.NewWeighted(c.maxConcurrent)

	var mu sync.Mutex
	sourceData := make(map[string]workflow.SourceResultEnvelope)
	var snippets []workflow.SearchSnippet
	var wg sync.WaitGroup

	run := func(source string, fn func() providers.SourceResultEnvelope) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			env := fn()
			mu.Lock()
			sourceData[source] = toWorkflowEnvelope(env)
			mu.Unlock()
		}()
	}

	inn := state.Task.INN
	name := state.Task.ClientName

	run("registry", func() providers.SourceResultEnvelope { return c.registry.Lookup(ctx, inn) })
	run("analytics", func() providers.SourceResultEnvelope { return c.analytics.Lookup(ctx, inn) })

	hasLawsuitIntent := false
	for _, it := range intents {
		if it.Category == workflow.IntentLawsuits {
			hasLawsuitIntent = true
		}
	}
	if hasLawsuitIntent {
		query := inn
		if query == "" {
			query = name
		}
		run("court", func() providers.SourceResultEnvelope { return c.court.Lookup(ctx, query) })
	}

	for _, intent := range intents {
		switch intent.Category {
		case workflow.IntentReputation, workflow.IntentNews, workflow.IntentCustom:
			intent := intent
			source := "search-basic:" + intent.Query
			run(source, func() providers.SourceResultEnvelope { return c.search.Search(ctx, intent.Query) })
		case workflow.IntentNegative, workflow.IntentFinancial:
			// Scandal/complaint and financial-press intents get the wider,
			// slower index (search-deep) instead of search-basic: both need
			// recall over a cheap first page of hits.
			intent := intent
			source := "search-deep:" + intent.Query
			run(source, func() providers.SourceResultEnvelope { return c.searchDeep.Search(ctx, intent.Query) })
		}
	}

	wg.Wait()

	for source, env := range sourceData {
		if strings.HasPrefix(source, "search-") && env.Status == "success" {
			var result providers.SearchResult
			if err := json.Unmarshal(env.Payload, &result); err == nil {
				for _, hit := range result.Hits {
					text := hit.Title + ". " + hit.Snippet
					snippets = append(snippets, workflow.SearchSnippet{
						Source: source, Title: hit.Title, URL: hit.URL, Text: text,
						Sentiment: classifySentiment(text),
					})
				}
			}
		}
	}

	registryFailed := sourceData["registry"].Status == "failed"
	analyticsFailed := sourceData["analytics"].Status == "failed"

	succeeded, failed := 0, 0
	for _, env := range sourceData {
		if env.Status == "success" {
			succeeded++
		} else {
			failed++
		}
	}

	return workflow.CollectDelta{
		SourceData:    sourceData,
		SearchResults: snippets,
		Stats: workflow.CollectionStats{
			SourcesAttempted: len(sourceData),
			SourcesSucceeded: succeeded,
			SourcesFailed:    failed,
			DurationMs:       time.Since(start).Milliseconds(),
		},
		Insufficient: registryFailed && analyticsFailed,
	}, nil
}

func toWorkflowEnvelope(env providers.SourceResultEnvelope) workflow.SourceResultEnvelope {
	return workflow.SourceResultEnvelope{
		Source: env.Source, Status: env.Status, Payload: json.RawMessage(env.Payload),
		Error: env.Error, DurationMs: env.DurationMs,
	}
}
