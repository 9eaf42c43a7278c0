// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

// SearchHit is one web-search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResult is the search provider's typed payload.
type SearchResult struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// SearchDepth distinguishes the two web-search engine instances named in
// §2.1: a fast shallow query and a slower, wider one used for
// hard-to-classify counterparties.
type SearchDepth string

const (
	// SearchBasic hits a single cheap search index with a tight page limit.
	SearchBasic SearchDepth = "search-basic"
	// SearchDeep paginates further against a higher-quality index; the
	// collector routes negative/scandal and financial-press intents here
	// since both need recall over search-basic's cheap first page.
	SearchDeep SearchDepth = "search-deep"
)

// SearchClient queries a web-search engine for open-source mentions of a
// counterparty. Two instances are constructed — one per SearchDepth — since
// each talks to a different upstream with its own base URL, timeout, and
// circuit breaker host key.
type SearchClient struct {
	base
	depth      SearchDepth
	maxResults int
}

// NewSearchClient builds a SearchClient for the given depth. The host key
// used for the circuit breaker and metrics is the depth string itself
// ("search-basic" / "search-deep"), so the two engines fail independently.
func NewSearchClient(httpClient *httpcore.Client, cache storage.Repository, depth SearchDepth, baseURL string, timeout, ttl time.Duration, maxResults int) *SearchClient {
	return &SearchClient{
		base:       base{source: string(depth), http: httpClient, cache: cache, baseURL: baseURL, timeout: timeout, ttl: ttl},
		depth:      depth,
		maxResults: maxResults,
	}
}

// Search runs query against the configured engine, consulting the cache
// lookaside first.
func (c *SearchClient) Search(ctx context.Context, query string) SourceResultEnvelope {
	start := time.Now()
	if env, ok := c.cached(ctx, query); ok {
		return *env
	}
	if c.baseURL == "" {
		return c.fail(start, apperr.New(apperr.KindUpstream, string(c.depth)+" provider not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hits := make([]SearchHit, 0, c.maxResults)
	url := fmt.Sprintf("%s/v1/search?q=%s&limit=%d", c.baseURL, query, c.maxResults)
	pages, err := c.http.FetchAllPages(ctx, c.source, url, maxSearchPages(c.depth), func(body []byte) string {
		var page struct {
			NextPageURL string      `json:"next_page_url"`
			Hits        []SearchHit `json:"hits"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return ""
		}
		hits = append(hits, page.Hits...)
		return page.NextPageURL
	})
	if err != nil {
		return c.fail(start, err)
	}
	if len(pages) == 0 {
		return c.fail(start, apperr.New(apperr.KindUpstream, string(c.depth)+" returned no pages"))
	}
	if len(hits) > c.maxResults {
		hits = hits[:c.maxResults]
	}

	payload, _ := json.Marshal(SearchResult{Query: query, Hits: hits})
	env := SourceResultEnvelope{Source: c.source, Status: "success", Payload: payload, DurationMs: time.Since(start).Milliseconds()}
	c.storeResult(ctx, env, query)
	return env
}

// maxSearchPages bounds pagination depth per engine: the basic engine stops
// after the first page, the deep engine follows up to 5 before giving up.
func maxSearchPages(depth SearchDepth) int {
	if depth == SearchDeep {
		return 5
	}
	return 1
}
