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

// CourtCase is one litigation record against the counterparty.
type CourtCase struct {
	CaseNumber string `json:"case_number"`
	FiledDate  string `json:"filed_date"`
	Role       string `json:"role"` // plaintiff | defendant
	Outcome    string `json:"outcome,omitempty"`
	ClaimValue float64 `json:"claim_value,omitempty"`
}

// CourtCasesResult is the court provider's typed payload.
type CourtCasesResult struct {
	Cases []CourtCase `json:"cases"`
}

// CourtClient looks up litigation history by INN or company name.
type CourtClient struct{ base }

// NewCourtClient builds a CourtClient against baseURL.
func NewCourtClient(httpClient *httpcore.Client, cache storage.Repository, baseURL string, timeout, ttl time.Duration) *CourtClient {
	return &CourtClient{base: base{source: "court", http: httpClient, cache: cache, baseURL: baseURL, timeout: timeout, ttl: ttl}}
}

// Lookup fetches court-case history for the given query (INN or name).
func (c *CourtClient) Lookup(ctx context.Context, query string) SourceResultEnvelope {
	start := time.Now()
	if env, ok := c.cached(ctx, query); ok {
		return *env
	}
	if c.baseURL == "" {
		return c.fail(start, apperr.New(apperr.KindUpstream, "court provider not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	body, status, err := c.http.Request(ctx, c.source, fmt.Sprintf("%s/v1/cases?q=%s", c.baseURL, query), httpcore.RequestOptions{Method: "GET"})
	if err != nil {
		return c.fail(start, err)
	}
	if status >= 400 {
		return c.fail(start, apperr.New(apperr.KindUpstream, fmt.Sprintf("court API returned status %d", status)))
	}

	var result CourtCasesResult
	if err := json.Unmarshal(body, &result); err != nil {
		return c.fail(start, apperr.Wrap(apperr.KindUpstream, "malformed court response", err))
	}
	payload, _ := json.Marshal(result)
	env := SourceResultEnvelope{Source: c.source, Status: "success", Payload: payload, DurationMs: time.Since(start).Milliseconds()}
	c.storeResult(ctx, env, query)
	return env
}
