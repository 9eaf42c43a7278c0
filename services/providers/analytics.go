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

// AnalyticsFlags is the analytics provider's typed payload: financial-risk
// signals the scorer blends into the Financial category.
type AnalyticsFlags struct {
	CreditScore    int      `json:"credit_score,omitempty"`
	LiquidityRatio *float64 `json:"liquidity_ratio,omitempty"`
	DebtRatio      *float64 `json:"debt_ratio,omitempty"`
}

// AnalyticsClient looks up financial-analytics flags by INN.
type AnalyticsClient struct{ base }

// NewAnalyticsClient builds an AnalyticsClient against baseURL.
func NewAnalyticsClient(httpClient *httpcore.Client, cache storage.Repository, baseURL string, timeout, ttl time.Duration) *AnalyticsClient {
	return &AnalyticsClient{base: base{source: "analytics", http: httpClient, cache: cache, baseURL: baseURL, timeout: timeout, ttl: ttl}}
}

// Lookup fetches analytics flags for inn.
func (c *AnalyticsClient) Lookup(ctx context.Context, inn string) SourceResultEnvelope {
	start := time.Now()
	if env, ok := c.cached(ctx, inn); ok {
		return *env
	}
	if c.baseURL == "" {
		return c.fail(start, apperr.New(apperr.KindUpstream, "analytics provider not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	body, status, err := c.http.Request(ctx, c.source, fmt.Sprintf("%s/v1/analytics/%s", c.baseURL, inn), httpcore.RequestOptions{Method: "GET"})
	if err != nil {
		return c.fail(start, err)
	}
	if status >= 400 {
		return c.fail(start, apperr.New(apperr.KindUpstream, fmt.Sprintf("analytics API returned status %d", status)))
	}

	var flags AnalyticsFlags
	if err := json.Unmarshal(body, &flags); err != nil {
		return c.fail(start, apperr.Wrap(apperr.KindUpstream, "malformed analytics response", err))
	}
	payload, _ := json.Marshal(flags)
	env := SourceResultEnvelope{Source: c.source, Status: "success", Payload: payload, DurationMs: time.Since(start).Milliseconds()}
	c.storeResult(ctx, env, inn)
	return env
}
