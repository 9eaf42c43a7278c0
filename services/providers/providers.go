// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers holds one client per external evidence source
// (company registry, court-cases, analytics, and two web-search engines),
// each built on the resilient HTTP core with a cache-repository lookaside.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

// SourceResultEnvelope is the uniform wrapper every provider call returns,
// regardless of success, partial success, or failure.
type SourceResultEnvelope struct {
	Source     string          `json:"source"`
	Status     string          `json:"status"` // success | partial | failed
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// cacheKey builds the deterministic lookaside key f"{source}:{canonicalized_args}".
func cacheKey(source string, args ...string) string {
	h := sha256.New()
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%s", source, hex.EncodeToString(h.Sum(nil))[:24])
}

// base is embedded by every concrete provider client; it supplies the
// cache-lookaside pattern shared across registry/court/analytics/search.
type base struct {
	source  string
	http    *httpcore.Client
	cache   storage.Repository
	ttl     time.Duration
	timeout time.Duration
	baseURL string
}

func (b *base) cached(ctx context.Context, args ...string) (*SourceResultEnvelope, bool) {
	key := cacheKey(b.source, args...)
	entry, err := b.cache.GetCache(ctx, key)
	if err != nil || entry == nil {
		return nil, false
	}
	var env SourceResultEnvelope
	if err := json.Unmarshal(entry.Value, &env); err != nil {
		return nil, false
	}
	return &env, true
}

func (b *base) storeResult(ctx context.Context, env SourceResultEnvelope, args ...string) {
	key := cacheKey(b.source, args...)
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = b.cache.SetWithTTL(ctx, key, raw, b.source, b.ttl)
}

func (b *base) fail(start time.Time, err error) SourceResultEnvelope {
	return SourceResultEnvelope{
		Source:     b.source,
		Status:     "failed",
		Error:      err.Error(),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// Healthcheck issues a minimal real request against the provider and
// reports whether it responded within timeout.
func (b *base) Healthcheck(ctx context.Context, healthPath string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	_, status, err := b.http.Request(ctx, b.source, b.baseURL+healthPath, httpcore.RequestOptions{Method: "GET"})
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, b.source+" healthcheck failed", err)
	}
	if status >= 400 {
		return apperr.New(apperr.KindUpstream, fmt.Sprintf("%s healthcheck returned status %d", b.source, status))
	}
	return nil
}
