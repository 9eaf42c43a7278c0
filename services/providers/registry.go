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
	"github.com/IvanKorch1289/client-analyze-agent/internal/validation"
	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

// CompanyRegistryInfo is the registry provider's typed payload: status and
// the regulatory flags the scorer reads off registry data.
type CompanyRegistryInfo struct {
	Status              string   `json:"status"` // active | liquidated | bankrupt
	Sanctioned          bool     `json:"sanctioned"`
	TerroristListed     bool     `json:"terrorist_listed"`
	TaxDebtMarker        bool     `json:"tax_debt_marker"`
	RegisteredName      string   `json:"registered_name"`
	RegistrationDate    string   `json:"registration_date,omitempty"`
	Flags               []string `json:"flags,omitempty"`
}

// RegistryClient looks up a company's registry record by INN.
type RegistryClient struct{ base }

// NewRegistryClient builds a RegistryClient against baseURL, or a disabled
// stub if baseURL is empty (the call then always returns a failed envelope,
// letting the collector treat it as a critical-source failure per §4.7).
func NewRegistryClient(httpClient *httpcore.Client, cache storage.Repository, baseURL string, timeout, ttl time.Duration) *RegistryClient {
	return &RegistryClient{base: base{source: "registry", http: httpClient, cache: cache, baseURL: baseURL, timeout: timeout, ttl: ttl}}
}

// Lookup fetches registry info for inn, consulting the cache first.
func (c *RegistryClient) Lookup(ctx context.Context, inn string) SourceResultEnvelope {
	start := time.Now()
	if err := validation.ValidateINN(inn); err != nil {
		return c.fail(start, apperr.Wrap(apperr.KindValidation, "invalid inn", err))
	}
	if env, ok := c.cached(ctx, inn); ok {
		return *env
	}
	if c.baseURL == "" {
		return c.fail(start, apperr.New(apperr.KindUpstream, "registry provider not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	body, status, err := c.http.Request(ctx, c.source, fmt.Sprintf("%s/v1/companies/%s", c.baseURL, inn), httpcore.RequestOptions{Method: "GET"})
	if err != nil {
		return c.fail(start, err)
	}
	if status >= 400 {
		return c.fail(start, apperr.New(apperr.KindUpstream, fmt.Sprintf("registry returned status %d", status)))
	}

	var info CompanyRegistryInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return c.fail(start, apperr.Wrap(apperr.KindUpstream, "malformed registry response", err))
	}
	payload, _ := json.Marshal(info)
	env := SourceResultEnvelope{Source: c.source, Status: "success", Payload: payload, DurationMs: time.Since(start).Milliseconds()}
	c.storeResult(ctx, env, inn)
	return env
}
