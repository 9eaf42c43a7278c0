// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
)

// Result carries the outcome of a cascade call alongside the telemetry the
// caller is expected to log: which provider answered and how many
// configured providers failed before it did (unconfigured providers are
// skipped and not counted).
type Result struct {
	Text         string
	ProviderUsed string
	FallbackDepth int
	LatencyMs    int64
}

// Cascade tries a fixed, ordered list of providers until one succeeds.
type Cascade struct {
	providers   []Provider
	perCallTimeout time.Duration
}

// NewCascade builds a Cascade over providers in the given order. The caller
// is responsible for ordering them OpenRouter, HuggingFace, GigaChat,
// YandexGPT — this type imposes no ordering of its own beyond "try them in
// the order given".
func NewCascade(perCallTimeout time.Duration, providers ...Provider) *Cascade {
	return &Cascade{providers: providers, perCallTimeout: perCallTimeout}
}

// GenerateText tries each configured provider in order, returning the first
// successful completion. Exhaustion yields a KindLLMExhausted error.
func (c *Cascade) GenerateText(ctx context.Context, prompt string, params GenerationParams) (Result, error) {
	log := logging.FromContext(ctx)
	start := time.Now()
	depth := 0

	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, c.perCallTimeout)
		text, err := p.Generate(callCtx, prompt, params)
		cancel()
		if err != nil || text == "" {
			log.Warn("llm provider attempt failed", "provider", p.Name(), "fallback_depth", depth, "error", err)
			depth++
			continue
		}
		log.Info("llm provider succeeded", "provider", p.Name(), "fallback_depth", depth, "latency_ms", time.Since(start).Milliseconds())
		return Result{Text: text, ProviderUsed: p.Name(), FallbackDepth: depth, LatencyMs: time.Since(start).Milliseconds()}, nil
	}

	return Result{}, apperr.New(apperr.KindLLMExhausted, "llm cascade exhausted: no configured provider succeeded")
}

// GenerateJSON tries each configured provider, validating the response
// against schema. A single strict repair re-prompt is attempted per
// provider before moving to the next. Exhaustion yields a KindLLMExhausted
// error; the caller (the analyzer) is responsible for falling back to a
// degraded report.
func (c *Cascade) GenerateJSON(ctx context.Context, prompt string, schema json.RawMessage, params GenerationParams) (Result, json.RawMessage, error) {
	log := logging.FromContext(ctx)
	start := time.Now()
	depth := 0

	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, c.perCallTimeout)
		text, err := p.Generate(callCtx, prompt, params)
		cancel()
		if err != nil {
			log.Warn("llm provider attempt failed", "provider", p.Name(), "fallback_depth", depth, "error", err)
			depth++
			continue
		}

		doc, verr := validateAgainstSchema(text, schema)
		if verr == nil {
			log.Info("llm provider succeeded", "provider", p.Name(), "fallback_depth", depth, "latency_ms", time.Since(start).Milliseconds())
			return Result{Text: text, ProviderUsed: p.Name(), FallbackDepth: depth, LatencyMs: time.Since(start).Milliseconds()}, doc, nil
		}

		// Single repair attempt: one strict re-prompt, no further retries.
		log.Warn("llm json response failed schema validation, attempting repair", "provider", p.Name(), "error", verr)
		repairCtx, repairCancel := context.WithTimeout(ctx, c.perCallTimeout)
		repaired, rerr := p.Generate(repairCtx, repairPrompt(prompt, schema, verr), params)
		repairCancel()
		if rerr == nil {
			if doc, verr2 := validateAgainstSchema(repaired, schema); verr2 == nil {
				log.Info("llm provider succeeded after repair", "provider", p.Name(), "fallback_depth", depth, "latency_ms", time.Since(start).Milliseconds())
				return Result{Text: repaired, ProviderUsed: p.Name(), FallbackDepth: depth, LatencyMs: time.Since(start).Milliseconds()}, doc, nil
			}
		}

		depth++
	}

	return Result{}, nil, apperr.New(apperr.KindLLMExhausted, "llm cascade exhausted: no provider produced schema-valid JSON")
}
