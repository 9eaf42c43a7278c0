// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm implements the ordered LLM provider cascade: generate_text and
// generate_json try OpenRouter, HuggingFace, GigaChat, and YandexGPT in that
// fixed order, skipping any provider that isn't configured, until one
// succeeds or the cascade is exhausted.
package llm

import "context"

// GenerationParams are the sampling knobs forwarded to whichever provider
// is attempted. Providers translate whichever subset they support; a nil
// field means "use the provider's default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Provider is the minimal surface every cascade member implements, whether
// it's backed by an OpenAI-compatible SDK client or a raw HTTP call.
type Provider interface {
	// Name identifies the provider in telemetry and fallback-depth tracking.
	Name() string
	// Configured reports whether this provider has the credentials/base URL
	// it needs; unconfigured providers are skipped by the cascade.
	Configured() bool
	// Generate produces freeform text for prompt.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
