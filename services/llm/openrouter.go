// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterClient is the first cascade member: an OpenAI-compatible chat
// completion client pointed at OpenRouter's gateway via a custom BaseURL.
type OpenRouterClient struct {
	client *openai.Client
	model  string
	apiKey string
}

// NewOpenRouterClient builds an OpenRouterClient. An empty apiKey yields a
// client whose Configured() returns false; the cascade skips it.
func NewOpenRouterClient(apiKey, baseURL, model string) *OpenRouterClient {
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenRouterClient{client: openai.NewClientWithConfig(cfg), model: model, apiKey: apiKey}
}

func (c *OpenRouterClient) Name() string      { return "openrouter" }
func (c *OpenRouterClient) Configured() bool  { return c.apiKey != "" }

// Generate issues a single chat completion. params.Stop and MaxTokens map
// directly; Temperature/TopP fall back to the SDK's zero-value defaults
// when nil (OpenRouter then applies its own provider default).
func (c *OpenRouterClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openrouter completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openrouter returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}
