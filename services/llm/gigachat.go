// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var gigachatTracer = otel.Tracer("riskengine.llm.gigachat")

// GigaChatClient is the third cascade member, modeled on Sber's
// OpenAI-shaped chat/completions endpoint but called with a raw HTTP POST
// since its auth scheme (pre-exchanged bearer token) doesn't fit the
// go-openai SDK's client config cleanly.
type GigaChatClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

type gigachatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gigachatRequest struct {
	Model       string            `json:"model"`
	Messages    []gigachatMessage `json:"messages"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type gigachatResponse struct {
	Choices []struct {
		Message gigachatMessage `json:"message"`
	} `json:"choices"`
}

// NewGigaChatClient builds a GigaChatClient.
func NewGigaChatClient(apiKey, baseURL, model string) *GigaChatClient {
	if baseURL == "" {
		baseURL = "https://gigachat.devices.sberbank.ru/api/v1"
	}
	if model == "" {
		model = "GigaChat"
	}
	return &GigaChatClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
	}
}

func (g *GigaChatClient) Name() string     { return "gigachat" }
func (g *GigaChatClient) Configured() bool { return g.apiKey != "" }

func (g *GigaChatClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := gigachatTracer.Start(ctx, "GigaChatClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	payload := gigachatRequest{
		Model:    g.model,
		Messages: []gigachatMessage{{Role: "user", Content: prompt}},
	}
	if params.Temperature != nil {
		payload.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		payload.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		payload.MaxTokens = *params.MaxTokens
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to marshal gigachat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to build gigachat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gigachat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gigachat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gigachat failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed gigachatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse gigachat response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("gigachat returned no content")
	}
	return parsed.Choices[0].Message.Content, nil
}
