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

var yandexTracer = otel.Tracer("riskengine.llm.yandexgpt")

// YandexGPTClient is the fourth and last cascade member, the fallback of
// last resort.
type YandexGPTClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexCompletionOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

type yandexRequest struct {
	ModelURI          string                   `json:"modelUri"`
	CompletionOptions yandexCompletionOptions  `json:"completionOptions,omitempty"`
	Messages          []yandexMessage          `json:"messages"`
}

type yandexResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// NewYandexGPTClient builds a YandexGPTClient. model is expected to be a
// full modelUri (e.g. "gpt://<folder-id>/yandexgpt-lite").
func NewYandexGPTClient(apiKey, baseURL, model string) *YandexGPTClient {
	if baseURL == "" {
		baseURL = "https://llm.api.cloud.yandex.net/foundationModels/v1"
	}
	return &YandexGPTClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
	}
}

func (y *YandexGPTClient) Name() string     { return "yandexgpt" }
func (y *YandexGPTClient) Configured() bool { return y.apiKey != "" && y.model != "" }

func (y *YandexGPTClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := yandexTracer.Start(ctx, "YandexGPTClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", y.model))

	opts := yandexCompletionOptions{}
	if params.Temperature != nil {
		opts.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		opts.MaxTokens = *params.MaxTokens
	} else {
		opts.MaxTokens = 2000
	}

	payload := yandexRequest{
		ModelURI:          y.model,
		CompletionOptions: opts,
		Messages:          []yandexMessage{{Role: "user", Text: prompt}},
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to marshal yandexgpt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", y.baseURL+"/completion", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to build yandexgpt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+y.apiKey)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("yandexgpt request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read yandexgpt response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("yandexgpt failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed yandexResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse yandexgpt response: %w", err)
	}
	if len(parsed.Result.Alternatives) == 0 || parsed.Result.Alternatives[0].Message.Text == "" {
		return "", fmt.Errorf("yandexgpt returned no content")
	}
	return parsed.Result.Alternatives[0].Message.Text, nil
}
