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

var hfTracer = otel.Tracer("riskengine.llm.huggingface")

// HuggingFaceClient is the second cascade member: the Inference API's
// text-generation endpoint, called with a raw HTTP POST.
type HuggingFaceClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

type hfGenerateRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters hfParameters   `json:"parameters,omitempty"`
}

type hfParameters struct {
	Temperature float32  `json:"temperature,omitempty"`
	TopP        float32  `json:"top_p,omitempty"`
	MaxNewTokens int      `json:"max_new_tokens,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type hfGenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// NewHuggingFaceClient builds a HuggingFaceClient. baseURL defaults to the
// public Inference API root if empty.
func NewHuggingFaceClient(apiKey, baseURL, model string) *HuggingFaceClient {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models"
	}
	if model == "" {
		model = "mistralai/Mistral-7B-Instruct-v0.2"
	}
	return &HuggingFaceClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
	}
}

func (h *HuggingFaceClient) Name() string     { return "huggingface" }
func (h *HuggingFaceClient) Configured() bool { return h.apiKey != "" }

func (h *HuggingFaceClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := hfTracer.Start(ctx, "HuggingFaceClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", h.model))

	p := hfParameters{}
	if params.Temperature != nil {
		p.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		p.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		p.MaxNewTokens = *params.MaxTokens
	} else {
		p.MaxNewTokens = 1024
	}
	if len(params.Stop) > 0 {
		p.StopSequences = params.Stop
	}

	reqBody, err := json.Marshal(hfGenerateRequest{Inputs: prompt, Parameters: p})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to marshal huggingface request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", h.baseURL, h.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to build huggingface request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("huggingface request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read huggingface response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("huggingface failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var results []hfGenerateResponse
	if err := json.Unmarshal(respBody, &results); err != nil || len(results) == 0 {
		return "", fmt.Errorf("failed to parse huggingface response: %w", err)
	}
	if results[0].GeneratedText == "" {
		return "", fmt.Errorf("huggingface returned empty content")
	}
	return results[0].GeneratedText, nil
}
