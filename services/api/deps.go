// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api wires the counterparty risk engine's REST, SSE, and async
// task surfaces onto gin, per the route table in router.go. Handlers hold
// no state of their own; everything they need
// comes from a *Dependencies built once at startup by cmd/server and
// cmd/worker.
package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanKorch1289/client-analyze-agent/internal/config"
	"github.com/IvanKorch1289/client-analyze-agent/services/agents"
	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore"
	"github.com/IvanKorch1289/client-analyze-agent/services/llm"
	"github.com/IvanKorch1289/client-analyze-agent/services/providers"
	"github.com/IvanKorch1289/client-analyze-agent/services/queue"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

// Dependencies bundles everything the API layer needs to run a session:
// the singleton stage implementations (stateless beyond their injected
// clients, so one instance serves every session), storage, the queue
// publisher for the async surface, and the registry of sessions currently
// executing a Machine.Run.
type Dependencies struct {
	Config config.Config
	Repo   storage.Repository

	Planner   workflow.Planner
	Collector workflow.Collector
	Analyzer  workflow.Analyzer
	Writer    workflow.Writer

	// Health-checkable source clients, kept alongside Collector (which
	// holds its own references) so GET /utility/health?deep=true can probe
	// each one without the collector needing to expose an aggregate check.
	RegistryClient  *providers.RegistryClient
	CourtClient     *providers.CourtClient
	AnalyticsClient *providers.AnalyticsClient

	HTTP      *httpcore.Client
	Metrics   *httpcore.Metrics
	Registry  *prometheus.Registry
	Publisher *queue.Publisher

	Sessions *SessionRegistry

	// ServerCtx is canceled on process shutdown; the SSE adapter uses it to
	// emit a best-effort error frame to connected clients. cmd/server
	// overwrites the zero-value Background() with its own shutdown context.
	ServerCtx context.Context
}

// NewDependencies assembles the full provider/LLM/agent stack from cfg, the
// way cmd/server and cmd/worker both need it. reg is the Prometheus
// registry GET /utility/metrics renders.
func NewDependencies(cfg config.Config, repo storage.Repository, reg *prometheus.Registry) *Dependencies {
	metrics := httpcore.NewMetrics(reg)
	httpClient := httpcore.New(metrics, cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerResetTimeout)

	registryClient := providersRegistryClient(httpClient, repo, cfg)
	courtClient := providersCourtClient(httpClient, repo, cfg)
	analyticsClient := providersAnalyticsClient(httpClient, repo, cfg)
	searchClient := providersSearchClient(httpClient, repo, cfg)
	searchDeepClient := providersSearchDeepClient(httpClient, repo, cfg)

	cascade := buildCascade(cfg)

	collector := agents.NewCollector(registryClient, courtClient, analyticsClient, searchClient, searchDeepClient, cfg.MaxConcurrentSearches)
	analyzer := agents.NewAnalyzer(cascade)
	writer := agents.NewWriter(repo, nil)

	var publisher *queue.Publisher
	if len(cfg.QueueBrokers) > 0 {
		publisher = queue.NewPublisher(queue.ProducerConfig{Brokers: cfg.QueueBrokers})
	}

	return &Dependencies{
		Config:          cfg,
		Repo:            repo,
		Planner:         agents.NewPlanner(),
		Collector:       collector,
		Analyzer:        analyzer,
		Writer:          writer,
		RegistryClient:  registryClient,
		CourtClient:     courtClient,
		AnalyticsClient: analyticsClient,
		HTTP:      httpClient,
		Metrics:   metrics,
		Registry:  reg,
		Publisher: publisher,
		Sessions:  NewSessionRegistry(),
		ServerCtx: context.Background(),
	}
}

func buildCascade(cfg config.Config) *llm.Cascade {
	var providersList []llm.Provider
	if cfg.OpenRouterAPIKey != "" {
		providersList = append(providersList, llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel))
	}
	if cfg.HuggingFaceAPIKey != "" {
		providersList = append(providersList, llm.NewHuggingFaceClient(cfg.HuggingFaceAPIKey, cfg.HuggingFaceBaseURL, ""))
	}
	if cfg.GigaChatAPIKey != "" {
		providersList = append(providersList, llm.NewGigaChatClient(cfg.GigaChatAPIKey, cfg.GigaChatBaseURL, ""))
	}
	if cfg.YandexGPTAPIKey != "" {
		providersList = append(providersList, llm.NewYandexGPTClient(cfg.YandexGPTAPIKey, cfg.YandexGPTBaseURL, ""))
	}
	return llm.NewCascade(cfg.TimeoutLLM, providersList...)
}
