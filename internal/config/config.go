// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the risk engine's configuration from environment
// variables. Reading from secret managers or config services is explicitly
// out of scope — env vars are the boundary the rest of the engine sees.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the fully materialized configuration for both cmd/server and
// cmd/worker. Every field has a default matching spec §6.6's table.
type Config struct {
	// HTTP API
	Port      int
	AdminToken string

	// Workflow
	MaxConcurrentSearches int
	MaxFeedbackRetries    int
	WorkflowTimeout       time.Duration

	// Circuit breaker
	CircuitBreakerFailureThreshold int
	CircuitBreakerResetTimeout     time.Duration

	// Per-service timeouts
	TimeoutRegistry    time.Duration
	TimeoutCourt       time.Duration
	TimeoutAnalytics   time.Duration
	TimeoutSearchBasic time.Duration
	TimeoutSearchDeep  time.Duration
	TimeoutLLM         time.Duration

	// Per-service cache TTLs
	TTLRegistry  time.Duration
	TTLCourt     time.Duration
	TTLAnalytics time.Duration
	TTLSearch    time.Duration
	TTLReports   time.Duration
	TTLGeneric   time.Duration

	// Risk scoring
	RiskThresholdLow      int
	RiskThresholdMedium   int
	RiskThresholdHigh     int

	// Storage
	StorageDir      string
	EvictionPeriod  time.Duration

	// Queue
	QueueBrokers    []string
	QueueMaxConsumers int
	QueueGracefulTimeout time.Duration

	// Provider base URLs / credentials (empty disables the provider)
	RegistryBaseURL  string
	CourtBaseURL     string
	AnalyticsBaseURL string
	SearchBasicURL   string
	SearchDeepURL    string

	OpenRouterAPIKey   string
	OpenRouterBaseURL  string
	OpenRouterModel    string
	HuggingFaceAPIKey  string
	HuggingFaceBaseURL string
	GigaChatAPIKey     string
	GigaChatBaseURL    string
	YandexGPTAPIKey    string
	YandexGPTBaseURL   string

	LogJSON bool
}

// Load reads Config from the environment, applying spec-defined defaults
// for every key that is unset or malformed.
func Load() Config {
	return Config{
		Port:       getInt("API_PORT", 8080),
		AdminToken: getString("ADMIN_TOKEN", ""),

		MaxConcurrentSearches: getInt("MAX_CONCURRENT_SEARCHES", 5),
		MaxFeedbackRetries:    getInt("MAX_FEEDBACK_RETRIES", 3),
		WorkflowTimeout:       getSeconds("WORKFLOW_TIMEOUT_SECONDS", 300),

		CircuitBreakerFailureThreshold: getInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
		CircuitBreakerResetTimeout:     getSeconds("CIRCUIT_BREAKER_TIMEOUT_SECONDS", 60),

		TimeoutRegistry:    getSeconds("TIMEOUT_REGISTRY_SECONDS", 15),
		TimeoutCourt:       getSeconds("TIMEOUT_COURT_SECONDS", 20),
		TimeoutAnalytics:   getSeconds("TIMEOUT_ANALYTICS_SECONDS", 30),
		TimeoutSearchBasic: getSeconds("TIMEOUT_SEARCH_BASIC_SECONDS", 45),
		TimeoutSearchDeep:  getSeconds("TIMEOUT_SEARCH_DEEP_SECONDS", 60),
		TimeoutLLM:         getSeconds("TIMEOUT_LLM_SECONDS", 60),

		TTLRegistry:  getSeconds("CACHE_TTL_REGISTRY_SECONDS", 7200),
		TTLCourt:     getSeconds("CACHE_TTL_COURT_SECONDS", 9600),
		TTLAnalytics: getSeconds("CACHE_TTL_ANALYTICS_SECONDS", 3600),
		TTLSearch:    getSeconds("CACHE_TTL_SEARCH_SECONDS", 300),
		TTLReports:   getSeconds("CACHE_TTL_REPORTS_SECONDS", 2592000),
		TTLGeneric:   getSeconds("CACHE_TTL_GENERIC_SECONDS", 3600),

		RiskThresholdLow:    getInt("RISK_THRESHOLD_LOW", 25),
		RiskThresholdMedium: getInt("RISK_THRESHOLD_MEDIUM", 50),
		RiskThresholdHigh:   getInt("RISK_THRESHOLD_HIGH", 75),

		StorageDir:     getString("STORAGE_DIR", "./data/badger"),
		EvictionPeriod: getSeconds("EVICTION_PERIOD_SECONDS", 3600),

		QueueBrokers:         getStringSlice("QUEUE_BROKERS", []string{"localhost:9092"}),
		QueueMaxConsumers:    getInt("QUEUE_MAX_CONSUMERS", 10),
		QueueGracefulTimeout: getSeconds("QUEUE_GRACEFUL_TIMEOUT_SECONDS", 30),

		RegistryBaseURL:  getString("REGISTRY_BASE_URL", ""),
		CourtBaseURL:     getString("COURT_BASE_URL", ""),
		AnalyticsBaseURL: getString("ANALYTICS_BASE_URL", ""),
		SearchBasicURL:   getString("SEARCH_BASIC_BASE_URL", ""),
		SearchDeepURL:    getString("SEARCH_DEEP_BASE_URL", ""),

		OpenRouterAPIKey:   getString("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:  getString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:    getString("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		HuggingFaceAPIKey:  getString("HUGGINGFACE_API_KEY", ""),
		HuggingFaceBaseURL: getString("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co"),
		GigaChatAPIKey:     getString("GIGACHAT_API_KEY", ""),
		GigaChatBaseURL:    getString("GIGACHAT_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"),
		YandexGPTAPIKey:    getString("YANDEXGPT_API_KEY", ""),
		YandexGPTBaseURL:   getString("YANDEXGPT_BASE_URL", "https://llm.api.cloud.yandex.net"),

		LogJSON: getBool("LOG_JSON", true),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(getInt(key, defSeconds)) * time.Second
}

func getStringSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
