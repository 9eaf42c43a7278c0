// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"encoding/json"
	"time"
)

// CacheEntry is one row of the cache space.
type CacheEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// StoredReport is one row of the reports space.
type StoredReport struct {
	ReportID   string          `json:"report_id"`
	INN        string          `json:"inn"`
	ClientName string          `json:"client_name"`
	ReportData json.RawMessage `json:"report_data"`
	RiskLevel  string          `json:"risk_level"`
	RiskScore  int             `json:"risk_score"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// ThreadRecord is one row of the threads space. It has no TTL.
type ThreadRecord struct {
	ThreadID   string          `json:"thread_id"`
	ThreadData json.RawMessage `json:"thread_data"`
	ClientName string          `json:"client_name"`
	INN        string          `json:"inn"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ReportFilter narrows GET /reports per spec §6.1's query parameters.
type ReportFilter struct {
	INN          string
	RiskLevel    string
	ClientName   string
	DateFrom     *time.Time
	DateTo       *time.Time
	MinRiskScore *int
	MaxRiskScore *int
	Limit        int
	Offset       int
}

// Stats is the per-space snapshot returned by GET /utility/stats/storage.
type Stats struct {
	Hits            int64 `json:"hits"`
	Misses          int64 `json:"misses"`
	HitRate         float64 `json:"hit_rate"`
	CompressedSaves int64 `json:"compressed_saves"`
	BytesSaved      int64 `json:"bytes_saved"`
	CacheCount      int64 `json:"cache_count"`
	ReportCount     int64 `json:"report_count"`
	ThreadCount     int64 `json:"thread_count"`
	Backend         string `json:"backend"`
}

// Repository is the full persistence contract the workflow, agents, and API
// surface depend on. Two concrete implementations exist: badgerRepository
// (primary) and memoryRepository (fallback); FailoverRepository composes
// them transparently.
type Repository interface {
	// Cache space
	SetWithTTL(ctx context.Context, key string, value json.RawMessage, source string, ttl time.Duration) error
	GetCache(ctx context.Context, key string) (*CacheEntry, error)
	DeleteCache(ctx context.Context, key string) error

	// Reports space
	CreateReport(ctx context.Context, r StoredReport) error
	GetReport(ctx context.Context, reportID string) (*StoredReport, error)
	DeleteReport(ctx context.Context, reportID string) error
	ListReports(ctx context.Context, f ReportFilter) ([]StoredReport, error)
	GetReportsByINN(ctx context.Context, inn string) ([]StoredReport, error)

	// Threads space
	SaveThread(ctx context.Context, t ThreadRecord) error
	GetThread(ctx context.Context, threadID string) (*ThreadRecord, error)
	ListThreads(ctx context.Context, limit, offset int) ([]ThreadRecord, error)
	ListThreadsByINN(ctx context.Context, inn string) ([]ThreadRecord, error)

	// Maintenance
	CleanupExpired(ctx context.Context) (evicted int, err error)
	GetStats(ctx context.Context) (Stats, error)
	Exists(ctx context.Context, space, key string) (bool, error)
	Close() error
}
