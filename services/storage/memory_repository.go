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
	"sync"
	"time"
)

// memoryRepository is the in-process fallback: mutex-guarded maps, same
// Repository contract, best-effort durability (state is lost on restart).
// Activated by FailoverRepository when the primary is unreachable.
type memoryRepository struct {
	mu      sync.RWMutex
	cache   map[string]CacheEntry
	reports map[string]StoredReport
	threads map[string]ThreadRecord

	hits, misses int64
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{
		cache:   make(map[string]CacheEntry),
		reports: make(map[string]StoredReport),
		threads: make(map[string]ThreadRecord),
	}
}

func (m *memoryRepository) Close() error { return nil }

func (m *memoryRepository) SetWithTTL(ctx context.Context, key string, value json.RawMessage, source string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiresAt := time.Time{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.cache[key] = CacheEntry{Key: key, Value: value, Source: source, CreatedAt: time.Now(), ExpiresAt: expiresAt}
	return nil
}

func (m *memoryRepository) GetCache(ctx context.Context, key string) (*CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[key]
	if !ok {
		m.misses++
		return nil, nil
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		delete(m.cache, key)
		m.misses++
		return nil, nil
	}
	m.hits++
	return &e, nil
}

func (m *memoryRepository) DeleteCache(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *memoryRepository) CreateReport(ctx context.Context, r StoredReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ReportID] = r
	return nil
}

func (m *memoryRepository) GetReport(ctx context.Context, reportID string) (*StoredReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[reportID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memoryRepository) DeleteReport(ctx context.Context, reportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, reportID)
	return nil
}

func (m *memoryRepository) ListReports(ctx context.Context, f ReportFilter) ([]StoredReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredReport
	for _, r := range m.reports {
		if matchesReportFilter(r, f) {
			out = append(out, r)
		}
	}
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *memoryRepository) GetReportsByINN(ctx context.Context, inn string) ([]StoredReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredReport
	for _, r := range m.reports {
		if r.INN == inn {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepository) SaveThread(ctx context.Context, t ThreadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[t.ThreadID] = t
	return nil
}

func (m *memoryRepository) GetThread(ctx context.Context, threadID string) (*ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[threadID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memoryRepository) ListThreads(ctx context.Context, limit, offset int) ([]ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ThreadRecord
	for _, t := range m.threads {
		out = append(out, t)
	}
	return paginateThreads(out, limit, offset), nil
}

func (m *memoryRepository) ListThreadsByINN(ctx context.Context, inn string) ([]ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ThreadRecord
	for _, t := range m.threads {
		if t.INN == inn {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryRepository) CleanupExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	evicted := 0
	for id, r := range m.reports {
		if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
			delete(m.reports, id)
			evicted++
		}
	}
	for key, e := range m.cache {
		if !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt) {
			delete(m.cache, key)
			evicted++
		}
	}
	return evicted, nil
}

func (m *memoryRepository) GetStats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{Hits: m.hits, Misses: m.misses, Backend: "memory",
		CacheCount: int64(len(m.cache)), ReportCount: int64(len(m.reports)), ThreadCount: int64(len(m.threads))}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s, nil
}

func (m *memoryRepository) Exists(ctx context.Context, space, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch space {
	case "cache":
		_, ok := m.cache[key]
		return ok, nil
	case "reports":
		_, ok := m.reports[key]
		return ok, nil
	case "threads":
		_, ok := m.threads[key]
		return ok, nil
	default:
		return false, nil
	}
}
