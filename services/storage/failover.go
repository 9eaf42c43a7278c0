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
	"sync/atomic"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
)

// FailoverRepository wraps a primary Repository and a memory fallback.
// Every call goes to the primary first; on error it logs the switch and
// serves the call from the fallback. The next call that succeeds against the
// primary clears the fallback flag and logs the recovery. Data written to
// the fallback is not copied back to the primary and is lost on restart.
type FailoverRepository struct {
	primary  Repository
	fallback Repository
	onMemory atomic.Bool
	log      *logging.Logger
}

// NewFailoverRepository composes primary and fallback into one Repository.
func NewFailoverRepository(primary, fallback Repository, log *logging.Logger) *FailoverRepository {
	return &FailoverRepository{primary: primary, fallback: fallback, log: log}
}

// UsingFallback reports whether the most recent operation fell back to the
// in-memory store, surfaced by the shallow health check.
func (f *FailoverRepository) UsingFallback() bool { return f.onMemory.Load() }

func (f *FailoverRepository) markFallback(err error) {
	if err != nil && !f.onMemory.Load() {
		f.onMemory.Store(true)
		f.log.Warn("storage primary unavailable, switching to in-memory fallback", "error", err)
	} else if err == nil && f.onMemory.Load() {
		f.onMemory.Store(false)
		f.log.Info("storage primary recovered, resuming primary repository")
	}
}

func (f *FailoverRepository) SetWithTTL(ctx context.Context, key string, value json.RawMessage, source string, ttl time.Duration) error {
	if err := f.primary.SetWithTTL(ctx, key, value, source, ttl); err != nil {
		f.markFallback(err)
		return f.fallback.SetWithTTL(ctx, key, value, source, ttl)
	}
	f.markFallback(nil)
	return nil
}

func (f *FailoverRepository) GetCache(ctx context.Context, key string) (*CacheEntry, error) {
	if v, err := f.primary.GetCache(ctx, key); err == nil {
		f.markFallback(nil)
		return v, nil
	} else {
		f.markFallback(err)
		return f.fallback.GetCache(ctx, key)
	}
}

func (f *FailoverRepository) DeleteCache(ctx context.Context, key string) error {
	err := f.primary.DeleteCache(ctx, key)
	f.markFallback(err)
	if err != nil {
		return f.fallback.DeleteCache(ctx, key)
	}
	return nil
}

func (f *FailoverRepository) CreateReport(ctx context.Context, r StoredReport) error {
	if err := f.primary.CreateReport(ctx, r); err != nil {
		f.markFallback(err)
		return f.fallback.CreateReport(ctx, r)
	}
	f.markFallback(nil)
	return nil
}

func (f *FailoverRepository) GetReport(ctx context.Context, reportID string) (*StoredReport, error) {
	if v, err := f.primary.GetReport(ctx, reportID); err == nil {
		f.markFallback(nil)
		return v, nil
	} else {
		f.markFallback(err)
		return f.fallback.GetReport(ctx, reportID)
	}
}

func (f *FailoverRepository) DeleteReport(ctx context.Context, reportID string) error {
	err := f.primary.DeleteReport(ctx, reportID)
	f.markFallback(err)
	if err != nil {
		return f.fallback.DeleteReport(ctx, reportID)
	}
	return nil
}

func (f *FailoverRepository) ListReports(ctx context.Context, flt ReportFilter) ([]StoredReport, error) {
	if v, err := f.primary.ListReports(ctx, flt); err == nil {
		f.markFallback(nil)
		return v, nil
	} else {
		f.markFallback(err)
		return f.fallback.ListReports(ctx, flt)
	}
}

func (f *FailoverRepository) GetReportsByINN(ctx context.Context, inn string) ([]StoredReport, error) {
	if v, err := f.primary.GetReportsByINN(ctx, inn); err == nil {
		f.markFallback(nil)
		return v, nil
	} else {
		f.markFallback(err)
		return f.fallback.GetReportsByINN(ctx, inn)
	}
}

func (f *FailoverRepository) SaveThread(ctx context.Context, t ThreadRecord) error {
	if err := f.primary.SaveThread(ctx, t); err != nil {
		f.markFallback(err)
		return f.fallback.SaveThread(ctx, t)
	}
	f.markFallback(nil)
	return nil
}

func (f *FailoverRepository) GetThread(ctx context.Context, threadID string) (*ThreadRecord, error) {
	if v, err := f.primary.GetThread(ctx, threadID); err == nil {
		f.markFallback(nil)
		return v, nil
	} else {
		f.markFallback(err)
		return f.fallback.GetThread(ctx, threadID)
	}
}

func (f *FailoverRepository) ListThreads(ctx context.Context, limit, offset int) ([]ThreadRecord, error) {
	if v, err := f.primary.ListThreads(ctx, limit, offset); err == nil {
		f.markFallback(nil)
		return v, nil
	} else {
		f.markFallback(err)
		return f.fallback.ListThreads(ctx, limit, offset)
	}
}

func (f *FailoverRepository) ListThreadsByINN(ctx context.Context, inn string) ([]ThreadRecord, error) {
	if v, err := f.primary.ListThreadsByINN(ctx, inn); err == nil {
		f.markFallback(nil)
		return v, nil
	} else {
		f.markFallback(err)
		return f.fallback.ListThreadsByINN(ctx, inn)
	}
}

func (f *FailoverRepository) CleanupExpired(ctx context.Context) (int, error) {
	n, err := f.primary.CleanupExpired(ctx)
	f.markFallback(err)
	if err != nil {
		return f.fallback.CleanupExpired(ctx)
	}
	return n, nil
}

func (f *FailoverRepository) GetStats(ctx context.Context) (Stats, error) {
	s, err := f.primary.GetStats(ctx)
	f.markFallback(err)
	if err != nil {
		return f.fallback.GetStats(ctx)
	}
	return s, nil
}

func (f *FailoverRepository) Exists(ctx context.Context, space, key string) (bool, error) {
	ok, err := f.primary.Exists(ctx, space, key)
	f.markFallback(err)
	if err != nil {
		return f.fallback.Exists(ctx, space, key)
	}
	return ok, nil
}

func (f *FailoverRepository) Close() error {
	_ = f.fallback.Close()
	return f.primary.Close()
}

var _ Repository = (*FailoverRepository)(nil)
