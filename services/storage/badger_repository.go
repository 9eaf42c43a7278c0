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
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for the three spaces and their secondary indexes. The inn
// indexes serve GetReportsByINN and ListThreadsByINN, and the expires index
// serves CleanupExpired. The created and risklevel indexes are written and
// deleted alongside their records but never read: ListReports and
// ListThreads scan their whole space, and ListReports applies every filter
// in process.
const (
	prefixCache   = "cache:"
	prefixReport  = "reports:"
	prefixThread  = "threads:"
	prefixIdxReportINN      = "idx:reports:inn:"
	prefixIdxReportExpires  = "idx:reports:expires:"
	prefixIdxReportCreated  = "idx:reports:created:"
	prefixIdxReportRisk     = "idx:reports:risklevel:"
	prefixIdxThreadINN      = "idx:threads:inn:"
	prefixIdxThreadCreated  = "idx:threads:created:"
)

// badgerRepository is the primary Repository implementation: an embedded
// BadgerDB with native per-key TTL (used for the cache space) and hand-
// maintained secondary indexes (used for reports/threads, which have no
// TTL-based expiry that Badger can enforce on its own terms for reports'
// 30-day window combined with index cleanup).
type badgerRepository struct {
	db *managedDB

	hits, misses, compressedSaves, bytesSaved atomic.Int64
}

// NewBadgerRepository opens (or creates) the embedded database at cfg.Path.
func NewBadgerRepository(cfg DBConfig) (*badgerRepository, error) {
	db, err := openManagedDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}
	return &badgerRepository{db: db}, nil
}

func unixKey(t time.Time) string { return fmt.Sprintf("%020d", t.UnixNano()) }

func (r *badgerRepository) Close() error { return r.db.Close() }

// --- cache space ---

type cacheEnvelope struct {
	Value     json.RawMessage `json:"value"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

func (r *badgerRepository) SetWithTTL(ctx context.Context, key string, value json.RawMessage, source string, ttl time.Duration) error {
	env := cacheEnvelope{Value: value, Source: source, CreatedAt: time.Now()}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload, compressed, saved := maybeCompress(raw)
	if compressed {
		r.compressedSaves.Add(1)
		r.bytesSaved.Add(int64(saved))
	}
	return r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(prefixCache+key), payload)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (r *badgerRepository) GetCache(ctx context.Context, key string) (*CacheEntry, error) {
	var out *CacheEntry
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCache + key))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		raw, err = decompress(raw)
		if err != nil {
			return err
		}
		var env cacheEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		expiresAt := time.Unix(0, 0)
		if exp := item.ExpiresAt(); exp > 0 {
			expiresAt = time.Unix(int64(exp), 0)
		}
		out = &CacheEntry{Key: key, Value: env.Value, Source: env.Source, CreatedAt: env.CreatedAt, ExpiresAt: expiresAt}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		r.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.hits.Add(1)
	return out, nil
}

func (r *badgerRepository) DeleteCache(ctx context.Context, key string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixCache + key))
	})
}

// --- reports space ---

func (r *badgerRepository) CreateReport(ctx context.Context, rep StoredReport) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	payload, compressed, saved := maybeCompress(raw)
	if compressed {
		r.compressedSaves.Add(1)
		r.bytesSaved.Add(int64(saved))
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixReport+rep.ReportID), payload); err != nil {
			return err
		}
		if rep.INN != "" {
			if err := txn.Set([]byte(prefixIdxReportINN+rep.INN+":"+rep.ReportID), []byte(rep.ReportID)); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(prefixIdxReportExpires+unixKey(rep.ExpiresAt)+":"+rep.ReportID), []byte(rep.ReportID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixIdxReportCreated+unixKey(rep.CreatedAt)+":"+rep.ReportID), []byte(rep.ReportID)); err != nil {
			return err
		}
		return txn.Set([]byte(prefixIdxReportRisk+rep.RiskLevel+":"+rep.ReportID), []byte(rep.ReportID))
	})
}

func (r *badgerRepository) getReportLocked(txn *badger.Txn, reportID string) (*StoredReport, error) {
	item, err := txn.Get([]byte(prefixReport + reportID))
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	raw, err = decompress(raw)
	if err != nil {
		return nil, err
	}
	var rep StoredReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *badgerRepository) GetReport(ctx context.Context, reportID string) (*StoredReport, error) {
	var out *StoredReport
	err := r.db.View(func(txn *badger.Txn) error {
		rep, err := r.getReportLocked(txn, reportID)
		if err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err == badger.ErrKeyNotFound {
		r.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.hits.Add(1)
	return out, nil
}

func (r *badgerRepository) DeleteReport(ctx context.Context, reportID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		rep, err := r.getReportLocked(txn, reportID)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return deleteReportAndIndexes(txn, *rep)
	})
}

func deleteReportAndIndexes(txn *badger.Txn, rep StoredReport) error {
	keys := []string{
		prefixReport + rep.ReportID,
		prefixIdxReportExpires + unixKey(rep.ExpiresAt) + ":" + rep.ReportID,
		prefixIdxReportCreated + unixKey(rep.CreatedAt) + ":" + rep.ReportID,
		prefixIdxReportRisk + rep.RiskLevel + ":" + rep.ReportID,
	}
	if rep.INN != "" {
		keys = append(keys, prefixIdxReportINN+rep.INN+":"+rep.ReportID)
	}
	for _, k := range keys {
		if err := txn.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return nil
}

func (r *badgerRepository) ListReports(ctx context.Context, f ReportFilter) ([]StoredReport, error) {
	var out []StoredReport
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixReport)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			raw, err = decompress(raw)
			if err != nil {
				return err
			}
			var rep StoredReport
			if err := json.Unmarshal(raw, &rep); err != nil {
				return err
			}
			if matchesReportFilter(rep, f) {
				out = append(out, rep)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paginate(out, f.Limit, f.Offset), nil
}

func matchesReportFilter(rep StoredReport, f ReportFilter) bool {
	if f.INN != "" && rep.INN != f.INN {
		return false
	}
	if f.RiskLevel != "" && rep.RiskLevel != f.RiskLevel {
		return false
	}
	if f.ClientName != "" && !strings.Contains(strings.ToLower(rep.ClientName), strings.ToLower(f.ClientName)) {
		return false
	}
	if f.DateFrom != nil && rep.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && rep.CreatedAt.After(*f.DateTo) {
		return false
	}
	if f.MinRiskScore != nil && rep.RiskScore < *f.MinRiskScore {
		return false
	}
	if f.MaxRiskScore != nil && rep.RiskScore > *f.MaxRiskScore {
		return false
	}
	return true
}

func paginate(reports []StoredReport, limit, offset int) []StoredReport {
	if offset >= len(reports) {
		return nil
	}
	end := len(reports)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return reports[offset:end]
}

func (r *badgerRepository) GetReportsByINN(ctx context.Context, inn string) ([]StoredReport, error) {
	var reportIDs []string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixIdxReportINN + inn + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			reportIDs = append(reportIDs, string(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var out []StoredReport
	for _, id := range reportIDs {
		rep, err := r.GetReport(ctx, id)
		if err != nil {
			return nil, err
		}
		if rep != nil {
			out = append(out, *rep)
		}
	}
	return out, nil
}

// --- threads space ---

func (r *badgerRepository) SaveThread(ctx context.Context, t ThreadRecord) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	payload, compressed, saved := maybeCompress(raw)
	if compressed {
		r.compressedSaves.Add(1)
		r.bytesSaved.Add(int64(saved))
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixThread+t.ThreadID), payload); err != nil {
			return err
		}
		if t.INN != "" {
			if err := txn.Set([]byte(prefixIdxThreadINN+t.INN+":"+t.ThreadID), []byte(t.ThreadID)); err != nil {
				return err
			}
		}
		return txn.Set([]byte(prefixIdxThreadCreated+unixKey(t.CreatedAt)+":"+t.ThreadID), []byte(t.ThreadID))
	})
}

func (r *badgerRepository) GetThread(ctx context.Context, threadID string) (*ThreadRecord, error) {
	var out *ThreadRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixThread + threadID))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		raw, err = decompress(raw)
		if err != nil {
			return err
		}
		var t ThreadRecord
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		out = &t
		return nil
	})
	if err == badger.ErrKeyNotFound {
		r.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.hits.Add(1)
	return out, nil
}

func (r *badgerRepository) ListThreads(ctx context.Context, limit, offset int) ([]ThreadRecord, error) {
	var out []ThreadRecord
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixThread)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			raw, err = decompress(raw)
			if err != nil {
				return err
			}
			var t ThreadRecord
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paginateThreads(out, limit, offset), nil
}

func paginateThreads(threads []ThreadRecord, limit, offset int) []ThreadRecord {
	if offset >= len(threads) {
		return nil
	}
	end := len(threads)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return threads[offset:end]
}

func (r *badgerRepository) ListThreadsByINN(ctx context.Context, inn string) ([]ThreadRecord, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixIdxThreadINN + inn + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var out []ThreadRecord
	for _, id := range ids {
		t, err := r.GetThread(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

// --- maintenance ---

func (r *badgerRepository) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now()
	evicted := 0
	var expiredIDs []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixIdxReportExpires)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, prefixIdxReportExpires)
			parts := strings.SplitN(rest, ":", 2)
			if len(parts) != 2 {
				continue
			}
			nanos, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				continue
			}
			if time.Unix(0, nanos).Before(now) {
				expiredIDs = append(expiredIDs, parts[1])
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range expiredIDs {
		err := r.db.Update(func(txn *badger.Txn) error {
			rep, err := r.getReportLocked(txn, id)
			if err == badger.ErrKeyNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			return deleteReportAndIndexes(txn, *rep)
		})
		if err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

func (r *badgerRepository) GetStats(ctx context.Context) (Stats, error) {
	s := Stats{
		Hits: r.hits.Load(), Misses: r.misses.Load(),
		CompressedSaves: r.compressedSaves.Load(), BytesSaved: r.bytesSaved.Load(),
		Backend: "badger",
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	_ = r.db.View(func(txn *badger.Txn) error {
		s.CacheCount = countPrefix(txn, prefixCache)
		s.ReportCount = countPrefix(txn, prefixReport)
		s.ThreadCount = countPrefix(txn, prefixThread)
		return nil
	})
	return s, nil
}

func countPrefix(txn *badger.Txn, prefix string) int64 {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	var n int64
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		n++
	}
	return n
}

func (r *badgerRepository) Exists(ctx context.Context, space, key string) (bool, error) {
	prefix := spacePrefix(space)
	if prefix == "" {
		return false, fmt.Errorf("storage: unknown space %q", space)
	}
	exists := false
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(prefix + key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

func spacePrefix(space string) string {
	switch space {
	case "cache":
		return prefixCache
	case "reports":
		return prefixReport
	case "threads":
		return prefixThread
	default:
		return ""
	}
}
