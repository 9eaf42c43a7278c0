// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage is the durable state store: three named spaces (cache,
// reports, threads) behind a Repository interface, backed primarily by an
// embedded BadgerDB instance with a mutex-guarded in-memory fallback.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DBConfig configures the embedded BadgerDB instance.
type DBConfig struct {
	Path           string
	InMemory       bool
	SyncWrites     bool
	Logger         *slog.Logger
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultDBConfig returns production defaults: synchronous writes, a
// 5-minute GC interval, 50% discard ratio.
func DefaultDBConfig(path string) DBConfig {
	return DBConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

type badgerLogAdapter struct{ l *slog.Logger }

func (a *badgerLogAdapter) Errorf(f string, args ...interface{})   { a.l.Error(fmt.Sprintf(f, args...)) }
func (a *badgerLogAdapter) Warningf(f string, args ...interface{}) { a.l.Warn(fmt.Sprintf(f, args...)) }
func (a *badgerLogAdapter) Infof(f string, args ...interface{})    { a.l.Info(fmt.Sprintf(f, args...)) }
func (a *badgerLogAdapter) Debugf(f string, args ...interface{})   { a.l.Debug(fmt.Sprintf(f, args...)) }

// openBadger opens (and, if needed, creates) a BadgerDB at cfg.Path, or an
// in-memory instance when cfg.InMemory is set.
func openBadger(cfg DBConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("storage: path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("storage: create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogAdapter{l: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	return badger.Open(opts)
}

// gcRunner periodically triggers BadgerDB value-log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	return &gcRunner{db: db, interval: interval, ratio: ratio, logger: logger, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

func (r *gcRunner) start() { go r.run() }

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.db.RunValueLogGC(r.ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) && r.logger != nil {
				r.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

// managedDB wraps *badger.DB with GC lifecycle management.
type managedDB struct {
	*badger.DB
	gc *gcRunner
}

func openManagedDB(cfg DBConfig) (*managedDB, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	m := &managedDB{DB: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		m.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		m.gc.start()
	}
	return m, nil
}

func (m *managedDB) Close() error {
	if m.gc != nil {
		m.gc.stop()
	}
	return m.DB.Close()
}
