// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"time"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
)

// Scheduler runs CleanupExpired on a fixed interval (default 1 hour). The
// sweep is idempotent: running it twice in a row with nothing newly expired
// just evicts zero rows the second time.
type Scheduler struct {
	repo     Repository
	interval time.Duration
	log      *logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScheduler builds a Scheduler. It does not start until Start is called.
func NewScheduler(repo Repository, interval time.Duration, log *logging.Logger) *Scheduler {
	return &Scheduler{repo: repo, interval: interval, log: log, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// Start begins the periodic eviction sweep in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	n, err := s.repo.CleanupExpired(ctx)
	if err != nil {
		s.log.Error("eviction sweep failed", "error", err)
		return
	}
	s.log.Info("eviction sweep completed", "evicted", n)
}
