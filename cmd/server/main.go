// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command server starts the counterparty risk analysis engine's HTTP API:
// synchronous and SSE analysis, report/thread browsing, and the utility
// surface (health, metrics, circuit breakers).
//
// # Environment Variables
//
// See internal/config for the full list; every key has a spec-defined
// default, so a bare `./server` run is enough against an embedded Badger
// store with no queue brokers and no LLM/provider keys configured.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanKorch1289/client-analyze-agent/internal/config"
	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/api"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Service: "risk-engine-api", JSON: cfg.LogJSON})

	repo, err := openRepository(cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	scheduler := storage.NewScheduler(repo, cfg.EvictionPeriod, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.NewDependencies(cfg, repo, prometheus.NewRegistry())
	deps.ServerCtx = ctx

	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := api.NewRouter(deps)
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("starting API server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	if deps.Publisher != nil {
		if err := deps.Publisher.Close(); err != nil {
			logger.Error("failed to close queue publisher", "error", err)
		}
	}
}

// openRepository opens the embedded BadgerDB store, falling back to the
// in-process memory repository if Badger can't be opened — the same
// degrade-don't-die posture FailoverRepository gives requests at runtime.
func openRepository(cfg config.Config, logger *logging.Logger) (storage.Repository, error) {
	dbCfg := storage.DefaultDBConfig(cfg.StorageDir)
	dbCfg.Logger = logger.Slog()

	primary, err := storage.NewBadgerRepository(dbCfg)
	if err != nil {
		logger.Warn("failed to open badger store, falling back to memory", "error", err)
		return storage.NewMemoryRepository(), nil
	}
	return storage.NewFailoverRepository(primary, storage.NewMemoryRepository(), logger), nil
}

