// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command worker drains analysis_queue and cache_queue, running each
// analysis task to completion against the same planner/collector/analyzer/
// writer stack the API uses for synchronous and SSE requests, and mirrors
// completed or failed analysis_results into storage so GET
// /agent/task/{task_id} can serve them without a live Kafka connection.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanKorch1289/client-analyze-agent/internal/config"
	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/api"
	"github.com/IvanKorch1289/client-analyze-agent/services/queue"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
	"github.com/IvanKorch1289/client-analyze-agent/services/workflow"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Service: "risk-engine-worker", JSON: cfg.LogJSON})
	ctx := logging.WithLogger(context.Background(), logger)

	if len(cfg.QueueBrokers) == 0 {
		logger.Error("no queue brokers configured, nothing for the worker to do")
		os.Exit(1)
	}

	dbCfg := storage.DefaultDBConfig(cfg.StorageDir)
	dbCfg.Logger = logger.Slog()
	primary, err := storage.NewBadgerRepository(dbCfg)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	repo := storage.NewFailoverRepository(primary, storage.NewMemoryRepository(), logger)
	defer repo.Close()

	deps := api.NewDependencies(cfg, repo, prometheus.NewRegistry())
	if deps.Publisher == nil {
		logger.Error("failed to construct queue publisher")
		os.Exit(1)
	}

	consumerCfg := queue.ConsumerConfig{
		Brokers:         cfg.QueueBrokers,
		GroupID:         "risk-engine-worker",
		MaxConsumers:    cfg.QueueMaxConsumers,
		GracefulTimeout: cfg.QueueGracefulTimeout,
	}

	analysisConsumer := queue.NewConsumer(consumerCfg, deps.Publisher, repo, taskHandler(deps))
	cacheConsumer := queue.NewCacheConsumer(consumerCfg, deps.Publisher, repo)
	resultSink := queue.NewResultSink(consumerCfg, repo)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer exited with error", "consumer", name, "error", err)
			}
		}()
	}

	logger.Info("worker started", "brokers", cfg.QueueBrokers, "max_consumers", cfg.QueueMaxConsumers)
	run("analysis", analysisConsumer.Run)
	run("cache", cacheConsumer.Run)
	run("result_sink", resultSink.Run)

	<-runCtx.Done()
	logger.Info("shutting down worker")
	wg.Wait()

	if err := deps.Publisher.Close(); err != nil {
		logger.Error("failed to close queue publisher", "error", err)
	}
}

// taskHandler adapts the planner/collector/analyzer/writer stack into a
// queue.Handler: one AnalysisTask in, a finished report out. Every task
// run this way has no human in the loop, so the machine never pauses at
// awaiting_feedback — Run proceeds straight through to persisting, per
// Machine.runAwaitingFeedback's no-inline-feedback fallthrough.
func taskHandler(deps *api.Dependencies) queue.Handler {
	return func(ctx context.Context, task workflow.AnalysisTask) (*workflow.ClientAnalysisReport, error) {
		bus := workflow.NewEventBus(16)
		machine := workflow.NewMachine(task.TaskID, task, bus, deps.Planner, deps.Collector, deps.Analyzer, deps.Writer)

		runCtx, cancel := context.WithTimeout(ctx, deps.Config.WorkflowTimeout)
		defer cancel()

		state, err := machine.Run(runCtx)
		if err != nil {
			return nil, err
		}
		return state.Report, nil
	}
}
