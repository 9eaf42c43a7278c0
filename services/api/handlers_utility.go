// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
)

// handleHealth implements GET /utility/health?deep=bool. Shallow mode only
// confirms the repository is reachable; deep mode also probes the three
// request/response providers (search engines are intentionally excluded —
// a slow or rate-limited search index shouldn't flip the whole service
// unhealthy).
func handleHealth(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}
		healthy := true

		if _, err := deps.Repo.Exists(ctx, "cache", "__healthcheck__"); err != nil {
			checks["storage"] = err.Error()
			healthy = false
		} else {
			checks["storage"] = "ok"
		}

		if c.Query("deep") == "true" {
			probe := func(name string, fn func() error) {
				if err := fn(); err != nil {
					checks[name] = err.Error()
					healthy = false
					return
				}
				checks[name] = "ok"
			}
			probe("registry", func() error { return deps.RegistryClient.Healthcheck(ctx, "") })
			probe("court", func() error { return deps.CourtClient.Healthcheck(ctx, "") })
			probe("analytics", func() error { return deps.AnalyticsClient.Healthcheck(ctx, "") })
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": map[bool]string{true: "healthy", false: "degraded"}[healthy], "checks": checks})
	}
}

// handleMetrics implements GET /utility/metrics by delegating straight to
// the promhttp handler bound to the same registry httpcore's collectors
// were registered against.
func handleMetrics(deps *Dependencies) gin.HandlerFunc {
	handler := promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// handleListCircuitBreakers implements GET /utility/circuit-breakers.
func handleListCircuitBreakers(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := deps.HTTP.HostKeys()
		breakers := make(gin.H, len(keys))
		for _, k := range keys {
			breakers[k] = deps.HTTP.BreakerState(k).String()
		}
		c.JSON(http.StatusOK, gin.H{"circuit_breakers": breakers})
	}
}

// handleResetCircuitBreaker implements the admin-only
// POST /utility/circuit-breakers/{service}/reset.
func handleResetCircuitBreaker(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		service := c.Param("service")
		deps.HTTP.ResetBreaker(service)
		c.JSON(http.StatusOK, gin.H{"service": service, "status": "reset"})
	}
}

// handleStorageStats implements GET /utility/stats/storage.
func handleStorageStats(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Repo.GetStats(c.Request.Context())
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to read storage stats", err))
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
