// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the engine's HTTP surface: POST /agent/analyze-client
// (sync or SSE), the thread/report/async-task surfaces, and the
// /utility/* operational endpoints, each rate-limited per spec §5/§6.1.
func NewRouter(deps *Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(recoveryMiddleware(), requestIDMiddleware(), globalRateLimitMiddleware())

	agent := router.Group("/agent", rateLimitMiddleware(5))
	{
		agent.POST("/analyze-client", handleAnalyzeClient(deps))
		agent.POST("/analyze-client/async", handleAnalyzeClientAsync(deps))
		agent.DELETE("/analyze/:session_id", handleCancelSession(deps))
		agent.POST("/feedback", handleFeedback(deps))
		agent.GET("/task/:task_id", handleTaskStatus(deps))
	}

	threads := router.Group("/agent", rateLimitMiddleware(20))
	{
		threads.GET("/threads", handleListThreads(deps))
		threads.GET("/thread_history/:thread_id", handleThreadHistory(deps))
	}

	reports := router.Group("/reports", rateLimitMiddleware(30))
	{
		reports.GET("", handleListReports(deps))
		reports.GET("/:report_id", handleGetReport(deps))
		reports.DELETE("/:report_id", adminAuthMiddleware(deps.Config.AdminToken), handleDeleteReport(deps))
	}

	utility := router.Group("/utility", rateLimitMiddleware(60))
	{
		utility.GET("/health", handleHealth(deps))
		utility.GET("/metrics", handleMetrics(deps))
		utility.GET("/circuit-breakers", handleListCircuitBreakers(deps))
		utility.POST("/circuit-breakers/:service/reset", adminAuthMiddleware(deps.Config.AdminToken), handleResetCircuitBreaker(deps))
		utility.GET("/stats/storage", handleStorageStats(deps))
	}

	return router
}
