// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
)

// handleListThreads implements GET /agent/threads?limit=50.
func handleListThreads(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 50)
		threads, err := deps.Repo.ListThreads(c.Request.Context(), limit, 0)
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to list threads", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"threads": threads, "count": len(threads)})
	}
}

// handleThreadHistory implements GET /agent/thread_history/{thread_id}.
func handleThreadHistory(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		thread, err := deps.Repo.GetThread(c.Request.Context(), c.Param("thread_id"))
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to read thread", err))
			return
		}
		if thread == nil {
			writeError(c, apperr.New(apperr.KindNotFound, "thread not found"))
			return
		}
		c.JSON(http.StatusOK, thread)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
