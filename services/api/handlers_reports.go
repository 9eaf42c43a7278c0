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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/services/storage"
)

// handleListReports implements GET /reports with the filter/pagination
// parameters in spec §6.1.
func handleListReports(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := storage.ReportFilter{
			INN:        c.Query("inn"),
			RiskLevel:  c.Query("risk_level"),
			ClientName: c.Query("client_name"),
			Limit:      queryInt(c, "limit", 50),
			Offset:     queryInt(c, "offset", 0),
		}
		if t, ok := queryTime(c, "date_from"); ok {
			filter.DateFrom = &t
		}
		if t, ok := queryTime(c, "date_to"); ok {
			filter.DateTo = &t
		}
		if n, ok := queryIntPtr(c, "min_risk_score"); ok {
			filter.MinRiskScore = n
		}
		if n, ok := queryIntPtr(c, "max_risk_score"); ok {
			filter.MaxRiskScore = n
		}

		reports, err := deps.Repo.ListReports(c.Request.Context(), filter)
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to list reports", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
	}
}

// handleGetReport implements GET /reports/{report_id}.
func handleGetReport(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := deps.Repo.GetReport(c.Request.Context(), c.Param("report_id"))
		if err != nil {
			writeError(c, apperr.Wrap(apperr.KindStorage, "failed to read report", err))
			return
		}
		if report == nil {
			writeError(c, apperr.New(apperr.KindNotFound, "report not found"))
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// handleDeleteReport implements the admin-only DELETE /reports/{report_id}.
func handleDeleteReport(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("report_id")
		if err := deps.Repo.DeleteReport(c.Request.Context(), reportID); err != nil {
			writeError(c, apperr.Wrap(apperr.KindNotFound, "report not found", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"report_id": reportID, "status": "deleted"})
	}
}

func queryTime(c *gin.Context, key string) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t, err = time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

func queryIntPtr(c *gin.Context, key string) (*int, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, false
	}
	return &n, true
}
