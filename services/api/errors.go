// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
)

// httpStatus maps an apperr.Kind to the status code the REST surface
// renders it as.
func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindUpstream, apperr.KindLLMExhausted, apperr.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {kind, message, request_id} at the status its
// Kind maps to. A bare error (not an *apperr.Error) is treated as internal
// and its message is not echoed back, since it was never meant for a
// client audience.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := httpStatus(kind)
	message := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Message
	}
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"kind":       kind,
		"message":    message,
		"request_id": requestID(c),
	})
}
