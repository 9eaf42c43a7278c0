// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindRateLimited, http.StatusTooManyRequests},
		{apperr.KindTimeout, http.StatusGatewayTimeout},
		{apperr.KindUpstream, http.StatusServiceUnavailable},
		{apperr.KindLLMExhausted, http.StatusServiceUnavailable},
		{apperr.KindStorage, http.StatusServiceUnavailable},
		{apperr.KindInternal, http.StatusInternalServerError},
		{apperr.Kind("made_up"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, httpStatus(tc.kind), "kind %s", tc.kind)
	}
}

func TestWriteError_AppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	c.Set(requestIDKey, "req-123")

	writeError(c, apperr.New(apperr.KindNotFound, "report not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "report not found", body["message"])
	assert.Equal(t, string(apperr.KindNotFound), body["kind"])
	assert.Equal(t, "req-123", body["request_id"])
}

func TestWriteError_BareErrorSuppressesMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	writeError(c, errors.New("leaky internal detail: connection string foo"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body["message"])
	assert.NotContains(t, rec.Body.String(), "connection string")
}
