// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"crypto/subtle"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
)

const requestIDKey = "risk_engine_request_id"

// requestIDMiddleware tags every request with a UUID carried through
// writeError's response body and through logging.FromContext downstream.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// adminAuthMiddleware rejects requests missing a matching X-Auth-Token
// header. The comparison is constant-time so a timing side channel can't
// be used to recover the token byte by byte. An empty configured token
// disables admin routes entirely rather than accepting any value.
func adminAuthMiddleware(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			writeError(c, apperr.New(apperr.KindUnauthorized, "admin routes are disabled: no admin token configured"))
			return
		}
		supplied := c.GetHeader("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(adminToken)) != 1 {
			writeError(c, apperr.New(apperr.KindUnauthorized, "invalid or missing X-Auth-Token"))
			return
		}
		c.Next()
	}
}

// clientLimiters keys a token bucket per client IP per route group, so one
// noisy client can't exhaust another's budget. Buckets are created lazily
// and never evicted; the engine's client population is bounded enough in
// practice that this is a deliberate simplification over an LRU.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newClientLimiters(perMinute, burst int) *clientLimiters {
	return &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

func (cl *clientLimiters) allow(key string) bool {
	cl.mu.Lock()
	lim, ok := cl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(cl.r, cl.burst)
		cl.limiters[key] = lim
	}
	cl.mu.Unlock()
	return lim.Allow()
}

// rateLimitMiddleware enforces perMinute requests per client IP, with a
// burst equal to perMinute (spec §5's limits are stated as steady rates;
// a one-minute burst lets a client front-load a reasonable batch rather
// than trickling requests one at a time).
func rateLimitMiddleware(perMinute int) gin.HandlerFunc {
	cl := newClientLimiters(perMinute, perMinute)
	return func(c *gin.Context) {
		if !cl.allow(c.ClientIP()) {
			writeError(c, apperr.New(apperr.KindRateLimited, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// globalRateLimitMiddleware enforces the engine-wide per-client ceilings
// (100/min, 2000/h per spec §5) alongside the per-route limiters above.
func globalRateLimitMiddleware() gin.HandlerFunc {
	perMinute := newClientLimiters(100, 100)
	perHour := newClientLimiters(2000, 2000)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !perMinute.allow(key) || !perHour.allow(key) {
			writeError(c, apperr.New(apperr.KindRateLimited, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// recoveryMiddleware converts a panicking handler into a 500 rather than
// letting gin's default recovery print a stack trace to the response.
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		writeError(c, apperr.New(apperr.KindInternal, "internal error"))
	})
}
