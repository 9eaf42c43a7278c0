// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package httpcore is the resilient HTTP core shared by every external
// provider client: a per-host circuit breaker, exponential-backoff retry,
// a bounded pagination driver, and Prometheus metrics.
package httpcore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/IvanKorch1289/client-analyze-agent/internal/apperr"
	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
	"github.com/IvanKorch1289/client-analyze-agent/services/httpcore/breaker"
)

var tracer = otel.Tracer("riskengine.httpcore")

// MaxPages bounds the pagination driver regardless of caller-supplied
// max_pages, per spec.
const MaxPages = 100

// RequestOptions carries per-call overrides to Request.
type RequestOptions struct {
	Method  string
	Body    []byte
	Headers map[string]string
	Timeout time.Duration
}

// Client executes HTTP requests through a circuit breaker and retry policy
// keyed by logical host (the provider's service label, not the raw URL
// authority, so registry/court/analytics each get independent breakers
// even if they happen to share a host).
type Client struct {
	http    *http.Client
	retry   RetryPolicy
	metrics *Metrics

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker

	failureThreshold int
	resetTimeout     time.Duration
}

// New builds a Client. failureThreshold/resetTimeout seed every breaker
// created lazily per host key.
func New(metrics *Metrics, failureThreshold int, resetTimeout time.Duration) *Client {
	return &Client{
		http:             &http.Client{},
		retry:            DefaultRetryPolicy(),
		metrics:          metrics,
		breakers:         make(map[string]*breaker.Breaker),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

func (c *Client) breakerFor(hostKey string) *breaker.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[hostKey]
	if !ok {
		b = breaker.New(c.failureThreshold, c.resetTimeout, breaker.WithTransitionHook(c.metrics.transitionHook(hostKey)))
		c.breakers[hostKey] = b
	}
	return b
}

// BreakerState exposes the breaker state for a host key, used by
// GET /utility/circuit-breakers.
func (c *Client) BreakerState(hostKey string) breaker.State {
	return c.breakerFor(hostKey).State()
}

// ResetBreaker forces a host key's breaker closed, used by the admin reset route.
func (c *Client) ResetBreaker(hostKey string) {
	c.breakerFor(hostKey).Reset()
}

// HostKeys lists every host key that has had a breaker created so far, for
// GET /utility/circuit-breakers to enumerate.
func (c *Client) HostKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.breakers))
	for k := range c.breakers {
		keys = append(keys, k)
	}
	return keys
}

// Request executes a single logical call against hostKey, applying the
// circuit breaker and retry policy. Non-2xx, non-retryable responses are
// returned with their body intact so callers can parse structured errors.
func (c *Client) Request(ctx context.Context, hostKey, url string, opts RequestOptions) ([]byte, int, error) {
	ctx, span := tracer.Start(ctx, "httpcore.Request")
	defer span.End()
	span.SetAttributes(attribute.String("httpcore.host_key", hostKey))
	log := logging.FromContext(ctx).With("host_key", hostKey)

	b := c.breakerFor(hostKey)
	c.metrics.requests.WithLabelValues(hostKey).Inc()

	if !b.Allow() {
		err := apperr.New(apperr.KindUpstream, fmt.Sprintf("circuit open for %s", hostKey))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxRetries+1; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		body, status, err := c.doOnce(reqCtx, method, url, opts.Body, opts.Headers)
		cancel()

		if err == nil && status < 300 {
			b.RecordSuccess()
			c.metrics.successes.WithLabelValues(hostKey).Inc()
			c.metrics.latency.WithLabelValues(hostKey).Observe(time.Since(start).Seconds())
			return body, status, nil
		}

		var resp *http.Response
		if status > 0 {
			resp = &http.Response{StatusCode: status}
		}
		if !ShouldRetry(resp, err) {
			b.RecordFailure()
			if err != nil {
				lastErr = apperr.Wrap(classifyErr(err), "request failed", err)
			} else {
				lastErr = apperr.New(apperr.KindUpstream, fmt.Sprintf("status %d", status))
			}
			c.metrics.latency.WithLabelValues(hostKey).Observe(time.Since(start).Seconds())
			return body, status, lastErr
		}

		b.RecordFailure()
		lastErr = err
		if attempt <= c.retry.MaxRetries {
			c.metrics.retries.WithLabelValues(hostKey).Inc()
			log.Warn("retrying request", "attempt", attempt, "error", err)
			select {
			case <-time.After(c.retry.Backoff(attempt)):
			case <-ctx.Done():
				return nil, 0, apperr.Wrap(apperr.KindTimeout, "context done during backoff", ctx.Err())
			}
		}
	}

	c.metrics.latency.WithLabelValues(hostKey).Observe(time.Since(start).Seconds())
	if lastErr == nil {
		lastErr = apperr.New(apperr.KindUpstream, "request exhausted retries")
	}
	return nil, 0, apperr.Wrap(apperr.KindUpstream, "exhausted retries", lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func classifyErr(err error) apperr.Kind {
	if err == context.DeadlineExceeded {
		return apperr.KindTimeout
	}
	return apperr.KindUpstream
}

// Page is one page of results from FetchAllPages: the raw body, which is
// also handed to the caller's nextURL function to find the next page.
type Page struct {
	Body []byte
}

// FetchAllPages drives pagination against a single endpoint, stopping on an
// empty page, on cursor-cycle detection, or at MaxPages (or the caller's
// maxPages, whichever is smaller).
//
// nextURL receives the previous page's body (nil on the first call) and
// returns the next URL to fetch, or "" to stop.
func (c *Client) FetchAllPages(ctx context.Context, hostKey string, firstURL string, maxPages int, nextURL func(prevBody []byte) string) ([]Page, error) {
	if maxPages <= 0 || maxPages > MaxPages {
		maxPages = MaxPages
	}
	var pages []Page
	seenCursors := make(map[string]bool)
	url := firstURL
	for i := 0; i < maxPages && url != ""; i++ {
		if seenCursors[url] {
			break
		}
		seenCursors[url] = true

		body, status, err := c.Request(ctx, hostKey, url, RequestOptions{})
		if err != nil {
			return pages, err
		}
		if status >= 300 || len(body) == 0 {
			break
		}
		pages = append(pages, Page{Body: body})
		url = nextURL(body)
	}
	return pages, nil
}
