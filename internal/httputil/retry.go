// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP transport used for blob storage calls.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/digesto/internal/logging"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const (
	defaultMaxRetries = 5
	maxRetryAfter     = time.Minute
)

// Doer sends a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests) and 503 (Server Busy) with exponential backoff. The delay starts
// at RetryBaseDelay and doubles each attempt, unless the response carries a
// Retry-After header in seconds, which is honored up to one minute.
//
// When maxRetries is 0 the default (5) is used. A request whose body cannot
// be replayed (no GetBody) is never retried. If the context is cancelled
// during a backoff wait the function returns ctx.Err(). After exhausting
// retries the last throttled response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client Doer, req *http.Request, maxRetries int) (*http.Response, error) {
	return doWithRetry(ctx, client, req, maxRetries, zap.NewNop())
}

func doWithRetry(ctx context.Context, client Doer, req *http.Request, maxRetries int, logger *zap.Logger) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}

		if !throttled(resp.StatusCode) || !replayable || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := retryDelay(resp, attempt)
		logger.Debug("throttled, retrying",
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempt+1),
			zap.Int("max", maxRetries))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func throttled(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

func retryDelay(resp *http.Response, attempt int) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			if d > maxRetryAfter {
				d = maxRetryAfter
			}
			return d
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
}

// Transport is a Doer that retries throttled responses. It plugs into SDK
// client options that accept a custom transport.
type Transport struct {
	// Client sends each attempt. Nil means http.DefaultClient.
	Client Doer

	// MaxRetries bounds retries per request. Zero means 5.
	MaxRetries int

	Logger *zap.Logger
}

// Do sends req, retrying on throttling within req's context.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	return doWithRetry(req.Context(), client, req, t.MaxRetries, logging.OrNop(t.Logger))
}
