// Copyright 2025 James Ross
package azuredevops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/arjaygg/ado-flow-metrics/internal/obs"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxRetryAttempts = 3

// Client issues authenticated requests against the work-tracking service.
// A single Client is shared across the query, batch-detail, and history
// stages and is safe for concurrent use.
type Client struct {
	baseURL        string
	apiVersion     string
	pat            func() string
	http           *http.Client
	limiter        *rate.Limiter
	log            *zap.Logger
	requestTimeout time.Duration
}

// New builds a Client from application configuration.
func New(cfg *config.Config, log *zap.Logger) *Client {
	limit := cfg.Ingestion.RateLimitPerSecond
	if limit <= 0 {
		limit = 10
	}
	return &Client{
		baseURL:        cfg.AzureDevOps.OrgURL,
		apiVersion:     cfg.AzureDevOps.APIVersion,
		pat:            cfg.AzureDevOps.PAT,
		http:           &http.Client{},
		limiter:        rate.NewLimiter(rate.Limit(limit), int(limit)+1),
		log:            log,
		requestTimeout: cfg.Ingestion.RequestTimeout,
	}
}

// Do issues method against path with the given query string and JSON body
// (nil for none), honoring retry/backoff, rate limiting, and cancellation.
// It returns the raw response body on 2xx.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyBytes = b
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 8 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	retryable := backoff.WithMaxRetries(bo, maxRetryAttempts)
	withCtx := backoff.WithContext(retryable, ctx)

	var result []byte
	attempts := 0

	operation := func() error {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(&CancelledError{Cause: err})
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()

		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, fullURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.SetBasicAuth("", c.pat())
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		obs.RequestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(&CancelledError{Cause: ctx.Err()})
			}
			obs.BatchRetries.Inc()
			return &TransientError{Attempts: attempts, Cause: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransientError{Attempts: attempts, Cause: err}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			result = data
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&AuthError{StatusCode: resp.StatusCode})
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(&NotFoundError{Path: path})
		case resp.StatusCode == http.StatusTooManyRequests:
			obs.BatchRetries.Inc()
			if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 && wait > bo.NextBackOff() {
				bo.InitialInterval = wait
			}
			return &RateLimitedError{Attempts: attempts}
		case resp.StatusCode >= 500:
			obs.BatchRetries.Inc()
			return &TransientError{Attempts: attempts, Cause: fmt.Errorf("status %d", resp.StatusCode)}
		default:
			return backoff.Permanent(&UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(data)})
		}
	}

	err := backoff.Retry(operation, withCtx)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, &CancelledError{Cause: ctx.Err()}
	}
	// backoff.Retry unwraps permanent errors to their cause.
	return nil, err
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(http.TimeFormat, header); err == nil {
		return time.Until(t)
	}
	return 0
}
