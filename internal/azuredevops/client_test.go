// Copyright 2025 James Ross
package azuredevops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:        baseURL,
		apiVersion:     "7.1",
		pat:            func() string { return "test-pat" },
		http:           http.DefaultClient,
		requestTimeout: 5 * time.Second,
		limiter:        rate.NewLimiter(rate.Inf, 1),
	}
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	data, err := c.Do(context.Background(), "GET", "/x", url.Values{}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	require.Contains(t, string(data), "ok")
}

func TestClientAuthErrorIsTerminal(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Do(context.Background(), "GET", "/x", url.Values{}, nil)
	require.Error(t, err)
	var classified ClassifiedError
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindAuth, classified.Kind())
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClientNotFoundIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Do(context.Background(), "GET", "/x", url.Values{}, nil)
	var classified ClassifiedError
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindNotFound, classified.Kind())
}

func TestClientRateLimitedAfterRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.requestTimeout = time.Second
	_, err := c.Do(context.Background(), "GET", "/x", url.Values{}, nil)
	var classified ClassifiedError
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindRateLimited, classified.Kind())
}

func TestClientCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(srv.URL)
	_, err := c.Do(ctx, "GET", "/x", url.Values{}, nil)
	require.Error(t, err)
	var classified ClassifiedError
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindCancelled, classified.Kind())
}

func TestClientTransientAfterRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Do(context.Background(), "GET", "/x", url.Values{}, nil)
	var classified ClassifiedError
	require.ErrorAs(t, err, &classified)
	require.Equal(t, KindTransient, classified.Kind())
}
