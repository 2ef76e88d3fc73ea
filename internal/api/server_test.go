// Copyright 2025 James Ross
package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/ingest"
	"github.com/arjaygg/ado-flow-metrics/internal/store"
)

func TestServerRoutesServeHealthAndSetRequestID(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.Server{
			ListenAddr:   ":0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Ingestion: config.Ingestion{MaxConcurrency: 2},
	}
	flow := flowconfig.Default()
	engine := ingest.NewEngine(cfg, flow, zap.NewNop())

	srv := NewServer(cfg, s, nil, engine, flow, nil, nil, zap.NewNop())
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestServerRoutesReturn404ForUnknownPath(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{Ingestion: config.Ingestion{MaxConcurrency: 2}}
	flow := flowconfig.Default()
	engine := ingest.NewEngine(cfg, flow, zap.NewNop())

	srv := NewServer(cfg, s, nil, engine, flow, nil, nil, zap.NewNop())
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
