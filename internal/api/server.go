// Copyright 2025 James Ross

// Package api implements the HTTP read API: GET /api/metrics, GET
// /api/work-items (and /{id}), GET /api/team/{assignee}, GET /api/health
// and POST /api/refresh. It serves a report snapshot kept current by a
// single-writer refresh; it never runs ingestion inline on a request.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/arjaygg/ado-flow-metrics/internal/cache"
	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/arjaygg/ado-flow-metrics/internal/events"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/ingest"
	"github.com/arjaygg/ado-flow-metrics/internal/store"
)

// Server wraps the read API's HTTP listener.
type Server struct {
	cfg     *config.Config
	handler *Handler
	log     *zap.Logger
	server  *http.Server
}

// NewServer builds a Server from the application config and its already
// -constructed collaborators.
func NewServer(cfg *config.Config, s *store.Store, rc *cache.ReportCache, engine *ingest.Engine, flowCfg *flowconfig.Config, pub *events.Publisher, allowList []string, log *zap.Logger) *Server {
	h := NewHandler(s, rc, engine, flowCfg, pub, allowList, cfg.Ingestion.DefaultLookbackDays, cfg.Ingestion.HistoryLimit, log)

	return &Server{
		cfg:     cfg,
		handler: h,
		log:     log,
	}
}

// Routes builds the gorilla/mux router, exported so tests can exercise it
// directly with httptest without binding a port.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.handler.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/metrics", s.handler.Metrics).Methods(http.MethodGet)
	r.HandleFunc("/api/work-items", s.handler.WorkItems).Methods(http.MethodGet)
	r.HandleFunc("/api/work-items/{id}", s.handler.WorkItem).Methods(http.MethodGet)
	r.HandleFunc("/api/team/{assignee}", s.handler.Team).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", s.handler.Refresh).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = LoggingMiddleware(s.log)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = RecoveryMiddleware(s.log)(handler)
	return handler
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.log.Info("starting HTTP read API", zap.String("addr", s.cfg.Server.ListenAddr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
