// Copyright 2025 James Ross
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/arjaygg/ado-flow-metrics/internal/cache"
	"github.com/arjaygg/ado-flow-metrics/internal/events"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/ingest"
	"github.com/arjaygg/ado-flow-metrics/internal/metrics"
	"github.com/arjaygg/ado-flow-metrics/internal/report"
	"github.com/arjaygg/ado-flow-metrics/internal/store"
)

// Handler serves the HTTP read API over a report snapshot refreshed by
// re-running ingestion and recalculating metrics. Reads never block on a
// refresh; they're served from the last swapped-in snapshot.
type Handler struct {
	store     *store.Store
	cache     *cache.ReportCache
	engine    *ingest.Engine
	flowCfg   *flowconfig.Config
	publisher *events.Publisher
	allowList []string

	lookbackDays int
	historyLimit int

	log *zap.Logger

	refreshing atomic.Bool
	snapshot   atomic.Pointer[report.Report]
}

// NewHandler builds a Handler and seeds its snapshot from whatever report
// is already on disk, so a restart doesn't momentarily report no data.
func NewHandler(s *store.Store, rc *cache.ReportCache, engine *ingest.Engine, flowCfg *flowconfig.Config, pub *events.Publisher, allowList []string, lookbackDays, historyLimit int, log *zap.Logger) *Handler {
	h := &Handler{
		store:        s,
		cache:        rc,
		engine:       engine,
		flowCfg:      flowCfg,
		publisher:    pub,
		allowList:    allowList,
		lookbackDays: lookbackDays,
		historyLimit: historyLimit,
		log:          log,
	}

	if raw, err := s.ReadReportBytes(); err == nil {
		var r report.Report
		if jsonErr := json.Unmarshal(raw, &r); jsonErr == nil {
			h.snapshot.Store(&r)
		}
	}

	return h
}

// Health answers GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot.Load()
	resp := healthResponse{
		Status:     "ok",
		Refreshing: h.refreshing.Load(),
	}
	if snap != nil {
		resp.DataAvailable = true
		t := snap.GeneratedAt
		resp.LastGeneratedAt = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

// Metrics answers GET /api/metrics with the full current report.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot.Load()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_DATA", "data source unavailable and no cached report exists")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// WorkItems answers GET /api/work-items, optionally filtered by ?state= and
// ?assigned_to=. Transition history is omitted to keep the list small; fetch
// GET /api/work-items/{id} for the full record.
func (h *Handler) WorkItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ReadWorkItems()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_DATA", "no work items have been ingested yet")
		return
	}

	state := r.URL.Query().Get("state")
	assignee := r.URL.Query().Get("assigned_to")

	summaries := make([]workItemSummary, 0, len(items))
	for _, item := range items {
		if state != "" && item.CurrentState != state {
			continue
		}
		if assignee != "" && item.AssignedTo != assignee {
			continue
		}
		summaries = append(summaries, workItemSummary{
			ID:           item.ID,
			Title:        item.Title,
			Type:         item.Type,
			CurrentState: item.CurrentState,
			AssignedTo:   item.AssignedTo,
			CreatedDate:  item.CreatedDate,
			ClosedDate:   item.ClosedDate,
			Priority:     item.Priority,
			Sprint:       item.Sprint,
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

// WorkItem answers GET /api/work-items/{id} with the full normalized record,
// transitions included.
func (h *Handler) WorkItem(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "work item id must be numeric")
		return
	}

	items, err := h.store.ReadWorkItems()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_DATA", "no work items have been ingested yet")
		return
	}

	for _, item := range items {
		if item.ID == id {
			writeJSON(w, http.StatusOK, item)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "work item not found")
}

// Team answers GET /api/team/{assignee} with one team member's metrics.
func (h *Handler) Team(w http.ResponseWriter, r *http.Request) {
	assignee := mux.Vars(r)["assignee"]

	snap := h.snapshot.Load()
	if snap == nil {
		writeError(w, http.StatusNotFound, "NO_DATA", "no report has been generated yet")
		return
	}

	for _, member := range snap.Metrics.Team {
		if member.Assignee == assignee {
			writeJSON(w, http.StatusOK, member)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "no metrics for that assignee")
}

// Refresh answers POST /api/refresh. It returns 202 whether it just started
// a run or one was already in flight; the caller polls GET /api/health or
// GET /api/metrics for the result.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.refreshing.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusAccepted, refreshAcceptedResponse{Status: "refresh already in progress"})
		return
	}

	go h.runRefresh(context.Background())

	writeJSON(w, http.StatusAccepted, refreshAcceptedResponse{Status: "refresh started"})
}

func (h *Handler) runRefresh(ctx context.Context) {
	defer h.refreshing.Store(false)

	progress := func(p ingest.Progress) {
		if h.publisher != nil {
			h.publisher.Progress(ctx, "", string(p.Phase), p.Done, p.Total, p.Items)
		}
	}

	result, err := h.engine.Run(ctx, h.lookbackDays, h.historyLimit, progress)
	if err != nil {
		h.log.Error("refresh failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	m := metrics.Calculate(result.Items, h.flowCfg, now, h.allowList)
	rep := report.Build(m, h.flowCfg, result.ValidationErrors, result.FailedBatches, result.FailedHistoryIDs, result.Cancelled, now)

	if err := h.store.WriteWorkItems(result.Items); err != nil {
		h.log.Error("failed to persist work items", zap.Error(err))
	}
	dash := report.Dashboard(rep)
	if err := h.store.WriteReport(rep, dash); err != nil {
		h.log.Error("failed to persist report", zap.Error(err))
	}
	if h.cache != nil {
		if err := h.cache.PutReport(ctx, rep, now); err != nil {
			h.log.Error("failed to cache report", zap.Error(err))
		}
	}

	h.snapshot.Store(&rep)

	if h.publisher != nil {
		h.publisher.Complete(ctx, rep.RunID, m.ItemCount, len(result.ValidationErrors), result.Degraded, result.Cancelled)
	}

	h.log.Info("refresh completed",
		zap.String("run_id", rep.RunID),
		zap.Int("item_count", m.ItemCount),
		zap.Bool("degraded", result.Degraded))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
