// Copyright 2025 James Ross
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/azuredevops"
	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/obs"
	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
	"go.uber.org/zap"
)

// maxBatchSize mirrors the detail-batch split size; kept local because the
// engine only needs it to judge the partial-failure ratio, not to split IDs
// itself (azuredevops.BatchFetcher owns that).
const maxBatchSize = 200

// Phase names a stage of an ingestion run, reported through the progress
// callback at phase boundaries and on unit completion.
type Phase string

const (
	PhaseQuery     Phase = "query"
	PhaseDetail    Phase = "detail"
	PhaseHistory   Phase = "history"
	PhaseNormalize Phase = "normalize"
	PhaseDone      Phase = "done"
)

// Progress is one update delivered to a caller-supplied progress callback.
type Progress struct {
	Phase Phase
	Done  int
	Total int
	Items int
}

// ProgressFunc receives progress updates. It must not block for long; the
// engine calls it synchronously from its own goroutine.
type ProgressFunc func(Progress)

// Result is the outcome of a full ingestion run. On cancellation or partial
// failure it carries whatever was collected, so the caller may still run the
// calculator over it. Alongside a non-nil error it is nil (query failure) or
// carries only FailedBatches (too few detail batches succeeded).
type Result struct {
	Items            []workitem.WorkItem
	ValidationErrors []workitem.ValidationError
	FailedBatches    []int
	FailedHistoryIDs []int64
	Degraded         bool
	Cancelled        bool
}

// Engine wires the query, batch-detail, history, and normalizer stages into
// a single ingestion run. A single Engine may be reused across runs; the
// underlying HTTP client is safe for concurrent use.
type Engine struct {
	client       *azuredevops.Client
	project      string
	concurrency  int
	historyLimit int
	batchTimeout time.Duration
	totalTimeout time.Duration
	states       flowconfig.StateConfiguration
	log          *zap.Logger
}

// NewEngine builds an Engine from application and domain configuration.
func NewEngine(cfg *config.Config, flow *flowconfig.Config, log *zap.Logger) *Engine {
	return &Engine{
		client:       azuredevops.New(cfg, log),
		project:      cfg.AzureDevOps.Project,
		concurrency:  cfg.Ingestion.MaxConcurrency,
		historyLimit: cfg.Ingestion.HistoryLimit,
		batchTimeout: cfg.Ingestion.BatchTimeout,
		totalTimeout: cfg.Ingestion.TotalTimeout,
		states:       flow.States,
		log:          log,
	}
}

// Run executes query -> batch detail -> history -> normalize. A historyLimit
// of 0 or less falls back to the Engine's configured default; lookbackDays
// is passed to the query stage as given.
//
// A non-nil error means the run failed outright (fewer than half the detail
// batches succeeded, or the query stage itself failed for a reason other
// than cancellation). Cancellation and partial per-batch/per-item failure
// are reported through Result, not error: the caller may still run the
// calculator over whatever was collected.
func (e *Engine) Run(ctx context.Context, lookbackDays, historyLimit int, progress ProgressFunc) (*Result, error) {
	if historyLimit <= 0 {
		historyLimit = e.historyLimit
	}

	ctx, cancel := context.WithTimeout(ctx, e.totalTimeout)
	defer cancel()

	ctx, span := obs.StartIngestionSpan(ctx, e.project, lookbackDays)
	defer span.End()

	report := func(phase Phase, done, total, items int) {
		if progress != nil {
			progress(Progress{Phase: phase, Done: done, Total: total, Items: items})
		}
	}

	queryStage := azuredevops.NewQueryStage(e.client, e.project)
	qctx, qspan := obs.StartQuerySpan(ctx, e.project)
	ids, err := queryStage.Query(qctx, lookbackDays)
	qspan.End()
	if err != nil {
		if isCancelled(err) {
			return &Result{Cancelled: true}, nil
		}
		return nil, fmt.Errorf("query stage: %w", err)
	}
	report(PhaseQuery, 1, 1, len(ids))

	batchFetcher := azuredevops.NewBatchFetcher(e.client, e.project, e.concurrency, e.batchTimeout)
	batchResult, err := batchFetcher.FetchAll(ctx, ids, func(completed, total, itemsSoFar int) {
		report(PhaseDetail, completed, total, itemsSoFar)
	})
	if err != nil {
		return nil, fmt.Errorf("batch detail fetch: %w", err)
	}

	totalBatches := (len(ids) + maxBatchSize - 1) / maxBatchSize
	degraded := false
	if totalBatches > 0 && len(batchResult.FailedBatches) > 0 {
		succeeded := totalBatches - len(batchResult.FailedBatches)
		if float64(succeeded)/float64(totalBatches) < 0.5 && ctx.Err() == nil {
			return &Result{
					Items:         nil,
					FailedBatches: batchResult.FailedBatches,
				}, fmt.Errorf("ingestion failed: only %d/%d detail batches succeeded", succeeded, totalBatches)
		}
		degraded = true
	}

	detailIDs := make([]int64, len(batchResult.Details))
	for i, d := range batchResult.Details {
		detailIDs[i] = d.ID
	}

	historyFetcher := azuredevops.NewHistoryFetcher(e.client, e.concurrency, historyLimit)
	histories, failedHistory, err := historyFetcher.FetchAll(ctx, detailIDs, func(completed, total, itemsSoFar int) {
		report(PhaseHistory, completed, total, itemsSoFar)
	})
	if err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}

	items := make([]workitem.WorkItem, 0, len(batchResult.Details))
	var validationErrors []workitem.ValidationError
	for i, d := range batchResult.Details {
		item, verr := Normalize(d, histories[d.ID], e.states)
		if verr != nil {
			validationErrors = append(validationErrors, *verr)
			obs.ValidationErrors.Inc()
			continue
		}
		items = append(items, *item)
		report(PhaseNormalize, i+1, len(batchResult.Details), len(items))
	}
	report(PhaseDone, 1, 1, len(items))

	obs.SetSpanSuccess(ctx)

	return &Result{
		Items:            items,
		ValidationErrors: validationErrors,
		FailedBatches:    batchResult.FailedBatches,
		FailedHistoryIDs: failedHistory,
		Degraded:         degraded,
		Cancelled:        ctx.Err() != nil,
	}, nil
}

func isCancelled(err error) bool {
	var classified azuredevops.ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind() == azuredevops.KindCancelled
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
