// Copyright 2025 James Ross
package azuredevops

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/obs"
	"golang.org/x/sync/errgroup"
)

const maxBatchSize = 200

// ProgressFunc fires on each unit completion (a detail batch, or one item's
// history) with (completed_units, total_units, items_so_far).
type ProgressFunc func(completed, total, itemsSoFar int)

// BatchResult is the outcome of fetching detail for a full ID list: the
// union of successfully-fetched batches plus the indices of any batch that
// failed after retries. The caller decides whether to treat a non-empty
// FailedBatches as fatal.
type BatchResult struct {
	Details       []Detail
	FailedBatches []int
}

// BatchFetcher splits an ID list into detail-fetch batches and dispatches
// them through a bounded worker pool.
type BatchFetcher struct {
	client      *Client
	project     string
	concurrency int
	batchTimeout time.Duration
}

// NewBatchFetcher builds a BatchFetcher bound to project with the given
// worker concurrency (default 5, 1-20) and per-batch wall-clock timeout.
func NewBatchFetcher(client *Client, project string, concurrency int, batchTimeout time.Duration) *BatchFetcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	if batchTimeout <= 0 {
		batchTimeout = 60 * time.Second
	}
	return &BatchFetcher{client: client, project: project, concurrency: concurrency, batchTimeout: batchTimeout}
}

// FetchAll fetches detail for every ID in ids, preserving input order within
// the successfully-fetched union.
func (f *BatchFetcher) FetchAll(ctx context.Context, ids []int64, progress ProgressFunc) (BatchResult, error) {
	batches := splitBatches(ids, maxBatchSize)
	total := len(batches)
	if total == 0 {
		return BatchResult{}, nil
	}

	resultsByIndex := make([][]Detail, total)
	failedByIndex := make([]bool, total)

	sem := make(chan struct{}, f.concurrency)
	var g errgroup.Group
	var completed, itemsSoFar int

	type outcome struct {
		index   int
		details []Detail
		err     error
	}
	outcomes := make(chan outcome, total)

	for idx, batch := range batches {
		idx, batch := idx, batch
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes <- outcome{index: idx, err: &CancelledError{Cause: ctx.Err()}}
				return nil
			}
			defer func() { <-sem }()

			batchCtx, cancel := context.WithTimeout(ctx, f.batchTimeout)
			defer cancel()

			spanCtx, span := obs.StartBatchFetchSpan(batchCtx, idx, len(batch))
			details, err := f.fetchBatch(spanCtx, batch)
			if err != nil {
				obs.RecordError(spanCtx, err)
			} else {
				obs.SetSpanSuccess(spanCtx)
			}
			span.End()

			outcomes <- outcome{index: idx, details: details, err: err}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		completed++
		if o.err != nil {
			failedByIndex[o.index] = true
			obs.BatchesFailed.Inc()
		} else {
			resultsByIndex[o.index] = o.details
			obs.BatchesSucceeded.Inc()
			obs.ItemsFetched.Add(float64(len(o.details)))
			itemsSoFar += len(o.details)
		}
		if progress != nil {
			progress(completed, total, itemsSoFar)
		}
	}

	var out []Detail
	var failed []int
	for i := 0; i < total; i++ {
		if failedByIndex[i] {
			failed = append(failed, i)
			continue
		}
		out = append(out, resultsByIndex[i]...)
	}

	return BatchResult{Details: out, FailedBatches: failed}, nil
}

func splitBatches(ids []int64, size int) [][]int64 {
	var batches [][]int64
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[i:end])
	}
	return batches
}

type workItemsResponse struct {
	Value []rawWorkItem `json:"value"`
}

type rawWorkItem struct {
	ID     int64                  `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

func (f *BatchFetcher) fetchBatch(ctx context.Context, ids []int64) ([]Detail, error) {
	csv := make([]string, len(ids))
	for i, id := range ids {
		csv[i] = strconv.FormatInt(id, 10)
	}

	path := fmt.Sprintf("/%s/_apis/wit/workitems", f.project)
	query := map[string][]string{
		"ids":         {strings.Join(csv, ",")},
		"$expand":     {"relations"},
		"api-version": {f.client.apiVersion},
	}

	data, err := f.client.Do(ctx, "GET", path, query, nil)
	if err != nil {
		return nil, err
	}

	var parsed workItemsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse workitems response: %w", err)
	}

	details := make([]Detail, 0, len(parsed.Value))
	for _, raw := range parsed.Value {
		details = append(details, rawToDetail(raw))
	}
	return details, nil
}

func rawToDetail(raw rawWorkItem) Detail {
	d := Detail{
		ID:       raw.ID,
		Title:    fieldString(raw.Fields, "System.Title"),
		Type:     fieldString(raw.Fields, "System.WorkItemType"),
		State:    fieldString(raw.Fields, "System.State"),
		Sprint:   fieldString(raw.Fields, "System.IterationPath"),
		Priority: 3,
	}

	if p, ok := fieldFloat(raw.Fields, "Microsoft.VSTS.Common.Priority"); ok {
		d.Priority = int(p)
	}
	if assigned, ok := raw.Fields["System.AssignedTo"]; ok {
		d.AssignedTo = assignedToName(assigned)
	}
	if t, ok := fieldTime(raw.Fields, "System.CreatedDate"); ok {
		d.CreatedDate = t
	}
	if t, ok := fieldTime(raw.Fields, "Microsoft.VSTS.Common.ClosedDate"); ok {
		d.ClosedDate = &t
	}
	if v, ok := fieldFloat(raw.Fields, "Microsoft.VSTS.Scheduling.StoryPoints"); ok {
		d.StoryPoints = &v
	}
	if v, ok := fieldFloat(raw.Fields, "Microsoft.VSTS.Scheduling.EffortHours"); ok {
		d.EffortHours = &v
	}
	if tags := fieldString(raw.Fields, "System.Tags"); tags != "" {
		for _, t := range strings.Split(tags, ";") {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				d.Tags = append(d.Tags, trimmed)
			}
		}
	}
	return d
}

func assignedToName(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]interface{}:
		if name, ok := val["displayName"].(string); ok {
			return name
		}
		if name, ok := val["uniqueName"].(string); ok {
			return name
		}
	}
	return ""
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldFloat(fields map[string]interface{}, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func fieldTime(fields map[string]interface{}, key string) (time.Time, bool) {
	s := fieldString(fields, key)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
