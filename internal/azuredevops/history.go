// Copyright 2025 James Ross
package azuredevops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/obs"
	"golang.org/x/sync/errgroup"
)

// HistoryEntry is one state-change revision, ordered ascending by
// ChangedDate once returned from FetchAll.
type HistoryEntry struct {
	State         string
	PreviousState string
	ChangedBy     string
	ChangedDate   time.Time
}

// HistoryFetcher retrieves per-item revision history from the tenant-scoped
// updates endpoint. It shares the same bounded-concurrency pool shape as
// BatchFetcher; history and detail requests may interleave subject to the
// same client-level rate limiter.
type HistoryFetcher struct {
	client       *Client
	concurrency  int
	historyLimit int
}

// NewHistoryFetcher builds a HistoryFetcher. historyLimit of 0 means no
// server-side cap on returned revisions.
func NewHistoryFetcher(client *Client, concurrency, historyLimit int) *HistoryFetcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &HistoryFetcher{client: client, concurrency: concurrency, historyLimit: historyLimit}
}

// FetchAll fetches history for every ID, returning a map keyed by ID and the
// list of IDs whose fetch failed terminally after retries.
func (f *HistoryFetcher) FetchAll(ctx context.Context, ids []int64, progress ProgressFunc) (map[int64][]HistoryEntry, []int64, error) {
	total := len(ids)
	if total == 0 {
		return map[int64][]HistoryEntry{}, nil, nil
	}

	sem := make(chan struct{}, f.concurrency)
	var g errgroup.Group

	type outcome struct {
		id      int64
		entries []HistoryEntry
		err     error
	}
	outcomes := make(chan outcome, total)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes <- outcome{id: id, err: &CancelledError{Cause: ctx.Err()}}
				return nil
			}
			defer func() { <-sem }()

			spanCtx, span := obs.StartHistoryFetchSpan(ctx, int(id))
			entries, err := f.fetchOne(spanCtx, id)
			if err != nil {
				obs.RecordError(spanCtx, err)
			} else {
				obs.SetSpanSuccess(spanCtx)
			}
			span.End()

			outcomes <- outcome{id: id, entries: entries, err: err}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	result := make(map[int64][]HistoryEntry, total)
	var failed []int64
	completed := 0
	itemsSoFar := 0
	for o := range outcomes {
		completed++
		if o.err != nil {
			failed = append(failed, o.id)
		} else {
			result[o.id] = o.entries
			itemsSoFar++
		}
		if progress != nil {
			progress(completed, total, itemsSoFar)
		}
	}

	return result, failed, nil
}

type rawUpdate struct {
	Fields map[string]struct {
		OldValue interface{} `json:"oldValue"`
		NewValue interface{} `json:"newValue"`
	} `json:"fields"`
	RevisedBy struct {
		DisplayName string `json:"displayName"`
	} `json:"revisedBy"`
	RevisedDate string `json:"revisedDate"`
}

type updatesResponse struct {
	Value []rawUpdate `json:"value"`
}

func (f *HistoryFetcher) fetchOne(ctx context.Context, id int64) ([]HistoryEntry, error) {
	path := fmt.Sprintf("/_apis/wit/workitems/%d/updates", id)
	query := url.Values{"api-version": {f.client.apiVersion}}
	if f.historyLimit > 0 {
		query.Set("$top", strconv.Itoa(f.historyLimit))
	}

	data, err := f.client.Do(ctx, "GET", path, query, nil)
	if err != nil {
		return nil, err
	}

	var parsed updatesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse updates response: %w", err)
	}

	var entries []HistoryEntry
	var last time.Time
	for _, raw := range parsed.Value {
		stateField, ok := raw.Fields["System.State"]
		if !ok {
			continue
		}
		newState, ok := stateField.NewValue.(string)
		if !ok || newState == "" {
			continue
		}
		changedDate, err := time.Parse(time.RFC3339, raw.RevisedDate)
		if err != nil {
			return nil, &TransientError{Cause: fmt.Errorf("item %d: unparseable revision date %q: %w", id, raw.RevisedDate, err)}
		}
		if !last.IsZero() && changedDate.Before(last) {
			return nil, &TransientError{Cause: fmt.Errorf("item %d: out-of-order revision date %s before %s", id, changedDate, last)}
		}
		last = changedDate

		prevState, _ := stateField.OldValue.(string)
		entries = append(entries, HistoryEntry{
			State:         newState,
			PreviousState: prevState,
			ChangedBy:     raw.RevisedBy.DisplayName,
			ChangedDate:   changedDate,
		})
	}
	return entries, nil
}
