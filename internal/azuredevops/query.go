// Copyright 2025 James Ross
package azuredevops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// queryCap mirrors the documented result cap of the WIQL endpoint.
const queryCap = 19999

// QueryStage issues the WIQL query and pages around the endpoint's result
// cap by halving the lookback window from the far edge until every page
// fits, merging results with deduplication.
type QueryStage struct {
	client  *Client
	project string
}

// NewQueryStage builds a QueryStage bound to project.
func NewQueryStage(client *Client, project string) *QueryStage {
	return &QueryStage{client: client, project: project}
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int64 `json:"id"`
	} `json:"workItems"`
}

// Query returns ordered, deduplicated item IDs changed within the last
// lookbackDays, sorted by ChangedDate descending.
func (q *QueryStage) Query(ctx context.Context, lookbackDays int) ([]int64, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -lookbackDays)

	seen := make(map[int64]bool)
	var order []int64
	if err := q.queryWindow(ctx, from, now, seen, &order); err != nil {
		return nil, err
	}
	return order, nil
}

func (q *QueryStage) queryWindow(ctx context.Context, from, to time.Time, seen map[int64]bool, order *[]int64) error {
	ids, err := q.rawQuery(ctx, from, to)
	if err != nil {
		return err
	}
	if len(ids) < queryCap || to.Sub(from) < time.Minute {
		appendUnseen(seen, order, ids)
		return nil
	}

	mid := from.Add(to.Sub(from) / 2)
	// Halve from the far edge: the half nearer "to" (now) is queried first,
	// preserving descending-ChangedDate order across the merge.
	if err := q.queryWindow(ctx, mid, to, seen, order); err != nil {
		return err
	}
	return q.queryWindow(ctx, from, mid, seen, order)
}

func appendUnseen(seen map[int64]bool, order *[]int64, ids []int64) {
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			*order = append(*order, id)
		}
	}
}

func (q *QueryStage) rawQuery(ctx context.Context, from, to time.Time) ([]int64, error) {
	wiql := fmt.Sprintf(
		`SELECT [System.Id] FROM WorkItems WHERE [System.ChangedDate] >= '%s' AND [System.ChangedDate] <= '%s'`+
			` AND [System.TeamProject] = '%s' ORDER BY [System.ChangedDate] DESC`,
		from.Format("2006-01-02T15:04:05Z"), to.Format("2006-01-02T15:04:05Z"), q.project)

	body := map[string]string{"query": wiql}
	path := fmt.Sprintf("/%s/_apis/wit/wiql", url.PathEscape(q.project))
	query := url.Values{"api-version": {q.client.apiVersion}}

	data, err := q.client.Do(ctx, "POST", path, query, body)
	if err != nil {
		return nil, err
	}

	var parsed wiqlResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse wiql response: %w", err)
	}

	ids := make([]int64, len(parsed.WorkItems))
	for i, wi := range parsed.WorkItems {
		ids[i] = wi.ID
	}
	return ids, nil
}
