// Copyright 2025 James Ross
package azuredevops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func nowMinusDays(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}

func TestQuerySingleWindowUnderCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := wiqlResponse{}
		for i := int64(1); i <= 5; i++ {
			resp.WorkItems = append(resp.WorkItems, struct {
				ID int64 `json:"id"`
			}{ID: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	q := NewQueryStage(c, "Contoso")
	ids, err := q.Query(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, ids, 5)
}

func TestQueryDedupesAcrossPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := wiqlResponse{}
		resp.WorkItems = append(resp.WorkItems, struct {
			ID int64 `json:"id"`
		}{ID: 1}, struct {
			ID int64 `json:"id"`
		}{ID: 2})
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	q := NewQueryStage(c, "Contoso")
	var order []int64
	seen := map[int64]bool{}
	err := q.queryWindow(context.Background(), nowMinusDays(2), nowMinusDays(0), seen, &order)
	require.NoError(t, err)
	err = q.queryWindow(context.Background(), nowMinusDays(4), nowMinusDays(2), seen, &order)
	require.NoError(t, err)
	require.Len(t, order, 2)
}
