// Copyright 2025 James Ross
package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEngine(t *testing.T, handler http.Handler) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		AzureDevOps: config.AzureDevOps{OrgURL: srv.URL, Project: "Contoso", APIVersion: "7.1"},
		Ingestion: config.Ingestion{
			MaxConcurrency:     2,
			HistoryLimit:       0,
			RequestTimeout:     5 * time.Second,
			BatchTimeout:       5 * time.Second,
			TotalTimeout:       10 * time.Second,
			RateLimitPerSecond: 1000,
		},
	}
	flow := flowconfig.Default()
	return NewEngine(cfg, flow, zap.NewNop())
}

func TestEngineRunEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Contoso/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"workItems": []map[string]int64{{"id": 1}, {"id": 2}},
		})
	})
	mux.HandleFunc("/Contoso/_apis/wit/workitems", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		var values []map[string]interface{}
		for _, idStr := range ids {
			id, err := strconv.ParseInt(idStr, 10, 64)
			require.NoError(t, err)
			values = append(values, map[string]interface{}{
				"id": id,
				"fields": map[string]interface{}{
					"System.Title":        "item " + idStr,
					"System.WorkItemType": "Task",
					"System.State":        "Done",
					"System.CreatedDate":  "2026-01-01T00:00:00Z",
				},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": values})
	})
	mux.HandleFunc("/_apis/wit/workitems/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				{
					"fields": map[string]interface{}{
						"System.State": map[string]interface{}{"oldValue": "New", "newValue": "Done"},
					},
					"revisedDate": "2026-01-02T00:00:00Z",
				},
			},
		})
	})

	e := testEngine(t, mux)
	var progressCalls int
	result, err := e.Run(context.Background(), 30, 0, func(p Progress) { progressCalls++ })
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Empty(t, result.ValidationErrors)
	require.False(t, result.Degraded)
	require.Greater(t, progressCalls, 0)
}

func TestEngineRunFailsWhenMajorityOfBatchesFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Contoso/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"workItems": []map[string]int64{{"id": 1}},
		})
	})
	mux.HandleFunc("/Contoso/_apis/wit/workitems", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	e := testEngine(t, mux)
	_, err := e.Run(context.Background(), 30, 0, nil)
	require.Error(t, err)
}
