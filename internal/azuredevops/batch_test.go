// Copyright 2025 James Ross
package azuredevops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplitBatchesRespectsMaxSize(t *testing.T) {
	ids := make([]int64, 450)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	batches := splitBatches(ids, 200)
	require.Len(t, batches, 3)
	require.Len(t, batches[0], 200)
	require.Len(t, batches[1], 200)
	require.Len(t, batches[2], 50)
}

func TestFetchAllUnionsSuccessfulBatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("ids")
		w.Write([]byte(`{"value":[{"id":` + ids[:1] + `,"fields":{"System.Title":"t","System.WorkItemType":"Task","System.State":"Done"}}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	f := NewBatchFetcher(c, "Contoso", 2, 5*time.Second)

	var progressCalls int
	result, err := f.FetchAll(context.Background(), []int64{1, 2, 3}, func(completed, total, items int) {
		progressCalls++
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Details)
	require.Empty(t, result.FailedBatches)
	require.Greater(t, progressCalls, 0)
}

func TestFetchAllMarksFailedBatchWithoutAbortingSiblings(t *testing.T) {
	failingFirstID := strconv.Itoa(maxBatchSize + 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idsParam := r.URL.Query().Get("ids")
		if len(idsParam) >= len(failingFirstID) && idsParam[:len(failingFirstID)] == failingFirstID {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"value":[{"id":1,"fields":{}}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.requestTimeout = time.Second
	f := NewBatchFetcher(c, "Contoso", 1, time.Second)

	ids := []int64{}
	for i := int64(1); i <= 3*maxBatchSize; i++ {
		ids = append(ids, i)
	}
	result, err := f.FetchAll(context.Background(), ids, nil)
	require.NoError(t, err)
	require.Len(t, result.FailedBatches, 1)
	require.Equal(t, 1, result.FailedBatches[0])
}

func TestAssignedToNameHandlesStringAndObject(t *testing.T) {
	require.Equal(t, "alice", assignedToName("alice"))
	require.Equal(t, "Alice Smith", assignedToName(map[string]interface{}{"displayName": "Alice Smith"}))
	require.Equal(t, "", assignedToName(42))
}

func TestRawToDetailParsesFields(t *testing.T) {
	raw := rawWorkItem{
		ID: 7,
		Fields: map[string]interface{}{
			"System.Title":                           "Fix bug",
			"System.WorkItemType":                    "Bug",
			"System.State":                           "Active",
			"System.Tags":                            "a; b;c",
			"Microsoft.VSTS.Common.Priority":          float64(2),
			"Microsoft.VSTS.Scheduling.StoryPoints":   float64(3),
		},
	}
	d := rawToDetail(raw)
	require.Equal(t, int64(7), d.ID)
	require.Equal(t, "Fix bug", d.Title)
	require.Equal(t, 2, d.Priority)
	require.ElementsMatch(t, []string{"a", "b", "c"}, d.Tags)
	require.NotNil(t, d.StoryPoints)
}
