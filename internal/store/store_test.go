// Copyright 2025 James Ross
package store

import (
	"testing"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadWorkItemsRoundTrips(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	items := []workitem.WorkItem{
		{ID: 1, Title: "a", CreatedDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, s.WriteWorkItems(items))

	got, err := s.ReadWorkItems()
	require.NoError(t, err)
	require.Equal(t, items, got)
}

func TestReadWorkItemsMissingFileReturnsError(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.ReadWorkItems()
	require.Error(t, err)
}

func TestWriteReportProducesBothArtifacts(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	report := map[string]string{"status": "ok"}
	dashboard := map[string]int{"item_count": 3}
	require.NoError(t, s.WriteReport(report, dashboard))

	raw, err := s.ReadReportBytes()
	require.NoError(t, err)
	require.Contains(t, string(raw), "ok")
}
