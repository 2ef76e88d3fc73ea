// Copyright 2025 James Ross
package report

import (
	"testing"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/metrics"
	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
	"github.com/stretchr/testify/require"
)

func TestBuildEchoesConfigurationSummary(t *testing.T) {
	cfg := flowconfig.Default()
	cfg.Degraded = true
	cfg.DegradedNotes = []string{"workflow_states.json missing"}

	m := metrics.Metrics{ItemCount: 2}
	verrs := []workitem.ValidationError{{ID: 42, Kind: "temporal"}}

	r := Build(m, cfg, verrs, []int{1}, []int64{99}, false, time.Now().UTC())

	require.NotEmpty(t, r.RunID)
	require.True(t, r.ConfigurationSummary.Degraded)
	require.Equal(t, cfg.States.ActiveStates, r.ConfigurationSummary.ActiveStates)
	require.Equal(t, 1, r.Summary.ValidationErrorCount)
	require.Equal(t, []int{1}, r.FailedBatches)
}

func TestDashboardProjectsReportFields(t *testing.T) {
	m := metrics.Metrics{ItemCount: 5, Throughput: metrics.ThroughputStats{CompletedCount: 3}}
	r := Build(m, flowconfig.Default(), nil, nil, nil, false, time.Now().UTC())

	dash := Dashboard(r)
	require.Equal(t, 5, dash.ItemCount)
	require.Equal(t, 3, dash.Throughput.CompletedCount)
}
