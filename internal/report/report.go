// Copyright 2025 James Ross
package report

import (
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/metrics"
	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
	"github.com/google/uuid"
)

// ConfigurationSummary echoes the configuration state a report was computed
// under, so a consumer can tell a built-in-default run from one backed by
// real workflow_states/work_item_types/calculation_parameters files.
type ConfigurationSummary struct {
	Degraded       bool     `json:"degraded"`
	DegradedNotes  []string `json:"degraded_notes,omitempty"`
	ActiveStates   []string `json:"active_states"`
	CompletionStates []string `json:"completion_states"`
	BlockedStates  []string `json:"blocked_states"`
	ThroughputPeriodDays int `json:"throughput_period_days"`
}

// Summary is a human-oriented digest placed alongside the detailed metric
// bundle, the kind of thing a dashboard header or CLI table renders first.
type Summary struct {
	ItemCount        int      `json:"item_count"`
	ValidationErrorCount int  `json:"validation_error_count"`
	IngestionDegraded bool    `json:"ingestion_degraded"`
}

// Report is the top-level artifact written to flow_metrics_report.json and
// served by GET /api/metrics. It wraps the pure Metrics computation with
// run metadata the calculator itself never sees.
type Report struct {
	RunID               string               `json:"run_id"`
	GeneratedAt          time.Time            `json:"generated_at"`
	Metrics              metrics.Metrics      `json:"metrics"`
	Summary              Summary              `json:"summary"`
	ConfigurationSummary ConfigurationSummary `json:"configuration_summary"`
	ValidationErrors      []workitem.ValidationError `json:"validation_errors,omitempty"`
	FailedBatches         []int    `json:"failed_detail_batches,omitempty"`
	FailedHistoryItemIDs  []int64  `json:"failed_history_item_ids,omitempty"`
	Cancelled             bool     `json:"cancelled"`
}

// Build assembles a Report from a calculator result and the ingestion
// context that produced its input set.
func Build(m metrics.Metrics, cfg *flowconfig.Config, validationErrors []workitem.ValidationError, failedBatches []int, failedHistoryIDs []int64, cancelled bool, now time.Time) Report {
	return Report{
		RunID:       uuid.NewString(),
		GeneratedAt: now,
		Metrics:     m,
		Summary: Summary{
			ItemCount:            m.ItemCount,
			ValidationErrorCount: len(validationErrors),
			IngestionDegraded:    cfg.Degraded,
		},
		ConfigurationSummary: ConfigurationSummary{
			Degraded:             cfg.Degraded,
			DegradedNotes:        cfg.DegradedNotes,
			ActiveStates:         cfg.States.ActiveStates,
			CompletionStates:     cfg.States.CompletionStates,
			BlockedStates:        cfg.States.BlockedStates,
			ThroughputPeriodDays: cfg.Calculation.ThroughputPeriodDays,
		},
		ValidationErrors:     validationErrors,
		FailedBatches:        failedBatches,
		FailedHistoryItemIDs: failedHistoryIDs,
		Cancelled:            cancelled,
	}
}

// Dashboard projects a Report into the flattened shape dashboard_data.json
// stores.
func Dashboard(r Report) DashboardData {
	return DashboardData{
		GeneratedAt: r.GeneratedAt,
		ItemCount:   r.Metrics.ItemCount,
		Throughput:  r.Metrics.Throughput,
		WIP:         r.Metrics.WIP,
		Team:        r.Metrics.Team,
	}
}

// DashboardData is a flattened, dashboard-friendly projection of a report:
// the browser-facing variant dashboard_data.json stores. internal/store
// persists it as an opaque interface{}, so this is the only place its
// shape is defined.
type DashboardData struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	ItemCount   int                        `json:"item_count"`
	Throughput  metrics.ThroughputStats    `json:"throughput"`
	WIP         metrics.WIPStats           `json:"wip"`
	Team        []metrics.TeamMemberMetrics `json:"team"`
}
