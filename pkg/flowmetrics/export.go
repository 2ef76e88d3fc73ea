// Package flowmetrics re-exports the flow-metrics calculation and reporting
// API for external consumers who want to embed it rather than shell out to
// the CLI.
package flowmetrics

import (
	flowconfig "github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	ingest "github.com/arjaygg/ado-flow-metrics/internal/ingest"
	metrics "github.com/arjaygg/ado-flow-metrics/internal/metrics"
	report "github.com/arjaygg/ado-flow-metrics/internal/report"
	workitem "github.com/arjaygg/ado-flow-metrics/internal/workitem"
)

type (
	// Config is the domain configuration (state classification, per-type
	// policy, calculation parameters).
	Config                 = flowconfig.Config
	StateConfiguration      = flowconfig.StateConfiguration
	TypePolicy              = flowconfig.TypePolicy
	CalculationParameters   = flowconfig.CalculationParameters

	WorkItem        = workitem.WorkItem
	StateTransition = workitem.StateTransition
	ValidationError = workitem.ValidationError

	Metrics              = metrics.Metrics
	DurationStats        = metrics.DurationStats
	ThroughputStats      = metrics.ThroughputStats
	WIPStats             = metrics.WIPStats
	FlowEfficiencyStats  = metrics.FlowEfficiencyStats
	TeamMemberMetrics    = metrics.TeamMemberMetrics
	LittlesLawValidation = metrics.LittlesLawValidation

	Report               = report.Report
	ConfigurationSummary = report.ConfigurationSummary
	Summary              = report.Summary
	DashboardData        = report.DashboardData

	Engine   = ingest.Engine
	Result   = ingest.Result
	Progress = ingest.Progress
	Phase    = ingest.Phase

	DemoSource = ingest.DemoSource
)

var (
	DefaultConfig             = flowconfig.Default
	DefaultStateConfiguration = flowconfig.DefaultStateConfiguration
	DefaultTypePolicy         = flowconfig.DefaultTypePolicy
	LoadConfig                = flowconfig.Load

	Calculate = metrics.Calculate

	BuildReport     = report.Build
	ProjectDashboard = report.Dashboard

	NewEngine     = ingest.NewEngine
	NewDemoSource = ingest.NewDemoSource
)

const (
	PhaseQuery      = ingest.PhaseQuery
	PhaseDetail     = ingest.PhaseDetail
	PhaseHistory    = ingest.PhaseHistory
	PhaseNormalize  = ingest.PhaseNormalize
	PhaseDone       = ingest.PhaseDone
)
