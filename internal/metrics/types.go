// Copyright 2025 James Ross
package metrics

// DurationStats aggregates a sample of day-valued durations (lead time,
// cycle time). Median is nil for an empty sample, never zero. Percentiles
// are keyed by the configured percentile list (e.g. "p85", "p95").
type DurationStats struct {
	Count       int                `json:"count"`
	Mean        *float64           `json:"mean"`
	Median      *float64           `json:"median"`
	Min         *float64           `json:"min"`
	Max         *float64           `json:"max"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// ThroughputStats reports completions within the configured sliding window.
type ThroughputStats struct {
	PeriodDays    int     `json:"period_days"`
	CompletedCount int    `json:"completed_count"`
	ItemsPerDay   float64 `json:"items_per_day"`
}

// WIPStats is a point-in-time snapshot at report generation.
type WIPStats struct {
	Total       int            `json:"total"`
	ByState     map[string]int `json:"by_state"`
	BlockedTotal int           `json:"blocked_total"`
}

// FlowEfficiencyStats averages the per-item active/elapsed ratio over items
// for which it is defined.
type FlowEfficiencyStats struct {
	Average       *float64 `json:"average"`
	ItemsConsidered int    `json:"items_considered"`
	ItemsExcluded   int    `json:"items_excluded"`
}

// TeamMemberMetrics is one assignee's slice of the flow metrics.
type TeamMemberMetrics struct {
	Assignee            string   `json:"assignee"`
	CompletedCount      int      `json:"completed_count"`
	ActiveCount         int      `json:"active_count"`
	AverageLeadTimeDays *float64 `json:"average_lead_time_days"`
	AverageCycleTimeDays *float64 `json:"average_cycle_time_days"`
	CompletionRate       *float64 `json:"completion_rate"`
	WeightedVelocity     float64  `json:"weighted_velocity"`
}

// LittlesLawValidation is diagnostic only; no corrective action is taken on
// its result.
type LittlesLawValidation struct {
	ArrivalRatePerDay    *float64 `json:"arrival_rate_per_day"`
	AverageWIP           *float64 `json:"average_wip"`
	AverageCycleTimeDays *float64 `json:"average_cycle_time_days"`
	PredictedCycleTimeDays *float64 `json:"predicted_cycle_time_days"`
	DeviationPercent     *float64 `json:"deviation_percent"`
}

// Metrics is the full pure-computation result the calculator produces from
// a normalized work-item set plus configuration. It carries no metadata
// about how or when it was produced; that belongs to the report wrapper.
type Metrics struct {
	LeadTime       DurationStats         `json:"lead_time_days"`
	CycleTime      DurationStats         `json:"cycle_time_days"`
	Throughput     ThroughputStats       `json:"throughput"`
	WIP            WIPStats              `json:"wip"`
	FlowEfficiency FlowEfficiencyStats   `json:"flow_efficiency"`
	Team           []TeamMemberMetrics   `json:"team"`
	LittlesLaw     LittlesLawValidation  `json:"littles_law"`
	ItemCount      int                   `json:"item_count"`
}
