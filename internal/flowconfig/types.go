// Copyright 2025 James Ross
package flowconfig

// StateConfiguration classifies workflow states into the three buckets the
// calculator reasons over. Sets may overlap only by configuration error; the
// loader flags overlaps rather than silently resolving them.
type StateConfiguration struct {
	ActiveStates     []string `json:"active_states"`
	CompletionStates []string `json:"completion_states"`
	BlockedStates    []string `json:"blocked_states"`
}

func (sc StateConfiguration) activeSet() map[string]bool     { return toSet(sc.ActiveStates) }
func (sc StateConfiguration) completionSet() map[string]bool { return toSet(sc.CompletionStates) }
func (sc StateConfiguration) blockedSet() map[string]bool    { return toSet(sc.BlockedStates) }

// IsActive reports whether state is classified active.
func (sc StateConfiguration) IsActive(state string) bool { return sc.activeSet()[state] }

// IsCompletion reports whether state is classified completed.
func (sc StateConfiguration) IsCompletion(state string) bool { return sc.completionSet()[state] }

// IsBlocked reports whether state is classified blocked.
func (sc StateConfiguration) IsBlocked(state string) bool { return sc.blockedSet()[state] }

// ActiveSet returns the active-state membership set, for callers (the
// calculator) that need repeated lookups without recomputing per call.
func (sc StateConfiguration) ActiveSet() map[string]bool { return sc.activeSet() }

// CompletionSet returns the completion-state membership set.
func (sc StateConfiguration) CompletionSet() map[string]bool { return sc.completionSet() }

// BlockedSet returns the blocked-state membership set.
func (sc StateConfiguration) BlockedSet() map[string]bool { return sc.blockedSet() }

// OverlapWarnings returns human-readable descriptions of states assigned to
// more than one bucket, which the loader treats as a configuration warning,
// not a fatal error.
func (sc StateConfiguration) OverlapWarnings() []string {
	var warnings []string
	active, completion, blocked := sc.activeSet(), sc.completionSet(), sc.blockedSet()
	for s := range active {
		if completion[s] {
			warnings = append(warnings, s+" is both active and completion")
		}
		if blocked[s] {
			warnings = append(warnings, s+" is both active and blocked")
		}
	}
	for s := range completion {
		if blocked[s] {
			warnings = append(warnings, s+" is both completion and blocked")
		}
	}
	return warnings
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

// DefaultStateConfiguration is the built-in fallback used when
// workflow_states.json is missing or malformed.
func DefaultStateConfiguration() StateConfiguration {
	return StateConfiguration{
		ActiveStates:     []string{"In Progress", "In Review", "Testing"},
		CompletionStates: []string{"Done", "Closed", "Resolved"},
		BlockedStates:    []string{"Blocked"},
	}
}

// TypePolicy governs how a work-item type participates in calculations.
type TypePolicy struct {
	IncludeInThroughput    bool     `json:"include_in_throughput"`
	IncludeInVelocity      bool     `json:"include_in_velocity"`
	ComplexityMultiplier   float64  `json:"complexity_multiplier"`
	LeadTimeThresholdDays  *float64 `json:"lead_time_threshold_days,omitempty"`
	CycleTimeThresholdDays *float64 `json:"cycle_time_threshold_days,omitempty"`
}

// DefaultTypePolicy is applied to work-item types absent from
// work_item_types.json.
func DefaultTypePolicy() TypePolicy {
	return TypePolicy{
		IncludeInThroughput:  true,
		IncludeInVelocity:    true,
		ComplexityMultiplier: 1.0,
	}
}

// CalculationParameters tunes the windows and percentile set the calculator reports.
type CalculationParameters struct {
	ThroughputPeriodDays int   `json:"throughput_period_days"`
	DefaultLookbackDays  int   `json:"default_lookback_days"`
	Percentiles          []int `json:"percentiles"`
}

// DefaultCalculationParameters is the built-in fallback.
func DefaultCalculationParameters() CalculationParameters {
	return CalculationParameters{
		ThroughputPeriodDays: 30,
		DefaultLookbackDays:  90,
		Percentiles:          []int{50, 85, 95},
	}
}

// Config aggregates the three logical configuration stores plus the
// degraded flag the report echoes when any store fell back to defaults.
type Config struct {
	States       StateConfiguration    `json:"-"`
	WorkItemType map[string]TypePolicy `json:"-"`
	Calculation  CalculationParameters `json:"-"`

	Degraded      bool     `json:"-"`
	DegradedNotes []string `json:"-"`
}

// PolicyFor returns the policy for typeName, falling back to the permissive
// default for unknown types.
func (c *Config) PolicyFor(typeName string) TypePolicy {
	if p, ok := c.WorkItemType[typeName]; ok {
		return p
	}
	return DefaultTypePolicy()
}

// Default returns a Config built entirely from the built-in defaults, with
// Degraded left false. Load does not call it: Load falls back per store and
// sets Degraded and DegradedNotes itself.
func Default() *Config {
	return &Config{
		States:       DefaultStateConfiguration(),
		WorkItemType: map[string]TypePolicy{},
		Calculation:  DefaultCalculationParameters(),
	}
}
