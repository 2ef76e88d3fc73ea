// Copyright 2025 James Ross
package flowconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the three configuration stores from dataDir/config/. Any store
// that is missing or fails schema validation falls back to its built-in
// default and sets the Degraded flag; this mirrors the source system's
// tolerance for absent or malformed configuration at the cost of a visible
// flag in the report rather than a startup failure.
func Load(dataDir string) (*Config, error) {
	cfg := &Config{
		WorkItemType: map[string]TypePolicy{},
	}

	states, degraded, note := loadStateConfiguration(filepath.Join(dataDir, "config", "workflow_states.json"))
	cfg.States = states
	if degraded {
		cfg.Degraded = true
		cfg.DegradedNotes = append(cfg.DegradedNotes, note)
	}
	if warnings := cfg.States.OverlapWarnings(); len(warnings) > 0 {
		cfg.DegradedNotes = append(cfg.DegradedNotes, warnings...)
	}

	types, degraded, note := loadWorkItemTypes(filepath.Join(dataDir, "config", "work_item_types.json"))
	cfg.WorkItemType = types
	if degraded {
		cfg.Degraded = true
		cfg.DegradedNotes = append(cfg.DegradedNotes, note)
	}

	params, degraded, note := loadCalculationParameters(filepath.Join(dataDir, "config", "calculation_parameters.json"))
	cfg.Calculation = params
	if degraded {
		cfg.Degraded = true
		cfg.DegradedNotes = append(cfg.DegradedNotes, note)
	}

	return cfg, nil
}

func loadStateConfiguration(path string) (StateConfiguration, bool, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultStateConfiguration(), true, fmt.Sprintf("workflow_states.json absent or unreadable: %v", err)
	}
	if err := validateAgainstSchema(workflowStatesSchema, data); err != nil {
		return DefaultStateConfiguration(), true, fmt.Sprintf("workflow_states.json invalid: %v", err)
	}
	raw, err := parseRawDocument(data)
	if err != nil {
		return DefaultStateConfiguration(), true, fmt.Sprintf("workflow_states.json unparseable: %v", err)
	}
	sc := extractStateConfiguration(raw)
	if len(sc.ActiveStates) == 0 && len(sc.CompletionStates) == 0 && len(sc.BlockedStates) == 0 {
		return DefaultStateConfiguration(), true, "workflow_states.json contained neither recognized shape"
	}
	return sc, false, ""
}

func loadWorkItemTypes(path string) (map[string]TypePolicy, bool, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]TypePolicy{}, true, fmt.Sprintf("work_item_types.json absent or unreadable: %v", err)
	}
	if err := validateAgainstSchema(workItemTypesSchema, data); err != nil {
		return map[string]TypePolicy{}, true, fmt.Sprintf("work_item_types.json invalid: %v", err)
	}
	var raw map[string]TypePolicy
	if err := json.Unmarshal(data, &raw); err != nil {
		return map[string]TypePolicy{}, true, fmt.Sprintf("work_item_types.json unparseable: %v", err)
	}
	for name, policy := range raw {
		if policy.ComplexityMultiplier == 0 {
			policy.ComplexityMultiplier = 1.0
			raw[name] = policy
		}
	}
	return raw, false, ""
}

func loadCalculationParameters(path string) (CalculationParameters, bool, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultCalculationParameters(), true, fmt.Sprintf("calculation_parameters.json absent or unreadable: %v", err)
	}
	if err := validateAgainstSchema(calculationParametersSchema, data); err != nil {
		return DefaultCalculationParameters(), true, fmt.Sprintf("calculation_parameters.json invalid: %v", err)
	}
	var params CalculationParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return DefaultCalculationParameters(), true, fmt.Sprintf("calculation_parameters.json unparseable: %v", err)
	}
	if params.ThroughputPeriodDays <= 0 {
		params.ThroughputPeriodDays = 30
	}
	if params.DefaultLookbackDays <= 0 {
		params.DefaultLookbackDays = 90
	}
	if len(params.Percentiles) == 0 {
		params.Percentiles = []int{50, 85, 95}
	}
	return params, false, ""
}
