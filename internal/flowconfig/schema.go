// Copyright 2025 James Ross
package flowconfig

// workflowStatesSchema declares the two recognized shapes for
// workflow_states.json: an explicit stateMappings block, or a per-state
// stateCategories block with boolean flags. Either, both, or neither may be
// present; the extractor in extract.go merges whatever validates.
const workflowStatesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "stateMappings": {
      "type": "object",
      "properties": {
        "activeStates":     {"type": "array", "items": {"type": "string"}},
        "completionStates": {"type": "array", "items": {"type": "string"}},
        "blockedStates":    {"type": "array", "items": {"type": "string"}}
      },
      "additionalProperties": true
    },
    "stateCategories": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "isActive":         {"type": "boolean"},
          "isCompletedState": {"type": "boolean"},
          "isBlockedState":   {"type": "boolean"}
        },
        "additionalProperties": true
      }
    }
  },
  "additionalProperties": true
}`

// workItemTypesSchema declares work_item_types.json: a map from type name to
// policy fields.
const workItemTypesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "include_in_throughput":     {"type": "boolean"},
      "include_in_velocity":       {"type": "boolean"},
      "complexity_multiplier":     {"type": "number", "minimum": 0.1, "maximum": 10.0},
      "lead_time_threshold_days":  {"type": "number"},
      "cycle_time_threshold_days": {"type": "number"}
    },
    "additionalProperties": true
  }
}`

// calculationParametersSchema declares calculation_parameters.json.
const calculationParametersSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "throughput_period_days": {"type": "integer", "minimum": 1},
    "default_lookback_days":  {"type": "integer", "minimum": 1},
    "percentiles": {
      "type": "array",
      "items": {"type": "integer", "enum": [50, 75, 85, 95]}
    }
  },
  "additionalProperties": true
}`
