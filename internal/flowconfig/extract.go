// Copyright 2025 James Ross
package flowconfig

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/PaesslerAG/jsonpath"
	"github.com/xeipuuv/gojsonschema"
)

func validateAgainstSchema(schemaJSON string, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("document does not match schema: %v", msgs)
	}
	return nil
}

// extractStateConfiguration merges the stateMappings and stateCategories
// shapes found in a raw JSON document. Both shapes contribute to the final
// sets; a state need only appear under one shape to be classified.
func extractStateConfiguration(raw map[string]interface{}) StateConfiguration {
	active := map[string]bool{}
	completion := map[string]bool{}
	blocked := map[string]bool{}

	if vals, err := jsonpath.Get("$.stateMappings.activeStates", raw); err == nil {
		addStrings(active, vals)
	}
	if vals, err := jsonpath.Get("$.stateMappings.completionStates", raw); err == nil {
		addStrings(completion, vals)
	}
	if vals, err := jsonpath.Get("$.stateMappings.blockedStates", raw); err == nil {
		addStrings(blocked, vals)
	}

	if cats, err := jsonpath.Get("$.stateCategories", raw); err == nil {
		if m, ok := cats.(map[string]interface{}); ok {
			for state, flagsRaw := range m {
				flags, ok := flagsRaw.(map[string]interface{})
				if !ok {
					continue
				}
				if b, _ := flags["isActive"].(bool); b {
					active[state] = true
				}
				if b, _ := flags["isCompletedState"].(bool); b {
					completion[state] = true
				}
				if b, _ := flags["isBlockedState"].(bool); b {
					blocked[state] = true
				}
			}
		}
	}

	return StateConfiguration{
		ActiveStates:     keys(active),
		CompletionStates: keys(completion),
		BlockedStates:    keys(blocked),
	}
}

func addStrings(set map[string]bool, vals interface{}) {
	list, ok := vals.([]interface{})
	if !ok {
		return
	}
	for _, v := range list {
		if s, ok := v.(string); ok {
			set[s] = true
		}
	}
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parseRawDocument(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
