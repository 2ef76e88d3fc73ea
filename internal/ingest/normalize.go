// Copyright 2025 James Ross
package ingest

import (
	"github.com/arjaygg/ado-flow-metrics/internal/azuredevops"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
)

// Normalize merges a detail record with its ascending-ordered history into a
// canonical WorkItem. It is pure: the same (detail, history, states) always
// produces a bitwise-identical result.
//
// Returns a *workitem.ValidationError instead of a WorkItem when the item
// fails validation (closed_date before created_date, or any history entry
// changed_date before created_date); the caller drops the item and counts
// the error rather than treating it as fatal.
func Normalize(detail azuredevops.Detail, history []azuredevops.HistoryEntry, states flowconfig.StateConfiguration) (*workitem.WorkItem, *workitem.ValidationError) {
	if detail.ClosedDate != nil && detail.ClosedDate.Before(detail.CreatedDate) {
		return nil, &workitem.ValidationError{
			ID:   detail.ID,
			Kind: "temporal",
			Note: "closed_date before created_date",
		}
	}

	for _, h := range history {
		if h.ChangedDate.Before(detail.CreatedDate) {
			return nil, &workitem.ValidationError{
				ID:   detail.ID,
				Kind: "temporal",
				Note: "history entry changed_date before created_date",
			}
		}
	}

	createdState := detail.State
	if len(history) > 0 && history[0].PreviousState != "" {
		createdState = history[0].PreviousState
	}

	transitions := []workitem.StateTransition{{State: createdState, EnteredDate: detail.CreatedDate}}

	for _, h := range history {
		if h.State == "" {
			continue
		}
		open := &transitions[len(transitions)-1]
		if h.State == open.State {
			// Consecutive entries with identical state coalesce: no
			// zero-duration transition is emitted.
			continue
		}
		open.Close(h.ChangedDate)
		transitions = append(transitions, workitem.StateTransition{State: h.State, EnteredDate: h.ChangedDate})
	}

	synthetic := false
	if detail.ClosedDate != nil {
		open := &transitions[len(transitions)-1]
		if open.Open() {
			open.Close(*detail.ClosedDate)
		}
		if !anyCompletionState(transitions, states) {
			zero := 0.0
			transitions = append(transitions, workitem.StateTransition{
				State:         "Done",
				EnteredDate:   *detail.ClosedDate,
				ExitedDate:    detail.ClosedDate,
				DurationHours: &zero,
			})
			synthetic = true
		}
	}

	item := &workitem.WorkItem{
		ID:                  detail.ID,
		Title:               detail.Title,
		Type:                detail.Type,
		CurrentState:        detail.State,
		AssignedTo:          detail.AssignedTo,
		CreatedDate:         detail.CreatedDate,
		ClosedDate:          detail.ClosedDate,
		Priority:            detail.Priority,
		StoryPoints:         detail.StoryPoints,
		EffortHours:         detail.EffortHours,
		Tags:                detail.Tags,
		Sprint:              detail.Sprint,
		Transitions:         transitions,
		SyntheticCompletion: synthetic,
	}
	return item, nil
}

func anyCompletionState(transitions []workitem.StateTransition, states flowconfig.StateConfiguration) bool {
	for _, t := range transitions {
		if states.IsCompletion(t.State) {
			return true
		}
	}
	return false
}
