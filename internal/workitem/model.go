// Copyright 2025 James Ross
package workitem

import "time"

// StateTransition is an interval during which an item sat in a particular
// state. Only the last transition in a sequence may be open (ExitedDate
// zero).
type StateTransition struct {
	State         string     `json:"state"`
	EnteredDate   time.Time  `json:"entered_date"`
	ExitedDate    *time.Time `json:"exited_date,omitempty"`
	DurationHours *float64   `json:"duration_hours,omitempty"`
}

// Open reports whether this transition has not yet been closed.
func (t StateTransition) Open() bool { return t.ExitedDate == nil }

// Close sets ExitedDate and derives DurationHours.
func (t *StateTransition) Close(at time.Time) {
	t.ExitedDate = &at
	d := at.Sub(t.EnteredDate).Hours()
	t.DurationHours = &d
}

// WorkItem is the canonical, post-normalization record the calculator
// consumes. Instances are immutable once produced by the normalizer.
type WorkItem struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Type         string            `json:"type"`
	CurrentState string            `json:"current_state"`
	AssignedTo   string            `json:"assigned_to"`
	CreatedDate  time.Time         `json:"created_date"`
	ClosedDate   *time.Time        `json:"closed_date,omitempty"`
	Priority     int               `json:"priority"`
	StoryPoints  *float64          `json:"story_points,omitempty"`
	EffortHours  *float64          `json:"effort_hours,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Sprint       string            `json:"sprint,omitempty"`
	Transitions  []StateTransition `json:"transitions"`

	// SyntheticCompletion is set when the normalizer appended a synthetic
	// "Done" transition because a closed_date was present but no history
	// entry reached a completion state.
	SyntheticCompletion bool `json:"synthetic_completion,omitempty"`
}

// ValidationError describes a work item dropped by the normalizer.
type ValidationError struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Note string `json:"note,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Note != "" {
		return e.Note
	}
	return e.Kind
}

// FirstEntryInto returns the entered_date of the first transition whose
// state is a member of states, and ok=true if one exists.
func (w WorkItem) FirstEntryInto(states map[string]bool) (time.Time, bool) {
	for _, t := range w.Transitions {
		if states[t.State] {
			return t.EnteredDate, true
		}
	}
	return time.Time{}, false
}

// IsTerminalCompletion reports whether the item's terminal transition is a
// completion state, or the normalizer appended a synthetic one because
// closed_date was present with no completing history entry. A synthetic
// completion still counts: the item has a closed_date and the source
// system considers it done even though no tracked state reached the
// configured completion set.
func (w WorkItem) IsTerminalCompletion(completionStates map[string]bool) bool {
	if w.SyntheticCompletion {
		return true
	}
	if len(w.Transitions) == 0 {
		return false
	}
	return completionStates[w.Transitions[len(w.Transitions)-1].State]
}
