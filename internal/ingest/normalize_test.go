// Copyright 2025 James Ross
package ingest

import (
	"testing"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/azuredevops"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeRejectsClosedBeforeCreated(t *testing.T) {
	closed := day(1)
	detail := azuredevops.Detail{ID: 42, State: "Done", CreatedDate: day(5), ClosedDate: &closed}
	item, verr := Normalize(detail, nil, flowconfig.DefaultStateConfiguration())
	require.Nil(t, item)
	require.NotNil(t, verr)
	require.Equal(t, int64(42), verr.ID)
	require.Equal(t, "temporal", verr.Kind)
}

func TestNormalizeRejectsHistoryEntryBeforeCreated(t *testing.T) {
	detail := azuredevops.Detail{ID: 42, State: "In Progress", CreatedDate: day(5)}
	history := []azuredevops.HistoryEntry{
		{State: "New", PreviousState: "New", ChangedDate: day(3)},
		{State: "In Progress", PreviousState: "New", ChangedDate: day(6)},
	}
	item, verr := Normalize(detail, history, flowconfig.DefaultStateConfiguration())
	require.Nil(t, item)
	require.NotNil(t, verr)
	require.Equal(t, int64(42), verr.ID)
	require.Equal(t, "temporal", verr.Kind)
}

func TestNormalizeSeedsFromHistoryFirstPreviousState(t *testing.T) {
	detail := azuredevops.Detail{ID: 1, State: "In Progress", CreatedDate: day(1)}
	history := []azuredevops.HistoryEntry{
		{State: "In Progress", PreviousState: "New", ChangedDate: day(2)},
	}
	item, verr := Normalize(detail, history, flowconfig.DefaultStateConfiguration())
	require.Nil(t, verr)
	require.Equal(t, "New", item.Transitions[0].State)
	require.Equal(t, "In Progress", item.Transitions[1].State)
	require.True(t, item.Transitions[0].ExitedDate.Equal(day(2)))
}

func TestNormalizeFallsBackToCurrentStateWithNoHistory(t *testing.T) {
	detail := azuredevops.Detail{ID: 1, State: "New", CreatedDate: day(1)}
	item, verr := Normalize(detail, nil, flowconfig.DefaultStateConfiguration())
	require.Nil(t, verr)
	require.Len(t, item.Transitions, 1)
	require.Equal(t, "New", item.Transitions[0].State)
	require.True(t, item.Transitions[0].Open())
}

func TestNormalizeCoalescesConsecutiveIdenticalStates(t *testing.T) {
	detail := azuredevops.Detail{ID: 1, State: "In Progress", CreatedDate: day(1)}
	history := []azuredevops.HistoryEntry{
		{State: "In Progress", PreviousState: "New", ChangedDate: day(2)},
		{State: "In Progress", PreviousState: "In Progress", ChangedDate: day(3)},
	}
	item, verr := Normalize(detail, history, flowconfig.DefaultStateConfiguration())
	require.Nil(t, verr)
	require.Len(t, item.Transitions, 2)
}

func TestNormalizeClosesTerminalTransitionAtClosedDate(t *testing.T) {
	closed := day(10)
	detail := azuredevops.Detail{ID: 1, State: "Done", CreatedDate: day(1), ClosedDate: &closed}
	history := []azuredevops.HistoryEntry{
		{State: "In Progress", PreviousState: "New", ChangedDate: day(2)},
		{State: "Done", PreviousState: "In Progress", ChangedDate: day(9)},
	}
	item, verr := Normalize(detail, history, flowconfig.DefaultStateConfiguration())
	require.Nil(t, verr)
	last := item.Transitions[len(item.Transitions)-1]
	require.Equal(t, "Done", last.State)
	require.False(t, last.Open())
	require.True(t, last.ExitedDate.Equal(day(10)))
	require.False(t, item.SyntheticCompletion)
}

func TestNormalizeAppendsSyntheticCompletionWhenNoCompletionState(t *testing.T) {
	closed := day(10)
	detail := azuredevops.Detail{ID: 1, State: "Cancelled", CreatedDate: day(1), ClosedDate: &closed}
	history := []azuredevops.HistoryEntry{
		{State: "Cancelled", PreviousState: "New", ChangedDate: day(5)},
	}
	item, verr := Normalize(detail, history, flowconfig.DefaultStateConfiguration())
	require.Nil(t, verr)
	last := item.Transitions[len(item.Transitions)-1]
	require.Equal(t, "Done", last.State)
	require.True(t, item.SyntheticCompletion)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	closed := day(10)
	detail := azuredevops.Detail{ID: 1, State: "Done", CreatedDate: day(1), ClosedDate: &closed}
	history := []azuredevops.HistoryEntry{
		{State: "In Progress", PreviousState: "New", ChangedDate: day(2)},
		{State: "Done", PreviousState: "In Progress", ChangedDate: day(9)},
	}
	states := flowconfig.DefaultStateConfiguration()
	a, _ := Normalize(detail, history, states)
	b, _ := Normalize(detail, history, states)
	require.Equal(t, a, b)
}
