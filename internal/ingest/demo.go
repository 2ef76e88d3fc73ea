// Copyright 2025 James Ross
package ingest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
)

// DemoSource generates a synthetic, deterministic set of canonical work
// items in place of a live Azure DevOps ingestion, for the CLI's demo
// subcommand and for exercising the calculator without network access.
type DemoSource struct {
	rand *rand.Rand
}

// NewDemoSource builds a DemoSource seeded for reproducible output across
// runs and machines.
func NewDemoSource(seed int64) *DemoSource {
	return &DemoSource{rand: rand.New(rand.NewSource(seed))}
}

var demoTypes = []string{"Bug", "Task", "User Story"}
var demoAssignees = []string{"alice", "bob", "carol", "dave"}

// Generate produces count synthetic work items spread over the last
// lookbackDays days, classified against states. Roughly two thirds of
// items are completed; the remainder are left active or blocked so WIP and
// flow-efficiency calculations have real data to operate on.
func (d *DemoSource) Generate(count, lookbackDays int, states flowconfig.StateConfiguration) []workitem.WorkItem {
	items := make([]workitem.WorkItem, 0, count)
	now := time.Now().UTC()

	active := pick(states.ActiveStates, "In Progress")
	completion := pick(states.CompletionStates, "Done")
	blocked := pick(states.BlockedStates, "Blocked")

	for i := 0; i < count; i++ {
		createdOffset := d.rand.Intn(lookbackDays + 1)
		created := now.AddDate(0, 0, -createdOffset)

		activeDelay := time.Duration(d.rand.Intn(48)+1) * time.Hour
		activeEntered := created.Add(activeDelay)

		transitions := []workitem.StateTransition{{State: "New", EnteredDate: created}}
		if activeEntered.Before(now) {
			prev := &transitions[len(transitions)-1]
			prev.Close(activeEntered)
			transitions = append(transitions, workitem.StateTransition{State: active, EnteredDate: activeEntered})
		}

		item := workitem.WorkItem{
			ID:           int64(1000 + i),
			Title:        fmt.Sprintf("Synthetic item %d", i),
			Type:         demoTypes[d.rand.Intn(len(demoTypes))],
			AssignedTo:   demoAssignees[d.rand.Intn(len(demoAssignees))],
			CreatedDate:  created,
			Priority:     d.rand.Intn(4) + 1,
			CurrentState: active,
		}

		roll := d.rand.Float64()
		switch {
		case roll < 0.65:
			closeDelay := time.Duration(d.rand.Intn(240)+24) * time.Hour
			closed := activeEntered.Add(closeDelay)
			if closed.After(now) {
				closed = now
			}
			last := &transitions[len(transitions)-1]
			last.Close(closed)
			transitions = append(transitions, workitem.StateTransition{State: completion, EnteredDate: closed, ExitedDate: &closed})
			item.ClosedDate = &closed
			item.CurrentState = completion
		case roll < 0.8:
			item.CurrentState = blocked
			blockedEntered := activeEntered.Add(12 * time.Hour)
			last := &transitions[len(transitions)-1]
			if last.Open() {
				last.Close(blockedEntered)
			}
			transitions = append(transitions, workitem.StateTransition{State: blocked, EnteredDate: blockedEntered})
		default:
			// stays active, last transition left open
		}

		item.Transitions = transitions
		points := float64(d.rand.Intn(8) + 1)
		item.StoryPoints = &points

		items = append(items, item)
	}
	return items
}

func pick(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}
