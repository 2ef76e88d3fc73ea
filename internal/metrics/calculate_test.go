// Copyright 2025 James Ross
package metrics

import (
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func d(n int) time.Time { return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC) }

func closedItem(id int64, created, activeAt, closedAt time.Time, assignee, itemType string) workitem.WorkItem {
	c := closedAt
	active := activeAt
	return workitem.WorkItem{
		ID: id, Type: itemType, CurrentState: "Done",
		AssignedTo: assignee, CreatedDate: created, ClosedDate: &c,
		Transitions: []workitem.StateTransition{
			{State: "New", EnteredDate: created, ExitedDate: &active, DurationHours: hoursPtr(active.Sub(created))},
			{State: "In Progress", EnteredDate: active, ExitedDate: &c, DurationHours: hoursPtr(c.Sub(active))},
			{State: "Done", EnteredDate: c, ExitedDate: &c, DurationHours: hoursPtr(0)},
		},
	}
}

func hoursPtr(dur time.Duration) *float64 {
	h := dur.Hours()
	return &h
}

var _ = Describe("Calculate", func() {
	var cfg *flowconfig.Config

	BeforeEach(func() {
		cfg = flowconfig.Default()
	})

	Describe("lead time", func() {
		It("aggregates closed_date - created_date for completed throughput-eligible items", func() {
			items := []workitem.WorkItem{
				closedItem(1, d(1), d(2), d(11), "alice", "Task"),
				closedItem(2, d(1), d(2), d(6), "bob", "Task"),
			}
			m := Calculate(items, cfg, d(30), nil)
			Expect(m.LeadTime.Count).To(Equal(2))
			Expect(*m.LeadTime.Mean).To(BeNumerically("~", 7.5, 0.1))
		})

		It("excludes items whose type opts out of throughput", func() {
			cfg.WorkItemType = map[string]flowconfig.TypePolicy{
				"Spike": {IncludeInThroughput: false, IncludeInVelocity: false, ComplexityMultiplier: 1},
			}
			items := []workitem.WorkItem{closedItem(1, d(1), d(2), d(11), "alice", "Spike")}
			m := Calculate(items, cfg, d(30), nil)
			Expect(m.LeadTime.Count).To(Equal(0))
		})

		It("includes a synthetic-completion item even though its current_state never reached a completion state", func() {
			closed := d(11)
			item := workitem.WorkItem{
				ID: 3, Type: "Task", CurrentState: "Cancelled",
				CreatedDate: d(1), ClosedDate: &closed,
				SyntheticCompletion: true,
				Transitions: []workitem.StateTransition{
					{State: "New", EnteredDate: d(1), ExitedDate: timePtr(d(2)), DurationHours: hoursPtr(d(2).Sub(d(1)))},
					{State: "Cancelled", EnteredDate: d(2), ExitedDate: timePtr(closed), DurationHours: hoursPtr(closed.Sub(d(2)))},
					{State: "Done", EnteredDate: closed, ExitedDate: &closed, DurationHours: hoursPtr(0)},
				},
			}
			m := Calculate([]workitem.WorkItem{item}, cfg, d(30), nil)
			Expect(m.LeadTime.Count).To(Equal(1))
			Expect(*m.LeadTime.Mean).To(BeNumerically("~", 10.0, 0.1))
			Expect(m.Throughput.CompletedCount).To(Equal(1))
		})
	})

	Describe("cycle time", func() {
		It("measures first active entry to first completion entry", func() {
			items := []workitem.WorkItem{closedItem(1, d(1), d(2), d(12), "alice", "Task")}
			m := Calculate(items, cfg, d(30), nil)
			Expect(m.CycleTime.Count).To(Equal(1))
			Expect(*m.CycleTime.Mean).To(BeNumerically("~", 10.0, 0.1))
		})

		It("excludes active-but-not-complete items", func() {
			active := workitem.WorkItem{
				ID: 2, Type: "Task", CurrentState: "In Progress", CreatedDate: d(1),
				Transitions: []workitem.StateTransition{
					{State: "New", EnteredDate: d(1), ExitedDate: timePtr(d(2))},
					{State: "In Progress", EnteredDate: d(2)},
				},
			}
			m := Calculate([]workitem.WorkItem{active}, cfg, d(30), nil)
			Expect(m.CycleTime.Count).To(Equal(0))
		})
	})

	Describe("WIP", func() {
		It("counts items in active states broken down by state, and totals equal the sum", func() {
			items := []workitem.WorkItem{
				{ID: 1, CurrentState: "In Progress", CreatedDate: d(1)},
				{ID: 2, CurrentState: "In Review", CreatedDate: d(1)},
				{ID: 3, CurrentState: "In Progress", CreatedDate: d(1)},
				{ID: 4, CurrentState: "Blocked", CreatedDate: d(1)},
			}
			m := Calculate(items, cfg, d(30), nil)
			Expect(m.WIP.ByState["In Progress"]).To(Equal(2))
			Expect(m.WIP.ByState["In Review"]).To(Equal(1))
			Expect(m.WIP.BlockedTotal).To(Equal(1))

			sum := 0
			for _, c := range m.WIP.ByState {
				sum += c
			}
			Expect(m.WIP.Total).To(Equal(sum))
		})
	})

	Describe("flow efficiency", func() {
		It("excludes items that never entered an active state", func() {
			neverActive := workitem.WorkItem{
				ID: 1, CurrentState: "New", CreatedDate: d(1),
				Transitions: []workitem.StateTransition{{State: "New", EnteredDate: d(1)}},
			}
			m := Calculate([]workitem.WorkItem{neverActive}, cfg, d(30), nil)
			Expect(m.FlowEfficiency.ItemsConsidered).To(Equal(0))
			Expect(m.FlowEfficiency.ItemsExcluded).To(Equal(1))
			Expect(m.FlowEfficiency.Average).To(BeNil())
		})

		It("computes active hours over total elapsed hours for a completed item", func() {
			items := []workitem.WorkItem{closedItem(1, d(1), d(2), d(3), "alice", "Task")}
			m := Calculate(items, cfg, d(30), nil)
			Expect(m.FlowEfficiency.ItemsConsidered).To(Equal(1))
			Expect(*m.FlowEfficiency.Average).To(BeNumerically(">", 0))
			Expect(*m.FlowEfficiency.Average).To(BeNumerically("<=", 1))
		})
	})

	Describe("team metrics", func() {
		It("groups by assignee and computes completion rate", func() {
			items := []workitem.WorkItem{
				closedItem(1, d(1), d(2), d(5), "alice", "Task"),
				{ID: 2, CurrentState: "In Progress", AssignedTo: "alice", CreatedDate: d(1),
					Transitions: []workitem.StateTransition{{State: "In Progress", EnteredDate: d(1)}}},
			}
			m := Calculate(items, cfg, d(30), nil)
			Expect(m.Team).To(HaveLen(1))
			Expect(m.Team[0].Assignee).To(Equal("alice"))
			Expect(m.Team[0].CompletedCount).To(Equal(1))
			Expect(m.Team[0].ActiveCount).To(Equal(1))
			Expect(*m.Team[0].CompletionRate).To(BeNumerically("~", 0.5, 0.01))
		})

		It("filters by a fuzzy-matched allow-list", func() {
			items := []workitem.WorkItem{
				closedItem(1, d(1), d(2), d(5), "alice", "Task"),
				closedItem(2, d(1), d(2), d(5), "zed", "Task"),
			}
			m := Calculate(items, cfg, d(30), []string{"alice"})
			Expect(m.Team).To(HaveLen(1))
			Expect(m.Team[0].Assignee).To(Equal("alice"))
		})
	})

	Describe("median of an empty sample", func() {
		It("is nil, never zero", func() {
			m := Calculate(nil, cfg, d(30), nil)
			Expect(m.LeadTime.Median).To(BeNil())
		})
	})

	Describe("determinism", func() {
		It("returns a bitwise identical result across repeated calls", func() {
			items := []workitem.WorkItem{
				closedItem(1, d(1), d(2), d(11), "alice", "Task"),
				closedItem(2, d(1), d(3), d(20), "bob", "Bug"),
			}
			a := Calculate(items, cfg, d(30), nil)
			b := Calculate(items, cfg, d(30), nil)
			Expect(a).To(Equal(b))
		})
	})
})

func timePtr(t time.Time) *time.Time { return &t }
