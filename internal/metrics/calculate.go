// Copyright 2025 James Ross
package metrics

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/obs"
	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Calculate is a pure function: for a fixed (items, cfg, now, allowList) it
// always returns a bitwise-identical Metrics value. now is an explicit
// parameter rather than time.Now() so callers get deterministic, testable
// output.
func Calculate(items []workitem.WorkItem, cfg *flowconfig.Config, now time.Time, allowList []string) Metrics {
	_, span := obs.StartCalculationSpan(context.Background(), len(items))
	defer span.End()

	m := Metrics{ItemCount: len(items)}

	leadTimes := make([]float64, 0, len(items))
	cycleTimes := make([]float64, 0, len(items))
	efficiencies := make([]float64, 0, len(items))
	efficiencyExcluded := 0

	wipByState := map[string]int{}
	blockedTotal := 0

	type teamAccum struct {
		completed, active int
		leadTimes         []float64
		cycleTimes        []float64
		weightedVelocity  float64
	}
	team := map[string]*teamAccum{}

	windowDays := cfg.Calculation.ThroughputPeriodDays
	if windowDays <= 0 {
		windowDays = 30
	}
	windowStart := now.AddDate(0, 0, -windowDays)
	completedInWindow := 0
	var windowCycleTimes []float64
	var wipOverlapHours float64

	for _, item := range items {
		policy := cfg.PolicyFor(item.Type)
		throughputEligible := policy.IncludeInThroughput && item.ClosedDate != nil && item.IsTerminalCompletion(cfg.States.CompletionSet())

		var leadDays, cycleDays float64
		var hasCycle bool

		if throughputEligible {
			leadDays = item.ClosedDate.Sub(item.CreatedDate).Hours() / 24
			leadTimes = append(leadTimes, leadDays)

			if activeEntry, ok := item.FirstEntryInto(cfg.States.ActiveSet()); ok {
				if completeEntry, ok := item.FirstEntryInto(cfg.States.CompletionSet()); ok {
					cycleDays = completeEntry.Sub(activeEntry).Hours() / 24
					hasCycle = true
					cycleTimes = append(cycleTimes, cycleDays)
				}
			}

			if item.ClosedDate.After(windowStart) && !item.ClosedDate.After(now) {
				completedInWindow++
				if hasCycle {
					windowCycleTimes = append(windowCycleTimes, cycleDays)
				}
			}
		}

		if cfg.States.IsActive(item.CurrentState) {
			wipByState[item.CurrentState]++
		}
		if cfg.States.IsBlocked(item.CurrentState) {
			blockedTotal++
		}

		wipOverlapHours += activeHoursInWindow(item, cfg.States, windowStart, now)

		if eff, ok := flowEfficiency(item, cfg.States, now); ok {
			efficiencies = append(efficiencies, eff)
		} else {
			efficiencyExcluded++
		}

		if matchesAllowList(item.AssignedTo, allowList) && item.AssignedTo != "" {
			acc, ok := team[item.AssignedTo]
			if !ok {
				acc = &teamAccum{}
				team[item.AssignedTo] = acc
			}
			if throughputEligible {
				acc.completed++
				acc.leadTimes = append(acc.leadTimes, leadDays)
				if hasCycle {
					acc.cycleTimes = append(acc.cycleTimes, cycleDays)
				}
				if policy.IncludeInVelocity {
					acc.weightedVelocity += policy.ComplexityMultiplier
				}
			}
			if cfg.States.IsActive(item.CurrentState) {
				acc.active++
			}
		}
	}

	m.LeadTime = buildDurationStats(leadTimes, cfg.Calculation.Percentiles)
	m.CycleTime = buildDurationStats(cycleTimes, cfg.Calculation.Percentiles)

	m.Throughput = ThroughputStats{
		PeriodDays:     windowDays,
		CompletedCount: completedInWindow,
		ItemsPerDay:    round1(float64(completedInWindow) / float64(windowDays)),
	}

	wipTotal := 0
	for _, c := range wipByState {
		wipTotal += c
	}
	m.WIP = WIPStats{Total: wipTotal, ByState: wipByState, BlockedTotal: blockedTotal}

	if avg, ok := mean(efficiencies); ok {
		r := round1(avg)
		m.FlowEfficiency = FlowEfficiencyStats{Average: &r, ItemsConsidered: len(efficiencies), ItemsExcluded: efficiencyExcluded}
	} else {
		m.FlowEfficiency = FlowEfficiencyStats{ItemsConsidered: 0, ItemsExcluded: efficiencyExcluded}
	}

	names := make([]string, 0, len(team))
	for name := range team {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		acc := team[name]
		tm := TeamMemberMetrics{Assignee: name, CompletedCount: acc.completed, ActiveCount: acc.active, WeightedVelocity: acc.weightedVelocity}
		if avg, ok := mean(acc.leadTimes); ok {
			r := round1(avg)
			tm.AverageLeadTimeDays = &r
		}
		if avg, ok := mean(acc.cycleTimes); ok {
			r := round1(avg)
			tm.AverageCycleTimeDays = &r
		}
		if denom := acc.completed + acc.active; denom > 0 {
			r := round1(float64(acc.completed) / float64(denom))
			tm.CompletionRate = &r
		}
		m.Team = append(m.Team, tm)
	}

	m.LittlesLaw = littlesLaw(float64(completedInWindow), float64(windowDays), wipOverlapHours, windowStart, now, windowCycleTimes)

	obs.FlowWIPTotal.Set(float64(wipTotal))
	obs.FlowThroughputCount.Set(float64(completedInWindow))

	return m
}

func buildDurationStats(values []float64, percentiles []int) DurationStats {
	stats := DurationStats{Count: len(values), Percentiles: map[string]float64{}}
	if avg, ok := mean(values); ok {
		r := round1(avg)
		stats.Mean = &r
	}
	if med, ok := median(values); ok {
		r := round1(med)
		stats.Median = &r
	}
	if lo, hi, ok := minMax(values); ok {
		rlo, rhi := round1(lo), round1(hi)
		stats.Min = &rlo
		stats.Max = &rhi
	}
	for _, p := range percentiles {
		if v, ok := percentile(values, float64(p)); ok {
			stats.Percentiles[percentileKey(p)] = round1(v)
		}
	}
	return stats
}

func percentileKey(p int) string {
	switch p {
	case 50:
		return "p50"
	case 85:
		return "p85"
	case 95:
		return "p95"
	default:
		return "p" + strconv.Itoa(p)
	}
}

// flowEfficiency computes the per-item active/elapsed ratio. An item that
// never entered an active state has no defined efficiency and is excluded,
// not zero-filled.
func flowEfficiency(item workitem.WorkItem, states flowconfig.StateConfiguration, now time.Time) (float64, bool) {
	firstActive, ok := item.FirstEntryInto(states.ActiveSet())
	if !ok {
		return 0, false
	}

	end := now
	if item.ClosedDate != nil {
		end = *item.ClosedDate
	}
	elapsed := end.Sub(firstActive).Hours()
	if elapsed <= 0 {
		return 0, false
	}

	var activeHours float64
	for _, t := range item.Transitions {
		if !states.IsActive(t.State) {
			continue
		}
		if t.DurationHours != nil {
			activeHours += *t.DurationHours
		} else {
			activeHours += end.Sub(t.EnteredDate).Hours()
		}
	}

	return activeHours / elapsed, true
}

// activeHoursInWindow returns the hours item spent in an active state that
// overlap [windowStart, windowEnd], used to compute a time-integrated
// average WIP for Little's Law rather than a single point-in-time count.
func activeHoursInWindow(item workitem.WorkItem, states flowconfig.StateConfiguration, windowStart, windowEnd time.Time) float64 {
	var hours float64
	for _, t := range item.Transitions {
		if !states.IsActive(t.State) {
			continue
		}
		exited := windowEnd
		if t.ExitedDate != nil {
			exited = *t.ExitedDate
		}
		start := t.EnteredDate
		if start.Before(windowStart) {
			start = windowStart
		}
		if exited.After(windowEnd) {
			exited = windowEnd
		}
		if exited.After(start) {
			hours += exited.Sub(start).Hours()
		}
	}
	return hours
}

func littlesLaw(completed, windowDays, wipOverlapHours float64, windowStart, windowEnd time.Time, cycleTimes []float64) LittlesLawValidation {
	var result LittlesLawValidation
	if windowDays <= 0 {
		return result
	}

	arrivalRate := completed / windowDays
	r := round1(arrivalRate)
	result.ArrivalRatePerDay = &r

	windowHours := windowEnd.Sub(windowStart).Hours()
	var avgWIP float64
	if windowHours > 0 {
		avgWIP = wipOverlapHours / windowHours
	}
	rWIP := round1(avgWIP)
	result.AverageWIP = &rWIP

	avgCycle, ok := mean(cycleTimes)
	if !ok || arrivalRate <= 0 {
		return result
	}
	rCycle := round1(avgCycle)
	result.AverageCycleTimeDays = &rCycle

	predicted := avgWIP / arrivalRate
	rPredicted := round1(predicted)
	result.PredictedCycleTimeDays = &rPredicted

	if avgCycle > 0 {
		deviation := ((predicted - avgCycle) / avgCycle) * 100
		rDeviation := round1(deviation)
		result.DeviationPercent = &rDeviation
	}

	return result
}

// matchesAllowList reports whether assignee should be included in team
// metrics. An empty allow-list means no filtering. Matching is fuzzy
// (subsequence, case/diacritic folded) so a caller-supplied roster doesn't
// need to spell assignee names exactly as the tracking service stores them.
func matchesAllowList(assignee string, allowList []string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, name := range allowList {
		if strings.EqualFold(name, assignee) {
			return true
		}
	}
	return len(fuzzy.RankFindNormalizedFold(assignee, allowList)) > 0
}
