// Package metrics implements the aggregation core of the dashboard:
// temporal age bucketing, backlog burn-down, severity rollups, age
// histograms, first-seen grouping, and risk ranking. Everything here is
// pure computation over ticket and snapshot data fetched by the store.
package metrics

import (
	"fmt"
	"time"

	"github.com/vulndash/vulndash-backend/model"
)

// GraphStartDate is the earliest day any age curve reaches back to; no
// ticket data exists before it.
var GraphStartDate = time.Date(2015, time.May, 21, 0, 0, 0, 0, time.UTC)

// Default bucket cutoffs, in days.
const (
	SeverityAgeCutoff     = 30
	MaxAgeCutoff          = 60
	CriticalAgeHistCutoff = 180
	HighAgeHistCutoff     = 360
)

// ProjectedClose returns the assumed close instant for a still-open
// ticket: one day past now. Treating open tickets as closing tomorrow lets
// a single time_closed comparison decide open-on-day uniformly, and keeps
// every open ticket counted on today's data point.
func ProjectedClose(now time.Time) time.Time {
	return now.Add(24 * time.Hour)
}

// StartOfDay truncates t to its UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AgeCurve is one day-indexed bucketed time series. Mid is nil for curves
// built with a single cutoff, Backlog is nil unless a burn-down was
// attached. For every day, Young+Mid+Old == Total.
type AgeCurve struct {
	Days    []time.Time
	Cutoffs []int
	Young   []int
	Mid     []int
	Old     []int
	Total   []int
	Backlog []int
}

// ComputeAgeBuckets walks each UTC day from start through end and counts
// how many of the given tickets were open on that day, split into age
// buckets. One cutoff c yields young (age < c) and old (age >= c); two
// cutoffs c1 < c2 add a mid bucket for [c1, c2).
//
// A ticket is open on day d when it opened at or before d's last instant
// and its effective close falls after d's first instant. Age on day d is
// measured from the later of time_opened and baseline (pass the zero time
// for no baseline), so curves anchored to a directive's issuance date do
// not credit pre-existing exposure.
func ComputeAgeBuckets(tickets []model.Ticket, start, end time.Time, cutoffs []int, baseline time.Time, now time.Time) (*AgeCurve, error) {
	if len(cutoffs) < 1 || len(cutoffs) > 2 {
		return nil, fmt.Errorf("age buckets: want 1 or 2 cutoffs, got %d", len(cutoffs))
	}
	if cutoffs[0] <= 0 || (len(cutoffs) == 2 && cutoffs[1] <= cutoffs[0]) {
		return nil, fmt.Errorf("age buckets: cutoffs %v not positive ascending", cutoffs)
	}
	first := StartOfDay(start)
	last := StartOfDay(end)
	if last.Before(first) {
		return nil, fmt.Errorf("age buckets: end %s before start %s", last.Format("2006-01-02"), first.Format("2006-01-02"))
	}

	threeBuckets := len(cutoffs) == 2
	lowCut := time.Duration(cutoffs[0]) * 24 * time.Hour
	var highCut time.Duration
	if threeBuckets {
		highCut = time.Duration(cutoffs[1]) * 24 * time.Hour
	}

	nDays := int(last.Sub(first).Hours()/24) + 1
	curve := &AgeCurve{
		Days:    make([]time.Time, 0, nDays),
		Cutoffs: cutoffs,
		Young:   make([]int, nDays),
		Old:     make([]int, nDays),
		Total:   make([]int, nDays),
	}
	if threeBuckets {
		curve.Mid = make([]int, nDays)
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		curve.Days = append(curve.Days, d)
	}

	projected := ProjectedClose(now)
	for i := range tickets {
		t := &tickets[i]
		opened := t.TimeOpened.UTC()
		closed := t.EffectiveClose(projected).UTC()
		ageFrom := opened
		if baseline.After(ageFrom) {
			ageFrom = baseline.UTC()
		}
		for di, day := range curve.Days {
			dayEnd := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
			if opened.After(dayEnd) {
				// Days are ascending, so the ticket misses every later day too.
				break
			}
			if !closed.After(day) {
				continue
			}
			age := day.Sub(ageFrom)
			switch {
			case age < lowCut:
				curve.Young[di]++
			case threeBuckets && age < highCut:
				curve.Mid[di]++
			default:
				curve.Old[di]++
			}
			curve.Total[di]++
		}
	}
	return curve, nil
}

// AttachBacklog computes the burn-down of a fixed ticket population over
// the curve's days and stores it on the curve. The remaining count on day
// d is the population minus every ticket whose effective close day is at
// or before d; still-open tickets project past the curve and never burn
// down.
func (c *AgeCurve) AttachBacklog(population []model.Ticket, now time.Time) {
	projected := ProjectedClose(now)
	c.Backlog = make([]int, len(c.Days))
	for i := range c.Backlog {
		c.Backlog[i] = len(population)
	}
	for i := range population {
		closeDay := StartOfDay(population[i].EffectiveClose(projected))
		for di, day := range c.Days {
			if !closeDay.After(day) {
				c.Backlog[di]--
			}
		}
	}
}
