package metrics

import (
	"math"
	"time"

	"github.com/vulndash/vulndash-backend/model"
)

// OpenAges returns the age in whole days of every ticket, measured from
// time_opened to now and floored.
func OpenAges(tickets []model.Ticket, now time.Time) []int {
	ages := make([]int, 0, len(tickets))
	for i := range tickets {
		days := now.Sub(tickets[i].TimeOpened.UTC()).Hours() / 24
		if days < 0 {
			days = 0
		}
		ages = append(ages, int(math.Floor(days)))
	}
	return ages
}

// AgeHistogram counts tickets per whole-day age. The series runs from age
// zero through the maximum observed age with zeros for empty days. A
// positive cutoff folds every age >= cutoff into one final overflow
// bucket and appends two trailing zero entries so chart axes extend past
// the fold. No tickets yields an empty series.
func AgeHistogram(ages []int, cutoff int) []int {
	if len(ages) == 0 {
		return []int{}
	}
	max := 0
	for _, a := range ages {
		if a > max {
			max = a
		}
	}
	counts := make([]int, max+1)
	for _, a := range ages {
		counts[a]++
	}
	if cutoff <= 0 {
		return counts
	}

	head := counts
	overflow := 0
	if len(counts) > cutoff {
		head = counts[:cutoff]
		for _, n := range counts[cutoff:] {
			overflow += n
		}
	}
	out := make([]int, 0, len(head)+3)
	out = append(out, head...)
	out = append(out, overflow, 0, 0)
	return out
}
