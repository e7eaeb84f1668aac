package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndash/vulndash-backend/store"
)

func TestActivityStatsCohortCounts(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		cohorts: store.Cohorts{
			Federal: []string{"FED-1"},
			SLTT:    []string{"STATE-1", "CITY-1"},
		},
		countTickets: func(f store.TicketFilter) int {
			if f.FalsePositive != nil && *f.FalsePositive {
				return 0
			}
			// Owner-scoped counts reflect the cohort size; the unscoped
			// count covers everything.
			if f.Owners == nil {
				return 10
			}
			return len(f.Owners) * 2
		},
	}
	svc := NewService(fs)

	stats, err := svc.ActivityStats(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.OpenTickets.Total)
	assert.Equal(t, 2, stats.OpenTickets.Federal)
	assert.Equal(t, 4, stats.OpenTickets.SLTT)
	// No private organizations enrolled: the count is zero, not the
	// unscoped total.
	assert.Equal(t, 0, stats.OpenTickets.Private)
	assert.Equal(t, CohortCounts{}, stats.OpenFalsePositives)
}

func TestActivityStatsPeriods(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		countTickets: func(f store.TicketFilter) int { return 1 },
	}
	svc := NewService(fs)

	stats, err := svc.ActivityStats(context.Background(), now)
	require.NoError(t, err)

	// FY 2026 runs from 2025-10-01; March is inside it.
	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), stats.CurrentFY.Start)
	assert.Equal(t, now, stats.CurrentFY.End)
	assert.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), stats.PreviousFY.Start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), stats.CurrentMonth.Start)
	// 2026-03-15 is a Sunday, so the week starts that day.
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), stats.CurrentWeek.Start)
}

func TestFiscalYearHistoryStopsAtEmptyYear(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	fy2026 := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	fy2025 := fy2026.AddDate(-1, 0, 0)
	counts := store.OpenTicketCounts{Low: 10, Medium: 10, High: 15, Critical: 5, Total: 40}
	fs := &fakeStore{
		countTickets: func(f store.TicketFilter) int {
			if f.OpenedFrom != nil {
				switch {
				case f.OpenedFrom.Equal(fy2026):
					return 40
				case f.OpenedFrom.Equal(fy2025):
					return 25
				default:
					// FY 2024 and earlier saw no activity.
					return 0
				}
			}
			if f.ClosedFrom != nil {
				return 7
			}
			return 0
		},
		breakdown: func(f store.TicketFilter) store.OpenTicketCounts {
			if f.OpenedFrom != nil && f.OpenedFrom.Equal(fy2026) {
				return counts
			}
			return store.OpenTicketCounts{Total: 25}
		},
		avgCVSS:    func(f store.TicketFilter) float64 { return 6.84 },
		openDuring: func(start, end time.Time) int { return 50 },
	}
	svc := NewService(fs)

	years, err := svc.fiscalYearHistory(context.Background(), now)
	require.NoError(t, err)

	// Newest first, stopping at the first fiscal year with no openings.
	require.Len(t, years, 2)
	assert.Equal(t, FiscalYearCounts{
		Year: 2026, Opened: 40, OpenAnyPoint: 50, Closed: 7,
		Severity:    counts,
		SeverityPct: SeverityPercentages{Low: 25, Medium: 25, High: 37.5, Critical: 12.5},
		AvgCVSS:     6.8,
	}, years[0])
	assert.Equal(t, 2025, years[1].Year)
	assert.Equal(t, 25, years[1].Opened)
	// No per-level counts, so every percentage is zero.
	assert.Equal(t, SeverityPercentages{}, years[1].SeverityPct)
}

func TestSeverityPercentages(t *testing.T) {
	pct := severityPercentages(store.OpenTicketCounts{Low: 1, Medium: 1, High: 0, Critical: 1, Total: 3})
	assert.Equal(t, SeverityPercentages{Low: 33.3, Medium: 33.3, High: 0, Critical: 33.3}, pct)

	// A zero denominator yields zero percentages across the board.
	assert.Equal(t, SeverityPercentages{}, severityPercentages(store.OpenTicketCounts{}))
}
