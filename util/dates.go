package util

import "time"

// ReportDates holds the period boundaries used by the activity report. The
// federal fiscal year starts October 1.
type ReportDates struct {
	Now         time.Time
	FYStart     time.Time
	PrevFYStart time.Time
	PrevFYEnd   time.Time

	MonthStart     time.Time
	PrevMonthStart time.Time
	PrevMonthEnd   time.Time

	WeekStart     time.Time
	PrevWeekStart time.Time
	PrevWeekEnd   time.Time
}

// FiscalYearStart returns the start of the fiscal year containing t.
func FiscalYearStart(t time.Time) time.Time {
	t = t.UTC()
	year := t.Year()
	if t.Month() < time.October {
		year--
	}
	return time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
}

// NewReportDates computes all period boundaries relative to now. Weeks
// start on Sunday.
func NewReportDates(now time.Time) ReportDates {
	now = now.UTC()
	fyStart := FiscalYearStart(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -int(now.Weekday()))

	return ReportDates{
		Now:         now,
		FYStart:     fyStart,
		PrevFYStart: fyStart.AddDate(-1, 0, 0),
		PrevFYEnd:   fyStart.Add(-time.Second),

		MonthStart:     monthStart,
		PrevMonthStart: monthStart.AddDate(0, -1, 0),
		PrevMonthEnd:   monthStart.Add(-time.Second),

		WeekStart:     weekStart,
		PrevWeekStart: weekStart.AddDate(0, 0, -7),
		PrevWeekEnd:   weekStart.Add(-time.Second),
	}
}
