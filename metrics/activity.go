package metrics

import (
	"context"
	"time"

	"github.com/vulndash/vulndash-backend/store"
	"github.com/vulndash/vulndash-backend/util"
)

// CohortCounts is one count broken out by reporting cohort.
type CohortCounts struct {
	Total   int `json:"total"`
	Federal int `json:"federal"`
	SLTT    int `json:"sltt"`
	Private int `json:"private"`
}

// PeriodActivity summarizes one reporting period: tickets opened and
// closed within it and reports generated during it.
type PeriodActivity struct {
	Start   time.Time    `json:"start"`
	End     time.Time    `json:"end"`
	Opened  CohortCounts `json:"opened"`
	Closed  CohortCounts `json:"closed"`
	Reports CohortCounts `json:"reports"`
}

// SeverityPercentages is a severity histogram expressed as percentages of
// its total, rounded to one decimal. A zero total yields all zeros, never
// a NaN.
type SeverityPercentages struct {
	Low      float64 `json:"low_pct"`
	Medium   float64 `json:"medium_pct"`
	High     float64 `json:"high_pct"`
	Critical float64 `json:"critical_pct"`
}

func severityPercentages(c store.OpenTicketCounts) SeverityPercentages {
	if c.Total == 0 {
		return SeverityPercentages{}
	}
	pct := func(n int) float64 {
		return util.Round1(float64(n) / float64(c.Total) * 100)
	}
	return SeverityPercentages{
		Low:      pct(c.Low),
		Medium:   pct(c.Medium),
		High:     pct(c.High),
		Critical: pct(c.Critical),
	}
}

// FiscalYearCounts summarizes one federal fiscal year of ticket activity.
// OpenAnyPoint counts tickets that were open at any moment of the year,
// including carryover from earlier years. Severity and AvgCVSS cover the
// tickets opened within the year.
type FiscalYearCounts struct {
	Year         int                    `json:"fiscal_year"`
	Opened       int                    `json:"opened"`
	OpenAnyPoint int                    `json:"open_at_any_point"`
	Closed       int                    `json:"closed"`
	Severity     store.OpenTicketCounts `json:"severity"`
	SeverityPct  SeverityPercentages    `json:"severity_pct"`
	AvgCVSS      float64                `json:"avg_cvss_score"`
}

// ActivityStats is the operational activity report: current open-ticket
// standing by cohort, all-time severity breakdowns, per-fiscal-year
// history, and the six standard reporting periods.
type ActivityStats struct {
	OpenTickets        CohortCounts `json:"open_tickets"`
	OpenFalsePositives CohortCounts `json:"open_false_positives"`

	AllTimeOpened store.OpenTicketCounts `json:"all_time_opened"`
	AllTimeOpen   store.OpenTicketCounts `json:"all_time_open"`
	AllTimeClosed store.OpenTicketCounts `json:"all_time_closed"`

	FiscalYears []FiscalYearCounts `json:"fiscal_years"`

	CurrentFY     PeriodActivity `json:"current_fy"`
	PreviousFY    PeriodActivity `json:"previous_fy"`
	CurrentMonth  PeriodActivity `json:"current_month"`
	PreviousMonth PeriodActivity `json:"previous_month"`
	CurrentWeek   PeriodActivity `json:"current_week"`
	PreviousWeek  PeriodActivity `json:"previous_week"`
}

// The fiscal-year back-scan stops at the first empty year; this floor
// bounds it even against pathological data.
var activityScanFloor = time.Date(2000, time.October, 1, 0, 0, 0, 0, time.UTC)

// ActivityStats builds the full activity report as of now.
func (s *Service) ActivityStats(ctx context.Context, now time.Time) (*ActivityStats, error) {
	cohorts, err := s.store.OwnerCohorts(ctx)
	if err != nil {
		return nil, err
	}
	dates := util.NewReportDates(now)
	out := &ActivityStats{}

	if out.OpenTickets, err = s.cohortTicketCounts(ctx, cohorts, store.TicketFilter{
		Open: boolPtr(true), FalsePositive: boolPtr(false),
	}); err != nil {
		return nil, err
	}
	if out.OpenFalsePositives, err = s.cohortTicketCounts(ctx, cohorts, store.TicketFilter{
		Open: boolPtr(true), FalsePositive: boolPtr(true),
	}); err != nil {
		return nil, err
	}

	allTime := store.TicketFilter{Source: "nessus", FalsePositive: boolPtr(false)}
	if out.AllTimeOpened, err = s.store.SeverityBreakdown(ctx, allTime); err != nil {
		return nil, err
	}
	openOnly := allTime
	openOnly.Open = boolPtr(true)
	if out.AllTimeOpen, err = s.store.SeverityBreakdown(ctx, openOnly); err != nil {
		return nil, err
	}
	closedOnly := allTime
	closedOnly.Open = boolPtr(false)
	if out.AllTimeClosed, err = s.store.SeverityBreakdown(ctx, closedOnly); err != nil {
		return nil, err
	}

	if out.FiscalYears, err = s.fiscalYearHistory(ctx, now); err != nil {
		return nil, err
	}

	periods := []struct {
		dst        *PeriodActivity
		start, end time.Time
	}{
		{&out.CurrentFY, dates.FYStart, dates.Now},
		{&out.PreviousFY, dates.PrevFYStart, dates.PrevFYEnd},
		{&out.CurrentMonth, dates.MonthStart, dates.Now},
		{&out.PreviousMonth, dates.PrevMonthStart, dates.PrevMonthEnd},
		{&out.CurrentWeek, dates.WeekStart, dates.Now},
		{&out.PreviousWeek, dates.PrevWeekStart, dates.PrevWeekEnd},
	}
	for _, p := range periods {
		if *p.dst, err = s.periodActivity(ctx, cohorts, p.start, p.end); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// cohortTicketCounts counts tickets matching the base filter overall and
// per reporting cohort.
func (s *Service) cohortTicketCounts(ctx context.Context, cohorts store.Cohorts, base store.TicketFilter) (CohortCounts, error) {
	var c CohortCounts
	var err error
	if c.Total, err = s.store.CountTickets(ctx, base); err != nil {
		return CohortCounts{}, err
	}
	perCohort := []struct {
		dst    *int
		owners []string
	}{
		{&c.Federal, cohorts.Federal},
		{&c.SLTT, cohorts.SLTT},
		{&c.Private, cohorts.Private},
	}
	for _, pc := range perCohort {
		f := base
		f.Owners = pc.owners
		if len(pc.owners) == 0 {
			f.Owners = []string{}
		}
		if *pc.dst, err = s.store.CountTickets(ctx, f); err != nil {
			return CohortCounts{}, err
		}
	}
	return c, nil
}

func (s *Service) periodActivity(ctx context.Context, cohorts store.Cohorts, start, end time.Time) (PeriodActivity, error) {
	p := PeriodActivity{Start: start, End: end}
	var err error

	opened := store.TicketFilter{
		Source: "nessus", FalsePositive: boolPtr(false),
		OpenedFrom: &start, OpenedAtOrBefore: &end,
	}
	if p.Opened, err = s.cohortTicketCounts(ctx, cohorts, opened); err != nil {
		return PeriodActivity{}, err
	}

	closed := store.TicketFilter{
		Source: "nessus", FalsePositive: boolPtr(false),
		ClosedFrom: &start, ClosedAtOrBefore: &end,
	}
	if p.Closed, err = s.cohortTicketCounts(ctx, cohorts, closed); err != nil {
		return PeriodActivity{}, err
	}

	reports := []struct {
		dst    *int
		owners []string
	}{
		{&p.Reports.Total, nil},
		{&p.Reports.Federal, cohorts.Federal},
		{&p.Reports.SLTT, cohorts.SLTT},
		{&p.Reports.Private, cohorts.Private},
	}
	for _, r := range reports {
		owners := r.owners
		if owners == nil && r.dst != &p.Reports.Total {
			owners = []string{}
		}
		if *r.dst, err = s.store.ReportCount(ctx, store.ReportFilter{
			Owners: owners, ReportType: "CYHY", Start: &start, End: &end,
		}); err != nil {
			return PeriodActivity{}, err
		}
	}
	return p, nil
}

// fiscalYearHistory scans backward from the current fiscal year and stops
// at the first year with no ticket openings. Years come back newest
// first.
func (s *Service) fiscalYearHistory(ctx context.Context, now time.Time) ([]FiscalYearCounts, error) {
	var out []FiscalYearCounts
	for fyStart := util.FiscalYearStart(now); fyStart.After(activityScanFloor); fyStart = fyStart.AddDate(-1, 0, 0) {
		fyEnd := fyStart.AddDate(1, 0, 0)
		base := store.TicketFilter{Source: "nessus", FalsePositive: boolPtr(false)}

		opened := base
		opened.OpenedFrom = &fyStart
		opened.OpenedBefore = &fyEnd
		nOpened, err := s.store.CountTickets(ctx, opened)
		if err != nil {
			return nil, err
		}
		if nOpened == 0 {
			break
		}

		anyPoint, err := s.store.OpenDuringWindowCount(ctx, fyStart, fyEnd)
		if err != nil {
			return nil, err
		}

		severity, err := s.store.SeverityBreakdown(ctx, opened)
		if err != nil {
			return nil, err
		}
		avgCVSS, err := s.store.AverageCVSS(ctx, opened)
		if err != nil {
			return nil, err
		}

		closed := base
		closed.ClosedFrom = &fyStart
		closed.ClosedBefore = &fyEnd
		nClosed, err := s.store.CountTickets(ctx, closed)
		if err != nil {
			return nil, err
		}

		out = append(out, FiscalYearCounts{
			Year:         fyEnd.Year(),
			Opened:       nOpened,
			OpenAnyPoint: anyPoint,
			Closed:       nClosed,
			Severity:     severity,
			SeverityPct:  severityPercentages(severity),
			AvgCVSS:      util.Round1(avgCVSS),
		})
	}
	return out, nil
}
