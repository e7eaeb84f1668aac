package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndash/vulndash-backend/model"
)

func TestRiskyServiceNames(t *testing.T) {
	names := RiskyServiceNames()
	assert.Equal(t, []string{
		"bftp", "ftp", "microsoft-ds", "ms-wbt-server", "ni-ftp",
		"rsftp", "rtelnet", "smbdirect", "telnet", "tftp",
	}, names)
}

func TestFirstReportForMemoHit(t *testing.T) {
	when := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	memo := ReportTimeMemo{"snap1": when}
	calls := 0
	lookup := func(ctx context.Context, key string) (*time.Time, error) {
		calls++
		return nil, nil
	}

	got, err := FirstReportFor(context.Background(), memo, []string{"snap1", "snap2"}, lookup)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, when, *got)
	assert.Zero(t, calls)
}

func TestFirstReportForMemoizesFoundTimes(t *testing.T) {
	when := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	memo := ReportTimeMemo{}
	calls := map[string]int{}
	lookup := func(ctx context.Context, key string) (*time.Time, error) {
		calls[key]++
		if key == "snap2" {
			return &when, nil
		}
		return nil, nil
	}

	got, err := FirstReportFor(context.Background(), memo, []string{"snap1", "snap2"}, lookup)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, when, *got)

	// snap2 resolved and is memoized; snap1 had no report and is not, so a
	// later report can still surface.
	assert.Contains(t, memo, "snap2")
	assert.NotContains(t, memo, "snap1")

	got, err = FirstReportFor(context.Background(), memo, []string{"snap2"}, lookup)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, calls["snap2"])
}

func TestFirstReportForNoReports(t *testing.T) {
	lookup := func(ctx context.Context, key string) (*time.Time, error) { return nil, nil }
	got, err := FirstReportFor(context.Background(), ReportTimeMemo{}, []string{"a", "b"}, lookup)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFirstReportForLookupError(t *testing.T) {
	boom := errors.New("db down")
	lookup := func(ctx context.Context, key string) (*time.Time, error) { return nil, boom }
	_, err := FirstReportFor(context.Background(), ReportTimeMemo{}, []string{"a"}, lookup)
	assert.ErrorIs(t, err, boom)
}

func TestBuildOpenTicketRowsSeverityCategory(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	reported := now.AddDate(0, 0, -8)
	tickets := []model.Ticket{
		{
			Key: "t1", Owner: "ACME", IP: "10.0.0.1", Port: 443,
			TimeOpened: now.AddDate(0, 0, -10),
			Snapshots:  []string{"snap1"},
			Details:    model.TicketDetails{Name: "OpenSSL", CVE: "CVE-2026-0001", KEV: true, Severity: model.SeverityCritical},
		},
		{
			Key: "t2", Owner: "ACME", IP: "10.0.0.2", Port: 22,
			TimeOpened: now.AddDate(0, 0, -30),
			Details:    model.TicketDetails{Name: "OpenSSH", Severity: model.SeverityCritical},
		},
	}
	lookup := func(ctx context.Context, key string) (*time.Time, error) {
		if key == "snap1" {
			return &reported, nil
		}
		return nil, nil
	}

	rows, err := BuildOpenTicketRows(context.Background(), tickets, SeverityCategory(model.SeverityCritical), now, ReportTimeMemo{}, lookup, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Longest open first.
	assert.Equal(t, "t2", rows[0].ID)
	assert.Equal(t, 30.0, rows[0].DaysSinceFirstDetected)
	assert.Nil(t, rows[0].FirstReported)

	assert.Equal(t, "t1", rows[1].ID)
	assert.Equal(t, "CVE-2026-0001", rows[1].CVE)
	assert.True(t, rows[1].KEV)
	assert.Equal(t, model.SeverityCritical, rows[1].Severity)
	assert.Empty(t, rows[1].Service)
	require.NotNil(t, rows[1].FirstReported)
	assert.Equal(t, 8.0, *rows[1].DaysSinceFirstReported)
	assert.Equal(t, 2.0, *rows[1].DaysToReport)
}

func TestBuildOpenTicketRowsDerivesMissingSeverity(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tickets := []model.Ticket{
		{
			Key: "vec", Owner: "ACME", IP: "10.0.0.1", Port: 443,
			TimeOpened: now.AddDate(0, 0, -2),
			Details: model.TicketDetails{
				Name:       "Log4Shell",
				CVSSVector: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H",
			},
		},
		{
			Key: "score", Owner: "ACME", IP: "10.0.0.2", Port: 80,
			TimeOpened: now.AddDate(0, 0, -1),
			Details:    model.TicketDetails{Name: "Old import", CVSSBaseScore: 7.5},
		},
	}
	lookup := func(ctx context.Context, key string) (*time.Time, error) { return nil, nil }

	rows, err := BuildOpenTicketRows(context.Background(), tickets, UrgentCategory(), now, ReportTimeMemo{}, lookup, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Severity comes from the CVSS data when the scanner omitted it.
	assert.Equal(t, "vec", rows[0].ID)
	assert.Equal(t, model.SeverityCritical, rows[0].Severity)
	assert.Equal(t, "score", rows[1].ID)
	assert.Equal(t, model.SeverityHigh, rows[1].Severity)
}

func TestBuildOpenTicketRowsRiskyServices(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tickets := []model.Ticket{
		{
			Key: "t1", Owner: "ACME", IP: "10.0.0.1", Port: 21,
			TimeOpened: now.AddDate(0, 0, -3),
			Details:    model.TicketDetails{Name: "ftp open", Service: "ftp", Severity: model.SeverityLow},
		},
	}
	lookup := func(ctx context.Context, key string) (*time.Time, error) { return nil, nil }
	hostnames := map[string]string{"10.0.0.1": "ftp.example.gov"}

	rows, err := BuildOpenTicketRows(context.Background(), tickets, RiskyServicesCategory(), now, ReportTimeMemo{}, lookup, hostnames)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "ftp", rows[0].Service)
	assert.Equal(t, "FTP", rows[0].Category)
	assert.Equal(t, "ftp.example.gov", rows[0].Hostname)
	// Vulnerability columns stay empty for the service family.
	assert.Empty(t, rows[0].Name)
	assert.Empty(t, rows[0].CVE)
	assert.Zero(t, rows[0].Severity)
}

func TestBuildClosedTicketRows(t *testing.T) {
	opened := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	c1 := opened.AddDate(0, 0, 9)
	c2 := opened.AddDate(0, 0, 2)
	tickets := []model.Ticket{
		{Key: "late", TimeOpened: opened, TimeClosed: &c1, Details: model.TicketDetails{Severity: model.SeverityHigh}},
		{Key: "still-open", TimeOpened: opened},
		{Key: "early", TimeOpened: opened, TimeClosed: &c2, Details: model.TicketDetails{Severity: model.SeverityHigh}},
	}

	rows := BuildClosedTicketRows(tickets, SeverityCategory(model.SeverityHigh), nil)
	require.Len(t, rows, 2)

	// Close time ascending; tickets without a close time are dropped.
	assert.Equal(t, "early", rows[0].ID)
	assert.Equal(t, 2.0, rows[0].DaysToClose)
	assert.Equal(t, "late", rows[1].ID)
	assert.Equal(t, 9.0, rows[1].DaysToClose)
}
