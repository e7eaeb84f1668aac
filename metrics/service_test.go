package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndash/vulndash-backend/model"
	"github.com/vulndash/vulndash-backend/store"
)

// fakeStore satisfies Store with canned data. Tests override the fields
// they exercise; everything else returns zero values.
type fakeStore struct {
	orgs        []model.Organization
	orgsByKey   map[string]model.Organization
	descendants map[string][]string
	cohorts     store.Cohorts

	tickets       func(f store.TicketFilter) []model.Ticket
	countTickets  func(f store.TicketFilter) int
	severityPairs map[string]store.SeverityPair
	breakdown     func(f store.TicketFilter) store.OpenTicketCounts
	avgCVSS       func(f store.TicketFilter) float64
	openDuring    func(start, end time.Time) int

	addresses       int
	upHosts         int
	vulnerableHosts int
	hostnames       map[string]string

	snapshotStats []store.OrgSnapshots
	latest        []store.SnapshotWindow
	reportTimes   map[string]time.Time
	reportCount   func(f store.ReportFilter) int
	firstSeen     []store.FirstSeenCount
	queues        store.QueueCounts
}

func (f *fakeStore) StakeholderOrgs(ctx context.Context) ([]model.Organization, error) {
	return f.orgs, nil
}

func (f *fakeStore) OrgsByKey(ctx context.Context, keys []string) ([]model.Organization, error) {
	out := make([]model.Organization, 0, len(keys))
	for _, k := range keys {
		if org, ok := f.orgsByKey[k]; ok {
			out = append(out, org)
		}
	}
	return out, nil
}

func (f *fakeStore) AllDescendants(ctx context.Context, root string) ([]string, error) {
	return f.descendants[root], nil
}

func (f *fakeStore) OwnerCohorts(ctx context.Context) (store.Cohorts, error) {
	return f.cohorts, nil
}

func (f *fakeStore) Tickets(ctx context.Context, filter store.TicketFilter) ([]model.Ticket, error) {
	if f.tickets == nil {
		return nil, nil
	}
	return f.tickets(filter), nil
}

func (f *fakeStore) CountTickets(ctx context.Context, filter store.TicketFilter) (int, error) {
	if f.countTickets == nil {
		return 0, nil
	}
	return f.countTickets(filter), nil
}

func (f *fakeStore) SeverityPairCounts(ctx context.Context, owners []string) (store.SeverityPair, error) {
	var pair store.SeverityPair
	for _, o := range owners {
		p := f.severityPairs[o]
		pair.Critical += p.Critical
		pair.High += p.High
	}
	return pair, nil
}

func (f *fakeStore) SeverityBreakdown(ctx context.Context, filter store.TicketFilter) (store.OpenTicketCounts, error) {
	if f.breakdown == nil {
		return store.OpenTicketCounts{}, nil
	}
	return f.breakdown(filter), nil
}

func (f *fakeStore) AverageCVSS(ctx context.Context, filter store.TicketFilter) (float64, error) {
	if f.avgCVSS == nil {
		return 0, nil
	}
	return f.avgCVSS(filter), nil
}

func (f *fakeStore) OpenSeverityCounts(ctx context.Context, owners []string) (store.OpenTicketCounts, error) {
	if f.breakdown == nil {
		return store.OpenTicketCounts{}, nil
	}
	return f.breakdown(store.TicketFilter{Owners: owners}), nil
}

func (f *fakeStore) OpenDuringWindowCount(ctx context.Context, start, end time.Time) (int, error) {
	if f.openDuring == nil {
		return 0, nil
	}
	return f.openDuring(start, end), nil
}

func (f *fakeStore) DistinctVulnerableHosts(ctx context.Context, owners []string) (int, error) {
	return f.vulnerableHosts, nil
}

func (f *fakeStore) FirstSeenCounts(ctx context.Context) ([]store.FirstSeenCount, error) {
	return f.firstSeen, nil
}

func (f *fakeStore) AddressCount(ctx context.Context, owners []string) (int, error) {
	return f.addresses, nil
}

func (f *fakeStore) UpHostCount(ctx context.Context, owners []string) (int, error) {
	return f.upHosts, nil
}

func (f *fakeStore) HostnamesByIPInt(ctx context.Context, ipInts []int64) (map[string]string, error) {
	return f.hostnames, nil
}

func (f *fakeStore) ScannerQueueCounts(ctx context.Context) (store.QueueCounts, error) {
	return f.queues, nil
}

func (f *fakeStore) OrgSnapshotStats(ctx context.Context) ([]store.OrgSnapshots, error) {
	return f.snapshotStats, nil
}

func (f *fakeStore) LatestSnapshots(ctx context.Context) ([]store.SnapshotWindow, error) {
	return f.latest, nil
}

func (f *fakeStore) FirstReportTime(ctx context.Context, snapshotKey string) (*time.Time, error) {
	if t, ok := f.reportTimes[snapshotKey]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeStore) ReportCount(ctx context.Context, filter store.ReportFilter) (int, error) {
	if f.reportCount == nil {
		return 0, nil
	}
	return f.reportCount(filter), nil
}

func TestTicketSeverityCountsRollsUpAndSorts(t *testing.T) {
	fs := &fakeStore{
		orgs: []model.Organization{
			{Key: "BETA", Name: "Beta Agency", Stakeholder: true},
			{Key: "ACME", Name: "Acme Dept", Stakeholder: true, Children: []string{"ACME-SUB"}},
		},
		descendants: map[string][]string{
			"ACME": {"ACME-SUB"},
		},
		severityPairs: map[string]store.SeverityPair{
			"ACME":     {Critical: 2, High: 1},
			"ACME-SUB": {Critical: 3, High: 0},
			"BETA":     {Critical: 4, High: 9},
		},
	}
	svc := NewService(fs)

	rows, err := svc.TicketSeverityCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// ACME absorbs its descendant's counts (2+3 criticals) and outranks
	// BETA's 4.
	assert.Equal(t, OrgSeverityCount{OrgID: "ACME", Name: "Acme Dept", Critical: 5, High: 1}, rows[0])
	assert.Equal(t, OrgSeverityCount{OrgID: "BETA", Name: "Beta Agency", Critical: 4, High: 9}, rows[1])
}

func TestTicketSeverityCountsTieBreaksOnName(t *testing.T) {
	fs := &fakeStore{
		orgs: []model.Organization{
			{Key: "Z", Name: "Zulu", Stakeholder: true},
			{Key: "A", Name: "Alpha", Stakeholder: true},
		},
		severityPairs: map[string]store.SeverityPair{
			"Z": {Critical: 1, High: 1},
			"A": {Critical: 1, High: 1},
		},
	}
	svc := NewService(fs)

	rows, err := svc.TicketSeverityCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].Name)
	assert.Equal(t, "Zulu", rows[1].Name)
}

func TestCohortSeverityCountsFiltersStakeholders(t *testing.T) {
	fs := &fakeStore{
		descendants: map[string][]string{
			model.OrgRootElection: {"EL-1", "EL-2"},
		},
		orgsByKey: map[string]model.Organization{
			"EL-1": {Key: "EL-1", Name: "County One", Stakeholder: true},
			"EL-2": {Key: "EL-2", Name: "County Two"},
		},
		severityPairs: map[string]store.SeverityPair{
			"EL-1": {Critical: 1},
			"EL-2": {Critical: 7},
		},
	}
	svc := NewService(fs)

	rows, err := svc.CohortSeverityCounts(context.Background(), model.OrgRootElection)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EL-1", rows[0].OrgID)
}

func TestCohortSeverityCountsEmptyCohort(t *testing.T) {
	svc := NewService(&fakeStore{})
	rows, err := svc.CohortSeverityCounts(context.Background(), model.OrgRootElection)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOverallMetrics(t *testing.T) {
	fs := &fakeStore{
		orgs: []model.Organization{
			{Key: "A", Stakeholder: true},
			{Key: "B", Stakeholder: true},
		},
		addresses:       1000,
		upHosts:         120,
		vulnerableHosts: 34,
		breakdown: func(f store.TicketFilter) store.OpenTicketCounts {
			return store.OpenTicketCounts{Low: 1, Medium: 2, High: 3, Critical: 4, Total: 10}
		},
		reportCount: func(f store.ReportFilter) int {
			if f.ReportType != "CYHY" {
				return -1
			}
			return 17
		},
	}
	svc := NewService(fs)

	m, err := svc.OverallMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SummaryMetrics{
		Stakeholders:    2,
		Addresses:       1000,
		UpHosts:         120,
		VulnerableHosts: 34,
		OpenTickets:     store.OpenTicketCounts{Low: 1, Medium: 2, High: 3, Critical: 4, Total: 10},
		Reports:         17,
	}, m)
}

func TestSeverityAgeCurveFilter(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -5)
	var captured store.TicketFilter
	fs := &fakeStore{
		descendants: map[string][]string{
			model.OrgRootExecutive: {"FED-1", "FED-2"},
		},
		tickets: func(f store.TicketFilter) []model.Ticket {
			captured = f
			return []model.Ticket{{Open: true, TimeOpened: start}}
		},
	}
	svc := NewService(fs)

	curve, err := svc.SeverityAgeCurve(context.Background(), model.SeverityCritical, start, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"FED-1", "FED-2"}, captured.Owners)
	assert.Equal(t, "nessus", captured.Source)
	require.NotNil(t, captured.Severity)
	assert.Equal(t, model.SeverityCritical, *captured.Severity)
	require.NotNil(t, captured.FalsePositive)
	assert.False(t, *captured.FalsePositive)
	require.NotNil(t, captured.ClosedSinceOrStillOpen)

	require.Len(t, curve.Days, 6)
	assert.Nil(t, curve.Mid)
	assert.Equal(t, 1, curve.Total[len(curve.Total)-1])
}

func TestRemediationCurveAttachesBacklog(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -3)
	fs := &fakeStore{
		descendants: map[string][]string{
			model.OrgRootExecutive: {"FED-1"},
		},
		tickets: func(f store.TicketFilter) []model.Ticket {
			if f.OpenedAtOrBefore != nil {
				// Backlog population query.
				return []model.Ticket{{Open: true, TimeOpened: start.AddDate(0, 0, -30)}}
			}
			return []model.Ticket{{Open: true, TimeOpened: start}}
		},
	}
	svc := NewService(fs)

	curve, err := svc.RemediationCurve(context.Background(), start, now)
	require.NoError(t, err)
	require.NotNil(t, curve.Mid)
	require.NotNil(t, curve.Backlog)
	assert.Equal(t, len(curve.Days), len(curve.Backlog))
	// The lone backlog ticket is still open and never burns down.
	for _, n := range curve.Backlog {
		assert.Equal(t, 1, n)
	}
}

func TestOpenTicketsRiskyServicesResolvesHostnames(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		descendants: map[string][]string{
			model.OrgRootExecutive: {"FED-1"},
		},
		tickets: func(f store.TicketFilter) []model.Ticket {
			return []model.Ticket{{
				Key: "t1", Owner: "FED-1", IP: "10.0.0.1", IPInt: 167772161, Port: 23,
				TimeOpened: now.AddDate(0, 0, -2),
				Details:    model.TicketDetails{Service: "telnet", Severity: model.SeverityLow},
			}}
		},
		hostnames: map[string]string{"10.0.0.1": "legacy.example.gov"},
	}
	svc := NewService(fs)

	rows, err := svc.OpenTickets(context.Background(), RiskyServicesCategory(), now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Telnet", rows[0].Category)
	assert.Equal(t, "legacy.example.gov", rows[0].Hostname)
}

func TestCategoryFilterShapes(t *testing.T) {
	svc := NewService(&fakeStore{})

	f := svc.categoryFilter(SeverityCategory(model.SeverityHigh), []string{"A"}, true)
	assert.Equal(t, "nessus", f.Source)
	require.NotNil(t, f.Severity)
	assert.Equal(t, model.SeverityHigh, *f.Severity)
	assert.False(t, f.UrgentOr)

	f = svc.categoryFilter(UrgentCategory(), []string{"A"}, true)
	assert.Equal(t, "nessus", f.Source)
	assert.True(t, f.UrgentOr)
	assert.Nil(t, f.Severity)

	f = svc.categoryFilter(RiskyServicesCategory(), []string{"A"}, false)
	assert.Empty(t, f.Source)
	assert.Equal(t, RiskyServiceNames(), f.Services)
	require.NotNil(t, f.Open)
	assert.False(t, *f.Open)
}

func TestRiskRankingsResolvesNames(t *testing.T) {
	fs := &fakeStore{
		snapshotStats: []store.OrgSnapshots{
			{Owner: "ACME", Snapshots: []model.Snapshot{{
				Vulnerabilities: model.SeverityVector{Critical: 3},
			}}},
		},
		orgsByKey: map[string]model.Organization{
			"ACME": {Key: "ACME", Name: "Acme Dept"},
		},
	}
	svc := NewService(fs)

	r, err := svc.RiskRankings(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Overall, 1)
	assert.Equal(t, "Acme Dept", r.Overall[0].Name)
}
