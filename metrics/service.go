package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vulndash/vulndash-backend/model"
	"github.com/vulndash/vulndash-backend/store"
)

// Store is the query surface the aggregation service needs. It is
// satisfied by *store.TicketStore; tests supply fakes.
type Store interface {
	StakeholderOrgs(ctx context.Context) ([]model.Organization, error)
	OrgsByKey(ctx context.Context, keys []string) ([]model.Organization, error)
	AllDescendants(ctx context.Context, root string) ([]string, error)
	OwnerCohorts(ctx context.Context) (store.Cohorts, error)

	Tickets(ctx context.Context, f store.TicketFilter) ([]model.Ticket, error)
	CountTickets(ctx context.Context, f store.TicketFilter) (int, error)
	SeverityPairCounts(ctx context.Context, owners []string) (store.SeverityPair, error)
	SeverityBreakdown(ctx context.Context, f store.TicketFilter) (store.OpenTicketCounts, error)
	AverageCVSS(ctx context.Context, f store.TicketFilter) (float64, error)
	OpenSeverityCounts(ctx context.Context, owners []string) (store.OpenTicketCounts, error)
	OpenDuringWindowCount(ctx context.Context, start, end time.Time) (int, error)
	DistinctVulnerableHosts(ctx context.Context, owners []string) (int, error)
	FirstSeenCounts(ctx context.Context) ([]store.FirstSeenCount, error)

	AddressCount(ctx context.Context, owners []string) (int, error)
	UpHostCount(ctx context.Context, owners []string) (int, error)
	HostnamesByIPInt(ctx context.Context, ipInts []int64) (map[string]string, error)
	ScannerQueueCounts(ctx context.Context) (store.QueueCounts, error)

	OrgSnapshotStats(ctx context.Context) ([]store.OrgSnapshots, error)
	LatestSnapshots(ctx context.Context) ([]store.SnapshotWindow, error)
	FirstReportTime(ctx context.Context, snapshotKey string) (*time.Time, error)
	ReportCount(ctx context.Context, f store.ReportFilter) (int, error)
}

// Service computes every dashboard aggregate from the store.
type Service struct {
	store Store
}

// NewService wraps a query store.
func NewService(st Store) *Service {
	return &Service{store: st}
}

func boolPtr(v bool) *bool { return &v }

func sevPtr(s model.Severity) *model.Severity { return &s }

//
// Severity rollups
//

// OrgSeverityCount is one row of the per-organization severity rollup.
type OrgSeverityCount struct {
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
	Critical int    `json:"critical"`
	High     int    `json:"high"`
}

// TicketSeverityCounts rolls up open critical and high ticket counts per
// stakeholder organization. A parent organization's counts include every
// descendant. Rows sort by critical descending, then high descending,
// then name, so the worst standing always tops the board.
func (s *Service) TicketSeverityCounts(ctx context.Context) ([]OrgSeverityCount, error) {
	orgs, err := s.store.StakeholderOrgs(ctx)
	if err != nil {
		return nil, err
	}
	return s.rollupOrgs(ctx, orgs)
}

// CohortSeverityCounts is the same rollup restricted to the stakeholder
// descendants of one grouping root, e.g. the executive-branch or election
// cohorts.
func (s *Service) CohortSeverityCounts(ctx context.Context, root string) ([]OrgSeverityCount, error) {
	keys, err := s.store.AllDescendants(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []OrgSeverityCount{}, nil
	}
	members, err := s.store.OrgsByKey(ctx, keys)
	if err != nil {
		return nil, err
	}
	stakeholders := members[:0]
	for _, org := range members {
		if org.Stakeholder {
			stakeholders = append(stakeholders, org)
		}
	}
	return s.rollupOrgs(ctx, stakeholders)
}

func (s *Service) rollupOrgs(ctx context.Context, orgs []model.Organization) ([]OrgSeverityCount, error) {
	rows := make([]OrgSeverityCount, 0, len(orgs))
	for _, org := range orgs {
		owners := []string{org.Key}
		if len(org.Children) > 0 {
			kids, err := s.store.AllDescendants(ctx, org.Key)
			if err != nil {
				return nil, fmt.Errorf("rollup %s: %w", org.Key, err)
			}
			owners = append(owners, kids...)
		}
		pair, err := s.store.SeverityPairCounts(ctx, owners)
		if err != nil {
			return nil, fmt.Errorf("rollup %s: %w", org.Key, err)
		}
		rows = append(rows, OrgSeverityCount{
			OrgID:    org.Key,
			Name:     org.Name,
			Critical: pair.Critical,
			High:     pair.High,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Critical != rows[j].Critical {
			return rows[i].Critical > rows[j].Critical
		}
		if rows[i].High != rows[j].High {
			return rows[i].High > rows[j].High
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

//
// Summary metrics
//

// SummaryMetrics is the headline counter block of a dashboard page.
type SummaryMetrics struct {
	Stakeholders    int                    `json:"stakeholders"`
	Addresses       int                    `json:"addresses"`
	UpHosts         int                    `json:"hosts"`
	VulnerableHosts int                    `json:"vulnerable_hosts"`
	OpenTickets     store.OpenTicketCounts `json:"open_tickets"`
	Reports         int                    `json:"reports"`
}

// OverallMetrics computes the headline counters across every organization.
func (s *Service) OverallMetrics(ctx context.Context) (SummaryMetrics, error) {
	orgs, err := s.store.StakeholderOrgs(ctx)
	if err != nil {
		return SummaryMetrics{}, err
	}
	m := SummaryMetrics{Stakeholders: len(orgs)}
	if m.Addresses, err = s.store.AddressCount(ctx, nil); err != nil {
		return SummaryMetrics{}, err
	}
	if m.UpHosts, err = s.store.UpHostCount(ctx, nil); err != nil {
		return SummaryMetrics{}, err
	}
	if m.VulnerableHosts, err = s.store.DistinctVulnerableHosts(ctx, nil); err != nil {
		return SummaryMetrics{}, err
	}
	if m.OpenTickets, err = s.store.OpenSeverityCounts(ctx, nil); err != nil {
		return SummaryMetrics{}, err
	}
	if m.Reports, err = s.store.ReportCount(ctx, store.ReportFilter{ReportType: "CYHY"}); err != nil {
		return SummaryMetrics{}, err
	}
	return m, nil
}

// CohortMetrics computes the headline counters over the descendants of one
// grouping root.
func (s *Service) CohortMetrics(ctx context.Context, root string) (SummaryMetrics, error) {
	owners, err := s.store.AllDescendants(ctx, root)
	if err != nil {
		return SummaryMetrics{}, err
	}
	if len(owners) == 0 {
		return SummaryMetrics{}, nil
	}
	members, err := s.store.OrgsByKey(ctx, owners)
	if err != nil {
		return SummaryMetrics{}, err
	}
	m := SummaryMetrics{}
	for _, org := range members {
		if org.Stakeholder {
			m.Stakeholders++
		}
	}
	if m.Addresses, err = s.store.AddressCount(ctx, owners); err != nil {
		return SummaryMetrics{}, err
	}
	if m.UpHosts, err = s.store.UpHostCount(ctx, owners); err != nil {
		return SummaryMetrics{}, err
	}
	if m.VulnerableHosts, err = s.store.DistinctVulnerableHosts(ctx, owners); err != nil {
		return SummaryMetrics{}, err
	}
	if m.OpenTickets, err = s.store.OpenSeverityCounts(ctx, owners); err != nil {
		return SummaryMetrics{}, err
	}
	if m.Reports, err = s.store.ReportCount(ctx, store.ReportFilter{Owners: owners, ReportType: "CYHY"}); err != nil {
		return SummaryMetrics{}, err
	}
	return m, nil
}

//
// Age curves
//

// executiveOwners expands the federal executive grouping; the tracked
// curves and urgent listings cover only those organizations.
func (s *Service) executiveOwners(ctx context.Context) ([]string, error) {
	owners, err := s.store.AllDescendants(ctx, model.OrgRootExecutive)
	if err != nil {
		return nil, fmt.Errorf("executive cohort: %w", err)
	}
	return owners, nil
}

// SeverityAgeCurve builds the two-bucket open-age curve for one severity
// level from start through today. The population is every
// executive-branch ticket of that severity still open, or closed after
// start; ages count from each ticket's own opening.
func (s *Service) SeverityAgeCurve(ctx context.Context, severity model.Severity, start, now time.Time) (*AgeCurve, error) {
	owners, err := s.executiveOwners(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.Tickets(ctx, store.TicketFilter{
		Owners:                 owners,
		Source:                 "nessus",
		Severity:               sevPtr(severity),
		FalsePositive:          boolPtr(false),
		ClosedSinceOrStillOpen: &start,
	})
	if err != nil {
		return nil, err
	}
	return ComputeAgeBuckets(tickets, start, now, []int{SeverityAgeCutoff}, time.Time{}, now)
}

// RemediationCurve builds the three-bucket critical-ticket curve tracking
// a remediation directive, ages measured from the directive's issuance
// (start) so pre-existing exposure is not credited against it, plus the
// burn-down of the backlog that existed at issuance.
func (s *Service) RemediationCurve(ctx context.Context, start, now time.Time) (*AgeCurve, error) {
	owners, err := s.executiveOwners(ctx)
	if err != nil {
		return nil, err
	}
	base := store.TicketFilter{
		Owners:                 owners,
		Source:                 "nessus",
		Severity:               sevPtr(model.SeverityCritical),
		FalsePositive:          boolPtr(false),
		ClosedSinceOrStillOpen: &start,
	}
	tickets, err := s.store.Tickets(ctx, base)
	if err != nil {
		return nil, err
	}
	curve, err := ComputeAgeBuckets(tickets, start, now, []int{SeverityAgeCutoff, MaxAgeCutoff}, start, now)
	if err != nil {
		return nil, err
	}

	backlogFilter := base
	backlogFilter.OpenedAtOrBefore = &start
	backlog, err := s.store.Tickets(ctx, backlogFilter)
	if err != nil {
		return nil, err
	}
	curve.AttachBacklog(backlog, now)
	return curve, nil
}

//
// Ticket listings
//

func (s *Service) categoryFilter(cat TicketCategory, owners []string, open bool) store.TicketFilter {
	f := store.TicketFilter{
		Owners:        owners,
		Open:          boolPtr(open),
		FalsePositive: boolPtr(false),
	}
	switch cat.Kind {
	case KindRiskyServices:
		f.Services = RiskyServiceNames()
	case KindUrgent:
		f.Source = "nessus"
		f.UrgentOr = true
	default:
		f.Source = "nessus"
		f.Severity = sevPtr(cat.Severity)
	}
	return f
}

func (s *Service) hostnamesFor(ctx context.Context, cat TicketCategory, tickets []model.Ticket) (map[string]string, error) {
	if cat.Kind != KindRiskyServices || len(tickets) == 0 {
		return nil, nil
	}
	ipInts := make([]int64, 0, len(tickets))
	for i := range tickets {
		ipInts = append(ipInts, tickets[i].IPInt)
	}
	return s.store.HostnamesByIPInt(ctx, ipInts)
}

// OpenTickets lists the currently-open executive-branch tickets of one
// category, longest-open first, with first-report dating resolved through
// a per-call memo.
func (s *Service) OpenTickets(ctx context.Context, cat TicketCategory, now time.Time) ([]OpenTicketRow, error) {
	owners, err := s.executiveOwners(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.Tickets(ctx, s.categoryFilter(cat, owners, true))
	if err != nil {
		return nil, err
	}
	hostnames, err := s.hostnamesFor(ctx, cat, tickets)
	if err != nil {
		return nil, err
	}
	memo := ReportTimeMemo{}
	return BuildOpenTicketRows(ctx, tickets, cat, now, memo, s.store.FirstReportTime, hostnames)
}

// ClosedTickets lists the executive-branch tickets of one category closed
// at or after since, oldest close first.
func (s *Service) ClosedTickets(ctx context.Context, cat TicketCategory, since time.Time) ([]ClosedTicketRow, error) {
	owners, err := s.executiveOwners(ctx)
	if err != nil {
		return nil, err
	}
	f := s.categoryFilter(cat, owners, false)
	f.ClosedFrom = &since
	tickets, err := s.store.Tickets(ctx, f)
	if err != nil {
		return nil, err
	}
	hostnames, err := s.hostnamesFor(ctx, cat, tickets)
	if err != nil {
		return nil, err
	}
	return BuildClosedTicketRows(tickets, cat, hostnames), nil
}

// OpenAgeHistogram counts the open tickets of one category per whole-day
// age. A positive cutoff folds the tail into one overflow bucket.
func (s *Service) OpenAgeHistogram(ctx context.Context, cat TicketCategory, cutoff int, now time.Time) ([]int, error) {
	owners, err := s.executiveOwners(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.Tickets(ctx, s.categoryFilter(cat, owners, true))
	if err != nil {
		return nil, err
	}
	return AgeHistogram(OpenAges(tickets, now), cutoff), nil
}

//
// Risk rankings and passthroughs
//

// RiskRankings ranks every organization with snapshot history; see
// RankOrganizations for the scoring model.
func (s *Service) RiskRankings(ctx context.Context) (RiskRankings, error) {
	stats, err := s.store.OrgSnapshotStats(ctx)
	if err != nil {
		return RiskRankings{}, err
	}
	keys := make([]string, 0, len(stats))
	for _, st := range stats {
		keys = append(keys, st.Owner)
	}
	names := map[string]string{}
	if len(keys) > 0 {
		orgs, err := s.store.OrgsByKey(ctx, keys)
		if err != nil {
			return RiskRankings{}, err
		}
		for _, org := range orgs {
			names[org.Key] = org.Name
		}
	}
	return RankOrganizations(stats, names), nil
}

// FirstSeen groups tickets by scanner finding with first-seen dating.
func (s *Service) FirstSeen(ctx context.Context) ([]store.FirstSeenCount, error) {
	return s.store.FirstSeenCounts(ctx)
}

// ScanWindows lists the most recent snapshot window per organization.
func (s *Service) ScanWindows(ctx context.Context) ([]store.SnapshotWindow, error) {
	return s.store.LatestSnapshots(ctx)
}

// QueueDepths reports the scanner work-queue depth vector.
func (s *Service) QueueDepths(ctx context.Context) (store.QueueCounts, error) {
	return s.store.ScannerQueueCounts(ctx)
}
