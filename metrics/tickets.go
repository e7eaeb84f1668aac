package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/vulndash/vulndash-backend/model"
	"github.com/vulndash/vulndash-backend/util"
)

// RiskyServicesMap translates scanner service names to the display label
// of the risky-service family they belong to.
var RiskyServicesMap = map[string]string{
	"bftp":          "FTP",
	"ftp":           "FTP",
	"microsoft-ds":  "SMB",
	"ms-wbt-server": "RDP",
	"ni-ftp":        "FTP",
	"rsftp":         "FTP",
	"rtelnet":       "Telnet",
	"smbdirect":     "SMB",
	"telnet":        "Telnet",
	"tftp":          "FTP",
}

// RiskyServiceNames returns the scanner-side service names, sorted, for
// use as a query filter.
func RiskyServiceNames() []string {
	names := make([]string, 0, len(RiskyServicesMap))
	for name := range RiskyServicesMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryKind selects which family of tickets a listing covers.
type CategoryKind int

const (
	// KindSeverity lists vulnerability tickets of one severity level.
	KindSeverity CategoryKind = iota
	// KindRiskyServices lists tickets for exposed high-risk services.
	KindRiskyServices
	// KindUrgent lists tickets that are KEV-listed or high/critical.
	KindUrgent
)

// TicketCategory identifies a ticket listing family.
type TicketCategory struct {
	Kind     CategoryKind
	Severity model.Severity // set only for KindSeverity
}

// SeverityCategory selects vulnerability tickets at one severity.
func SeverityCategory(s model.Severity) TicketCategory {
	return TicketCategory{Kind: KindSeverity, Severity: s}
}

// RiskyServicesCategory selects exposed-service tickets.
func RiskyServicesCategory() TicketCategory {
	return TicketCategory{Kind: KindRiskyServices}
}

// UrgentCategory selects tickets that are KEV-listed or at least high
// severity.
func UrgentCategory() TicketCategory {
	return TicketCategory{Kind: KindUrgent}
}

// ReportTimeMemo caches snapshot key to first-report-time resolutions
// across the tickets of one listing, since many tickets share snapshots.
// The caller owns the memo's lifetime; sharing one across requests is a
// correctness bug once new reports generate.
type ReportTimeMemo map[string]time.Time

// ReportTimeLookup resolves the first report generation time for a
// snapshot, nil when no report exists yet.
type ReportTimeLookup func(ctx context.Context, snapshotKey string) (*time.Time, error)

// FirstReportFor walks a ticket's snapshots oldest first and returns the
// generation time of the first report that disclosed it, consulting the
// memo before the lookup. Tickets whose snapshots all lack reports
// resolve to nil.
func FirstReportFor(ctx context.Context, memo ReportTimeMemo, snapshots []string, lookup ReportTimeLookup) (*time.Time, error) {
	for _, key := range snapshots {
		if t, ok := memo[key]; ok {
			return &t, nil
		}
		t, err := lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if t != nil {
			memo[key] = *t
			return t, nil
		}
	}
	return nil, nil
}

// OpenTicketRow is one row of an open-ticket listing. Hostname, Service,
// and Category are populated only for the risky-services family; Name,
// CVE, KEV, and Severity only for vulnerability families.
type OpenTicketRow struct {
	ID       string         `json:"_id"`
	Owner    string         `json:"owner"`
	IP       string         `json:"ip"`
	Hostname string         `json:"hostname,omitempty"`
	Port     int            `json:"port"`
	Name     string         `json:"name,omitempty"`
	CVE      string         `json:"cve,omitempty"`
	KEV      bool           `json:"kev,omitempty"`
	Severity model.Severity `json:"severity,omitempty"`
	Service  string         `json:"service,omitempty"`
	Category string         `json:"category,omitempty"`

	TimeOpened             time.Time  `json:"time_opened"`
	DaysSinceFirstDetected float64    `json:"days_since_first_detected"`
	FirstReported          *time.Time `json:"time_first_reported,omitempty"`
	DaysSinceFirstReported *float64   `json:"days_since_first_reported,omitempty"`
	DaysToReport           *float64   `json:"days_to_report,omitempty"`
}

// ClosedTicketRow is one row of a closed-ticket listing.
type ClosedTicketRow struct {
	ID       string         `json:"_id"`
	Owner    string         `json:"owner"`
	IP       string         `json:"ip"`
	Hostname string         `json:"hostname,omitempty"`
	Port     int            `json:"port"`
	Name     string         `json:"name,omitempty"`
	CVE      string         `json:"cve,omitempty"`
	KEV      bool           `json:"kev,omitempty"`
	Severity model.Severity `json:"severity,omitempty"`
	Service  string         `json:"service,omitempty"`
	Category string         `json:"category,omitempty"`

	TimeOpened  time.Time `json:"time_opened"`
	TimeClosed  time.Time `json:"time_closed"`
	DaysToClose float64   `json:"days_to_close"`
}

// BuildOpenTicketRows projects open tickets into listing rows for the
// category, resolves first-report times through the memo, and sorts
// longest-open first. The hostnames map (keyed by ip) fills the hostname
// column for risky-service rows and may be nil otherwise.
func BuildOpenTicketRows(ctx context.Context, tickets []model.Ticket, cat TicketCategory, now time.Time, memo ReportTimeMemo, lookup ReportTimeLookup, hostnames map[string]string) ([]OpenTicketRow, error) {
	rows := make([]OpenTicketRow, 0, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		row := OpenTicketRow{
			ID:                     t.Key,
			Owner:                  t.Owner,
			IP:                     t.IP,
			Port:                   t.Port,
			TimeOpened:             t.TimeOpened.UTC(),
			DaysSinceFirstDetected: util.Round1(util.DaysBetween(t.TimeOpened.UTC(), now)),
		}
		fillCategoryColumns(cat, t, &row.Name, &row.CVE, &row.KEV, &row.Severity, &row.Service, &row.Category)
		if cat.Kind == KindRiskyServices {
			row.Hostname = hostnames[t.IP]
		}

		reported, err := FirstReportFor(ctx, memo, t.Snapshots, lookup)
		if err != nil {
			return nil, err
		}
		if reported != nil {
			r := reported.UTC()
			row.FirstReported = &r
			since := util.Round1(util.DaysBetween(r, now))
			toReport := util.Round1(util.DaysBetween(t.TimeOpened.UTC(), r))
			row.DaysSinceFirstReported = &since
			row.DaysToReport = &toReport
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DaysSinceFirstDetected > rows[j].DaysSinceFirstDetected
	})
	return rows, nil
}

// BuildClosedTicketRows projects closed tickets into listing rows, sorted
// by close time ascending. Tickets with no close time are skipped; they do
// not belong in a closed listing regardless of what the query returned.
func BuildClosedTicketRows(tickets []model.Ticket, cat TicketCategory, hostnames map[string]string) []ClosedTicketRow {
	rows := make([]ClosedTicketRow, 0, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		if t.TimeClosed == nil {
			continue
		}
		closed := t.TimeClosed.UTC()
		row := ClosedTicketRow{
			ID:          t.Key,
			Owner:       t.Owner,
			IP:          t.IP,
			Port:        t.Port,
			TimeOpened:  t.TimeOpened.UTC(),
			TimeClosed:  closed,
			DaysToClose: util.Round1(util.DaysBetween(t.TimeOpened.UTC(), closed)),
		}
		fillCategoryColumns(cat, t, &row.Name, &row.CVE, &row.KEV, &row.Severity, &row.Service, &row.Category)
		if cat.Kind == KindRiskyServices {
			row.Hostname = hostnames[t.IP]
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TimeClosed.Before(rows[j].TimeClosed)
	})
	return rows
}

func fillCategoryColumns(cat TicketCategory, t *model.Ticket, name *string, cve *string, kev *bool, severity *model.Severity, service *string, category *string) {
	switch cat.Kind {
	case KindRiskyServices:
		*service = t.Details.Service
		*category = RiskyServicesMap[t.Details.Service]
	default:
		*name = t.Details.Name
		*cve = t.Details.CVE
		*kev = t.Details.KEV
		*severity = util.TicketSeverity(t.Details)
	}
}
