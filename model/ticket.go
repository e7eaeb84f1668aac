// Package model defines the data structures for the vulnerability dashboard.
package model

import (
	"fmt"
	"time"
)

// Severity is the ordinal criticality of a finding.
type Severity int

// Severity levels as recorded by the scanning pipeline.
const (
	SeverityLow      Severity = 1
	SeverityMedium   Severity = 2
	SeverityHigh     Severity = 3
	SeverityCritical Severity = 4
)

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// String returns the lowercase name of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// TicketDetails holds the finding-specific fields of a ticket.
type TicketDetails struct {
	Name          string   `json:"name,omitempty"`
	CVE           string   `json:"cve,omitempty"`
	KEV           bool     `json:"kev,omitempty"`
	Severity      Severity `json:"severity"`
	Service       string   `json:"service,omitempty"`
	CVSSBaseScore float64  `json:"cvss_base_score,omitempty"`
	CVSSVector    string   `json:"cvss_vector,omitempty"`
}

// Ticket is one detected vulnerability or finding on one host/port. Tickets
// are created and closed by the scanning pipeline; this service only reads
// them.
type Ticket struct {
	Key           string        `json:"_key,omitempty"`
	Owner         string        `json:"owner"`
	Open          bool          `json:"open"`
	FalsePositive bool          `json:"false_positive"`
	IP            string        `json:"ip"`
	IPInt         int64         `json:"ip_int"`
	Port          int           `json:"port"`
	Source        string        `json:"source"`
	SourceID      int           `json:"source_id,omitempty"`
	TimeOpened    time.Time     `json:"time_opened"`
	TimeClosed    *time.Time    `json:"time_closed,omitempty"`
	LastChange    time.Time     `json:"last_change"`
	Snapshots     []string      `json:"snapshots,omitempty"`
	Details       TicketDetails `json:"details"`
}

// EffectiveClose returns the close time used for age accounting. A ticket
// with no close time is assumed to close at the given projection instant
// (see metrics.ProjectedClose), so a uniform time_closed > day comparison
// decides open-on-day for closed and open tickets alike.
func (t *Ticket) EffectiveClose(projected time.Time) time.Time {
	if t.TimeClosed != nil {
		return *t.TimeClosed
	}
	return projected
}
