// Package util - CVSS helpers for validating ticket severities.
package util

import (
	"strings"

	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"

	"github.com/vulndash/vulndash-backend/model"
)

// CalculateCVSSScore calculates the CVSS base score from a vector string
func CalculateCVSSScore(vectorStr string) float64 {
	if vectorStr == "" || !strings.HasPrefix(vectorStr, "CVSS:") {
		return 0
	}
	if strings.HasPrefix(vectorStr, "CVSS:3.1") || strings.HasPrefix(vectorStr, "CVSS:3.0") {
		if cvss31, err := gocvss31.ParseVector(vectorStr); err == nil {
			return cvss31.BaseScore()
		}
	}
	if strings.HasPrefix(vectorStr, "CVSS:4.0") {
		if cvss40, err := gocvss40.ParseVector(vectorStr); err == nil {
			return cvss40.Score()
		}
	}
	return 0
}

// SeverityFromScore maps a CVSS base score onto the ordinal severity scale
// used by tickets. Scores of zero map to low, matching how the scanning
// pipeline treats informational findings that still open tickets.
func SeverityFromScore(score float64) model.Severity {
	switch {
	case score >= 9.0:
		return model.SeverityCritical
	case score >= 7.0:
		return model.SeverityHigh
	case score >= 4.0:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// SeverityFromVector derives the ordinal severity for a ticket that carries
// a CVSS vector but no severity field.
func SeverityFromVector(vectorStr string) model.Severity {
	return SeverityFromScore(CalculateCVSSScore(vectorStr))
}

// TicketSeverity returns the recorded severity of a finding, deriving one
// from its CVSS vector or base score when the scanner omitted it. Older
// nessus imports carry a vector and score but no severity field.
func TicketSeverity(d model.TicketDetails) model.Severity {
	if d.Severity.Valid() {
		return d.Severity
	}
	if d.CVSSVector != "" {
		return SeverityFromVector(d.CVSSVector)
	}
	return SeverityFromScore(d.CVSSBaseScore)
}
