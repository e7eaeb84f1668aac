package model

import "time"

// SeverityVector holds one value per severity level.
type SeverityVector struct {
	Low      float64 `json:"low"`
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

// At returns the vector entry for the given severity.
func (v SeverityVector) At(s Severity) float64 {
	switch s {
	case SeverityLow:
		return v.Low
	case SeverityMedium:
		return v.Medium
	case SeverityHigh:
		return v.High
	case SeverityCritical:
		return v.Critical
	}
	return 0
}

// DurationStats is a per-severity median captured by a snapshot, in
// milliseconds. The median is absent when the snapshot saw no tickets at
// that severity.
type DurationStats struct {
	Low      *float64 `json:"low"`
	Medium   *float64 `json:"medium"`
	High     *float64 `json:"high"`
	Critical *float64 `json:"critical"`
}

// At returns the entry for the given severity, or nil.
func (d DurationStats) At(s Severity) *float64 {
	switch s {
	case SeverityLow:
		return d.Low
	case SeverityMedium:
		return d.Medium
	case SeverityHigh:
		return d.High
	case SeverityCritical:
		return d.Critical
	}
	return nil
}

// Snapshot is a time-boxed rollup of an organization's scan state. The
// dashboard uses snapshots to date first disclosure of tickets and as the
// per-period inputs to risk ranking.
type Snapshot struct {
	Key             string         `json:"_key"`
	Owner           string         `json:"owner"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Latest          bool           `json:"latest"`
	Vulnerabilities SeverityVector `json:"vulnerabilities"`
	TixMsecOpen     DurationStats  `json:"tix_msec_open"`
	TixMsecToClose  DurationStats  `json:"tix_msec_to_close"`
}

// Report is a generated artifact tied to a snapshot; its generation time
// dates the first disclosure of the tickets the snapshot contains.
type Report struct {
	Key           string    `json:"_key"`
	Owner         string    `json:"owner"`
	SnapshotKey   string    `json:"snapshot_key"`
	GeneratedTime time.Time `json:"generated_time"`
	ReportTypes   []string  `json:"report_types,omitempty"`
}

// Host is one scanned address. Only liveness matters to the dashboard.
type Host struct {
	IP    string `json:"ip"`
	IPInt int64  `json:"ip_int"`
	Owner string `json:"owner"`
	State struct {
		Up bool `json:"up"`
	} `json:"state"`
}
