package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vulndash/vulndash-backend/model"
)

// TicketFilter narrows ticket queries. Nil/zero fields are not applied.
type TicketFilter struct {
	Owners        []string
	Severity      *model.Severity
	MinSeverity   *model.Severity
	Open          *bool
	FalsePositive *bool
	Source        string
	Services      []string
	KEV           *bool
	// UrgentOr selects tickets that are KEV or at least high severity, the
	// composite "urgent" criterion.
	UrgentOr bool
	// OpenedFrom/OpenedBefore bound time_opened: from <= time_opened < before.
	OpenedFrom   *time.Time
	OpenedBefore *time.Time
	// OpenedAtOrBefore bounds time_opened inclusively (backlog population).
	OpenedAtOrBefore *time.Time
	// ClosedFrom/ClosedBefore bound time_closed: from <= time_closed < before.
	ClosedFrom   *time.Time
	ClosedBefore *time.Time
	// ClosedAtOrBefore bounds time_closed inclusively (period activity).
	ClosedAtOrBefore *time.Time
	// ClosedSinceOrStillOpen keeps tickets closed at/after the instant or
	// never closed, the standard age-curve population filter.
	ClosedSinceOrStillOpen *time.Time
}

func (f TicketFilter) clauses(bindVars map[string]interface{}) string {
	q := ""
	if f.Owners != nil {
		q += "\n\tFILTER t.owner IN @owners"
		bindVars["owners"] = f.Owners
	}
	if f.Severity != nil {
		q += "\n\tFILTER t.details.severity == @severity"
		bindVars["severity"] = int(*f.Severity)
	}
	if f.MinSeverity != nil {
		q += "\n\tFILTER t.details.severity >= @minSeverity"
		bindVars["minSeverity"] = int(*f.MinSeverity)
	}
	if f.Open != nil {
		q += "\n\tFILTER t.open == @open"
		bindVars["open"] = *f.Open
	}
	if f.FalsePositive != nil {
		q += "\n\tFILTER t.false_positive == @falsePositive"
		bindVars["falsePositive"] = *f.FalsePositive
	}
	if f.Source != "" {
		q += "\n\tFILTER t.source == @source"
		bindVars["source"] = f.Source
	}
	if f.Services != nil {
		q += "\n\tFILTER t.details.service IN @services"
		bindVars["services"] = f.Services
	}
	if f.KEV != nil {
		q += "\n\tFILTER t.details.kev == @kev"
		bindVars["kev"] = *f.KEV
	}
	if f.UrgentOr {
		q += "\n\tFILTER t.details.kev == true OR t.details.severity >= 3"
	}
	if f.OpenedFrom != nil {
		q += "\n\tFILTER t.time_opened >= @openedFrom"
		bindVars["openedFrom"] = f.OpenedFrom.UTC()
	}
	if f.OpenedBefore != nil {
		q += "\n\tFILTER t.time_opened < @openedBefore"
		bindVars["openedBefore"] = f.OpenedBefore.UTC()
	}
	if f.OpenedAtOrBefore != nil {
		q += "\n\tFILTER t.time_opened <= @openedAtOrBefore"
		bindVars["openedAtOrBefore"] = f.OpenedAtOrBefore.UTC()
	}
	if f.ClosedFrom != nil {
		q += "\n\tFILTER t.time_closed >= @closedFrom"
		bindVars["closedFrom"] = f.ClosedFrom.UTC()
	}
	if f.ClosedBefore != nil {
		q += "\n\tFILTER t.time_closed < @closedBefore"
		bindVars["closedBefore"] = f.ClosedBefore.UTC()
	}
	if f.ClosedAtOrBefore != nil {
		q += "\n\tFILTER t.time_closed <= @closedAtOrBefore"
		bindVars["closedAtOrBefore"] = f.ClosedAtOrBefore.UTC()
	}
	if f.ClosedSinceOrStillOpen != nil {
		q += "\n\tFILTER t.time_closed >= @closedSince OR t.time_closed == null"
		bindVars["closedSince"] = f.ClosedSinceOrStillOpen.UTC()
	}
	return q
}

// Tickets returns every ticket matching the filter.
func (s *TicketStore) Tickets(ctx context.Context, f TicketFilter) ([]model.Ticket, error) {
	bindVars := map[string]interface{}{}
	query := "FOR t IN tickets" + f.clauses(bindVars) + "\n\tRETURN t"

	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return nil, fmt.Errorf("ticket query: %w", err)
	}
	defer cursor.Close()

	var out []model.Ticket
	for cursor.HasMore() {
		var t model.Ticket
		if _, err := cursor.ReadDocument(ctx, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// CountTickets counts tickets matching the filter without materializing
// them.
func (s *TicketStore) CountTickets(ctx context.Context, f TicketFilter) (int, error) {
	bindVars := map[string]interface{}{}
	query := "FOR t IN tickets" + f.clauses(bindVars) +
		"\n\tCOLLECT WITH COUNT INTO total\n\tRETURN total"

	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return 0, fmt.Errorf("ticket count: %w", err)
	}
	defer cursor.Close()

	n, _, err := readOne[int](ctx, cursor)
	return n, err
}

// SeverityPair holds the open critical/high counts for one owner set.
type SeverityPair struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
}

// SeverityPairCounts runs the conditional-sum pipeline counting open,
// non-false-positive critical and high tickets for the owner set. An empty
// match yields zeros.
func (s *TicketStore) SeverityPairCounts(ctx context.Context, owners []string) (SeverityPair, error) {
	query := `
		FOR t IN tickets
			FILTER t.open == true AND t.false_positive == false AND t.owner IN @owners
			COLLECT AGGREGATE
				critical = SUM(t.details.severity == 4 ? 1 : 0),
				high = SUM(t.details.severity == 3 ? 1 : 0)
			RETURN { critical: critical, high: high }
	`
	cursor, err := s.query(ctx, query, map[string]interface{}{"owners": owners})
	if err != nil {
		return SeverityPair{}, fmt.Errorf("severity pair counts: %w", err)
	}
	defer cursor.Close()

	pair, _, err := readOne[SeverityPair](ctx, cursor)
	return pair, err
}

// OpenTicketCounts is the open-ticket severity histogram.
type OpenTicketCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
	Total    int `json:"total"`
}

// SeverityBreakdown runs the single-pass conditional-sum severity histogram
// over every ticket matching the filter. An empty match yields zeros.
func (s *TicketStore) SeverityBreakdown(ctx context.Context, f TicketFilter) (OpenTicketCounts, error) {
	bindVars := map[string]interface{}{}
	query := "FOR t IN tickets" + f.clauses(bindVars) + `
		COLLECT AGGREGATE
			low = SUM(t.details.severity == 1 ? 1 : 0),
			medium = SUM(t.details.severity == 2 ? 1 : 0),
			high = SUM(t.details.severity == 3 ? 1 : 0),
			critical = SUM(t.details.severity == 4 ? 1 : 0),
			total = LENGTH(1)
		RETURN { low: low, medium: medium, high: high, critical: critical, total: total }
	`
	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return OpenTicketCounts{}, fmt.Errorf("severity breakdown: %w", err)
	}
	defer cursor.Close()

	counts, _, err := readOne[OpenTicketCounts](ctx, cursor)
	return counts, err
}

// AverageCVSS averages the CVSS base score over tickets matching the
// filter. An empty match yields zero.
func (s *TicketStore) AverageCVSS(ctx context.Context, f TicketFilter) (float64, error) {
	bindVars := map[string]interface{}{}
	query := "FOR t IN tickets" + f.clauses(bindVars) + `
		COLLECT AGGREGATE avg = AVERAGE(t.details.cvss_base_score)
		RETURN avg != null ? avg : 0
	`
	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return 0, fmt.Errorf("average cvss: %w", err)
	}
	defer cursor.Close()

	avg, _, err := readOne[float64](ctx, cursor)
	return avg, err
}

// OpenSeverityCounts computes the severity histogram over all
// currently-open non-false-positive tickets. A nil owner list means every
// owner.
func (s *TicketStore) OpenSeverityCounts(ctx context.Context, owners []string) (OpenTicketCounts, error) {
	open := true
	fp := false
	return s.SeverityBreakdown(ctx, TicketFilter{Owners: owners, Open: &open, FalsePositive: &fp})
}

// OpenDuringWindowCount counts tickets open at any point during
// [start, end): opened in the window, closed in the window, opened earlier
// and still open, or opened earlier and closed at/after the window's end.
func (s *TicketStore) OpenDuringWindowCount(ctx context.Context, start, end time.Time) (int, error) {
	query := `
		FOR t IN tickets
			FILTER t.source == "nessus" AND t.false_positive == false
			FILTER (t.time_opened >= @start AND t.time_opened < @end)
				OR (t.time_closed >= @start AND t.time_closed < @end)
				OR (t.time_opened < @start AND t.open == true)
				OR (t.time_opened < @start AND t.open == false AND t.time_closed >= @end)
			COLLECT WITH COUNT INTO total
			RETURN total
	`
	cursor, err := s.query(ctx, query, map[string]interface{}{
		"start": start.UTC(),
		"end":   end.UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("open during window: %w", err)
	}
	defer cursor.Close()

	n, _, err := readOne[int](ctx, cursor)
	return n, err
}

// DistinctVulnerableHosts counts distinct host identities (by ip_int) with
// at least one open non-false-positive ticket.
func (s *TicketStore) DistinctVulnerableHosts(ctx context.Context, owners []string) (int, error) {
	bindVars := map[string]interface{}{}
	ownerClause := ""
	if owners != nil {
		ownerClause = " AND t.owner IN @owners"
		bindVars["owners"] = owners
	}
	query := `
		RETURN LENGTH(UNIQUE(
			FOR t IN tickets
				FILTER t.open == true AND t.false_positive == false` + ownerClause + `
				RETURN t.ip_int
		))
	`
	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return 0, fmt.Errorf("distinct vulnerable hosts: %w", err)
	}
	defer cursor.Close()

	n, _, err := readOne[int](ctx, cursor)
	return n, err
}

// FirstSeenCount is one (source, source_id) group of the first-seen
// breakdown.
type FirstSeenCount struct {
	Source      string              `json:"source"`
	SourceID    int                 `json:"source_id"`
	FirstSeen   time.Time           `json:"first_seen"`
	OpenCount   int                 `json:"open_count"`
	ClosedCount int                 `json:"closed_count"`
	Total       int                 `json:"total"`
	Details     model.TicketDetails `json:"details"`
}

// FirstSeenCounts groups non-false-positive tickets by scanner finding and
// reports when each was first seen, newest first.
func (s *TicketStore) FirstSeenCounts(ctx context.Context) ([]FirstSeenCount, error) {
	query := `
		FOR t IN tickets
			FILTER t.false_positive == false
			COLLECT source = t.source, sourceID = t.source_id INTO groups = t
			LET firstSeen = MIN(groups[*].time_opened)
			SORT firstSeen DESC
			RETURN {
				source: source,
				source_id: sourceID,
				first_seen: firstSeen,
				open_count: SUM(groups[*].open ? 1 : 0),
				closed_count: SUM(groups[*].open ? 0 : 1),
				total: LENGTH(groups),
				details: FIRST(groups[*].details)
			}
	`
	cursor, err := s.query(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("first seen counts: %w", err)
	}
	defer cursor.Close()

	var out []FirstSeenCount
	for cursor.HasMore() {
		var c FirstSeenCount
		if _, err := cursor.ReadDocument(ctx, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ChangedTicketsSince returns tickets whose last_change exceeds the
// watermark, newest first. Used by the delta feed.
func (s *TicketStore) ChangedTicketsSince(ctx context.Context, since time.Time) ([]model.Ticket, error) {
	query := `
		FOR t IN tickets
			FILTER t.last_change > @since
			SORT t.last_change DESC
			RETURN t
	`
	cursor, err := s.query(ctx, query, map[string]interface{}{"since": since.UTC()})
	if err != nil {
		return nil, fmt.Errorf("changed tickets: %w", err)
	}
	defer cursor.Close()

	var out []model.Ticket
	for cursor.HasMore() {
		var t model.Ticket
		if _, err := cursor.ReadDocument(ctx, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
