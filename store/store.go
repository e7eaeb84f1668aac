// Package store implements the query layer over the dashboard's ArangoDB
// collections. All reads the aggregation code needs go through TicketStore;
// nothing in this service ever writes ticket data.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/vulndash/vulndash-backend/database"
	"github.com/vulndash/vulndash-backend/model"
)

// TicketStore runs queries against the dashboard database.
type TicketStore struct {
	db database.DBConnection
}

// NewTicketStore wraps an initialized database connection.
func NewTicketStore(db database.DBConnection) *TicketStore {
	return &TicketStore{db: db}
}

func (s *TicketStore) query(ctx context.Context, query string, bindVars map[string]interface{}) (arangodb.Cursor, error) {
	var opts *arangodb.QueryOptions
	if bindVars != nil {
		opts = &arangodb.QueryOptions{BindVars: bindVars}
	}
	return s.db.Database.Query(ctx, query, opts)
}

// readOne decodes the first document of a cursor, reporting whether one
// existed.
func readOne[T any](ctx context.Context, cursor arangodb.Cursor) (T, bool, error) {
	var doc T
	if !cursor.HasMore() {
		return doc, false, nil
	}
	if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
		return doc, false, err
	}
	return doc, true, nil
}

//
// Organization queries
//

// StakeholderOrgs returns every organization flagged as a stakeholder.
func (s *TicketStore) StakeholderOrgs(ctx context.Context) ([]model.Organization, error) {
	query := `
		FOR r IN requests
			FILTER r.stakeholder == true
			RETURN r
	`
	cursor, err := s.query(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("stakeholder query: %w", err)
	}
	defer cursor.Close()

	var orgs []model.Organization
	for cursor.HasMore() {
		var org model.Organization
		if _, err := cursor.ReadDocument(ctx, &org); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// OrgsByKey fetches the named organizations. Unknown keys are simply absent
// from the result.
func (s *TicketStore) OrgsByKey(ctx context.Context, keys []string) ([]model.Organization, error) {
	query := `
		FOR r IN requests
			FILTER r._key IN @keys
			RETURN r
	`
	cursor, err := s.query(ctx, query, map[string]interface{}{"keys": keys})
	if err != nil {
		return nil, fmt.Errorf("orgs by key: %w", err)
	}
	defer cursor.Close()

	var orgs []model.Organization
	for cursor.HasMore() {
		var org model.Organization
		if _, err := cursor.ReadDocument(ctx, &org); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// AllDescendants expands an organization id to all of its descendants,
// excluding the root itself. Callers that mean "org plus descendants"
// prepend the root.
func (s *TicketStore) AllDescendants(ctx context.Context, root string) ([]string, error) {
	seen := map[string]bool{root: true}
	var out []string

	frontier := []string{root}
	for len(frontier) > 0 {
		query := `
			FOR r IN requests
				FILTER r._key IN @keys
				RETURN { key: r._key, children: r.children }
		`
		cursor, err := s.query(ctx, query, map[string]interface{}{"keys": frontier})
		if err != nil {
			return nil, fmt.Errorf("descendant expansion: %w", err)
		}

		type node struct {
			Key      string   `json:"key"`
			Children []string `json:"children"`
		}

		var next []string
		for cursor.HasMore() {
			var n node
			if _, err := cursor.ReadDocument(ctx, &n); err != nil {
				cursor.Close()
				return nil, err
			}
			for _, child := range n.Children {
				if !seen[child] {
					seen[child] = true
					out = append(out, child)
					next = append(next, child)
				}
			}
		}
		cursor.Close()
		frontier = next
	}
	return out, nil
}

// Cohorts are owner-id lists per organization type grouping. SLTT is the
// union of state, local, tribal, and territorial.
type Cohorts struct {
	Federal []string
	SLTT    []string
	Private []string
}

// OwnerCohorts classifies every organization into the reporting cohorts by
// its type field.
func (s *TicketStore) OwnerCohorts(ctx context.Context) (Cohorts, error) {
	query := `
		FOR r IN requests
			RETURN { key: r._key, type: r.type }
	`
	cursor, err := s.query(ctx, query, nil)
	if err != nil {
		return Cohorts{}, fmt.Errorf("owner cohorts: %w", err)
	}
	defer cursor.Close()

	var cohorts Cohorts
	for cursor.HasMore() {
		var n struct {
			Key  string `json:"key"`
			Type string `json:"type"`
		}
		if _, err := cursor.ReadDocument(ctx, &n); err != nil {
			return Cohorts{}, err
		}
		switch n.Type {
		case model.OrgTypeFederal:
			cohorts.Federal = append(cohorts.Federal, n.Key)
		case model.OrgTypeState, model.OrgTypeLocal, model.OrgTypeTribal, model.OrgTypeTerritorial:
			cohorts.SLTT = append(cohorts.SLTT, n.Key)
		case model.OrgTypePrivate:
			cohorts.Private = append(cohorts.Private, n.Key)
		}
	}
	return cohorts, nil
}

//
// Snapshot and report queries
//

// OrgSnapshots is the per-organization snapshot bundle consumed by the risk
// ranking engine.
type OrgSnapshots struct {
	Owner     string
	Snapshots []model.Snapshot
}

// OrgSnapshotStats groups every snapshot by owner. Organizations without
// snapshots do not appear at all.
func (s *TicketStore) OrgSnapshotStats(ctx context.Context) ([]OrgSnapshots, error) {
	query := `
		FOR snap IN snapshots
			FILTER snap.tix_msec_open != null
			COLLECT owner = snap.owner INTO groups = snap
			SORT owner ASC
			RETURN { owner: owner, snapshots: groups }
	`
	cursor, err := s.query(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("org snapshot stats: %w", err)
	}
	defer cursor.Close()

	var out []OrgSnapshots
	for cursor.HasMore() {
		var doc struct {
			Owner     string           `json:"owner"`
			Snapshots []model.Snapshot `json:"snapshots"`
		}
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, err
		}
		out = append(out, OrgSnapshots{Owner: doc.Owner, Snapshots: doc.Snapshots})
	}
	return out, nil
}

// SnapshotWindow is one row of the scan history listing.
type SnapshotWindow struct {
	Owner     string    `json:"owner"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// LatestSnapshots lists the most recent snapshot window per organization,
// ordered by end time.
func (s *TicketStore) LatestSnapshots(ctx context.Context) ([]SnapshotWindow, error) {
	query := `
		FOR snap IN snapshots
			FILTER snap.latest == true
			SORT snap.end_time ASC
			RETURN { owner: snap.owner, start_time: snap.start_time, end_time: snap.end_time }
	`
	cursor, err := s.query(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("latest snapshots: %w", err)
	}
	defer cursor.Close()

	var out []SnapshotWindow
	for cursor.HasMore() {
		var w SnapshotWindow
		if _, err := cursor.ReadDocument(ctx, &w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// FirstReportTime returns the generation time of the earliest report tied
// to the given snapshot, or nil when no report was ever generated.
func (s *TicketStore) FirstReportTime(ctx context.Context, snapshotKey string) (*time.Time, error) {
	query := `
		FOR rep IN reports
			FILTER rep.snapshot_key == @snap
			SORT rep.generated_time ASC
			LIMIT 1
			RETURN rep.generated_time
	`
	cursor, err := s.query(ctx, query, map[string]interface{}{"snap": snapshotKey})
	if err != nil {
		return nil, fmt.Errorf("first report time: %w", err)
	}
	defer cursor.Close()

	t, ok, err := readOne[time.Time](ctx, cursor)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// ReportFilter narrows report counting.
type ReportFilter struct {
	Owners     []string   // nil means all owners
	ReportType string     // e.g. "CYHY"; empty matches any type
	Start, End *time.Time // generated_time window, inclusive
}

// ReportCount counts generated reports matching the filter.
func (s *TicketStore) ReportCount(ctx context.Context, f ReportFilter) (int, error) {
	bindVars := map[string]interface{}{}
	query := `FOR rep IN reports`
	if f.Owners != nil {
		query += "\n\tFILTER rep.owner IN @owners"
		bindVars["owners"] = f.Owners
	}
	if f.ReportType != "" {
		query += "\n\tFILTER @rtype IN rep.report_types"
		bindVars["rtype"] = f.ReportType
	}
	if f.Start != nil {
		query += "\n\tFILTER rep.generated_time >= @start"
		bindVars["start"] = f.Start.UTC()
	}
	if f.End != nil {
		query += "\n\tFILTER rep.generated_time <= @end"
		bindVars["end"] = f.End.UTC()
	}
	query += "\n\tCOLLECT WITH COUNT INTO total\n\tRETURN total"

	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return 0, fmt.Errorf("report count: %w", err)
	}
	defer cursor.Close()

	n, _, err := readOne[int](ctx, cursor)
	return n, err
}
