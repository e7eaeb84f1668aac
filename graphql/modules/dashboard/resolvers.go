package dashboard

import (
	"github.com/graphql-go/graphql"

	"github.com/vulndash/vulndash-backend/metrics"
)

// ResolveOverview fetches the headline dashboard metrics.
func ResolveOverview(p graphql.ResolveParams, svc *metrics.Service) (interface{}, error) {
	return svc.OverallMetrics(p.Context)
}

// ResolveSeverityDistribution fetches the open-ticket severity histogram
// across every organization.
func ResolveSeverityDistribution(p graphql.ResolveParams, svc *metrics.Service) (interface{}, error) {
	m, err := svc.OverallMetrics(p.Context)
	if err != nil {
		return nil, err
	}
	return m.OpenTickets, nil
}

// ResolveSeverityBoard fetches the per-organization rollup, optionally
// truncated to the worst limit rows.
func ResolveSeverityBoard(p graphql.ResolveParams, svc *metrics.Service, limit int) (interface{}, error) {
	rows, err := svc.TicketSeverityCounts(p.Context)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
