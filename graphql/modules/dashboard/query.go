package dashboard

import (
	"github.com/graphql-go/graphql"

	"github.com/vulndash/vulndash-backend/metrics"
)

// GetQueryFields returns the dashboard queries to be mounted in the root
// schema.
func GetQueryFields(svc *metrics.Service) graphql.Fields {
	return graphql.Fields{
		// Section 1: Top cards (overview)
		"dashboardOverview": &graphql.Field{
			Type: OverviewType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveOverview(p, svc)
			},
		},
		// Section 2: Severity distribution chart
		"dashboardSeverity": &graphql.Field{
			Type: OpenTicketCountsType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveSeverityDistribution(p, svc)
			},
		},
		// Section 3: Per-organization board (worst first)
		"dashboardSeverityBoard": &graphql.Field{
			Type: graphql.NewList(SeverityBoardRowType),
			Args: graphql.FieldConfigArgument{
				"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				limit := p.Args["limit"].(int)
				return ResolveSeverityBoard(p, svc, limit)
			},
		},
	}
}
