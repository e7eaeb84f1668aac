package risk

import (
	"github.com/graphql-go/graphql"

	"github.com/vulndash/vulndash-backend/metrics"
)

// GetQueryFields returns the risk queries to be mounted in the root
// schema.
func GetQueryFields(svc *metrics.Service) graphql.Fields {
	return graphql.Fields{
		"riskRankings": &graphql.Field{
			Type: RiskRankingsType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveRankings(p, svc)
			},
		},
	}
}
