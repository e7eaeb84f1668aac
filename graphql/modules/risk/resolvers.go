package risk

import (
	"github.com/graphql-go/graphql"

	"github.com/vulndash/vulndash-backend/metrics"
)

// ResolveRankings computes the full risk ranking board.
func ResolveRankings(p graphql.ResolveParams, svc *metrics.Service) (interface{}, error) {
	return svc.RiskRankings(p.Context)
}
