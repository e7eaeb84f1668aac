// Package risk defines the GraphQL types and queries for the risk
// ranking board.
package risk

import (
	"github.com/graphql-go/graphql"
)

// RankedOrgType is one organization's standing on a ranked scale.
var RankedOrgType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RankedOrg",
	Fields: graphql.Fields{
		"org_id": &graphql.Field{Type: graphql.String},
		"name":   &graphql.Field{Type: graphql.String},
		"score":  &graphql.Field{Type: graphql.Float},
	},
})

// RiskRankingsType holds the three metric rankings and the overall one.
var RiskRankingsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RiskRankings",
	Fields: graphql.Fields{
		"vulnerability_count": &graphql.Field{Type: graphql.NewList(RankedOrgType)},
		"max_time_alive":      &graphql.Field{Type: graphql.NewList(RankedOrgType)},
		"time_to_mitigate":    &graphql.Field{Type: graphql.NewList(RankedOrgType)},
		"overall":             &graphql.Field{Type: graphql.NewList(RankedOrgType)},
	},
})
