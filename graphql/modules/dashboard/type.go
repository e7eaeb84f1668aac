// Package dashboard defines the GraphQL types and queries for the main
// dashboard page.
package dashboard

import (
	"github.com/graphql-go/graphql"
)

// OpenTicketCountsType is the open-ticket severity histogram.
var OpenTicketCountsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OpenTicketCounts",
	Fields: graphql.Fields{
		"low":      &graphql.Field{Type: graphql.Int},
		"medium":   &graphql.Field{Type: graphql.Int},
		"high":     &graphql.Field{Type: graphql.Int},
		"critical": &graphql.Field{Type: graphql.Int},
		"total":    &graphql.Field{Type: graphql.Int},
	},
})

// OverviewType represents the headline metrics for the top cards.
var OverviewType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DashboardOverview",
	Fields: graphql.Fields{
		"stakeholders":     &graphql.Field{Type: graphql.Int},
		"addresses":        &graphql.Field{Type: graphql.Int},
		"hosts":            &graphql.Field{Type: graphql.Int},
		"vulnerable_hosts": &graphql.Field{Type: graphql.Int},
		"open_tickets":     &graphql.Field{Type: OpenTicketCountsType},
		"reports":          &graphql.Field{Type: graphql.Int},
	},
})

// SeverityBoardRowType is one row of the per-organization severity board.
var SeverityBoardRowType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SeverityBoardRow",
	Fields: graphql.Fields{
		"org_id":   &graphql.Field{Type: graphql.String},
		"name":     &graphql.Field{Type: graphql.String},
		"critical": &graphql.Field{Type: graphql.Int},
		"high":     &graphql.Field{Type: graphql.Int},
	},
})
