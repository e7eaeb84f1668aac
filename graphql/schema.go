// Package graphql assembles the root schema from the per-page query
// modules. Resolvers call the aggregation service only; the HTTP layer
// mounts the schema through restapi.GraphQLHandler.
package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/vulndash/vulndash-backend/graphql/modules/dashboard"
	"github.com/vulndash/vulndash-backend/graphql/modules/risk"
	"github.com/vulndash/vulndash-backend/metrics"
)

// CreateSchema builds the root query schema over the aggregation service.
func CreateSchema(svc *metrics.Service) (graphql.Schema, error) {
	fields := graphql.Fields{}
	for name, field := range dashboard.GetQueryFields(svc) {
		fields[name] = field
	}
	for name, field := range risk.GetQueryFields(svc) {
		fields[name] = field
	}

	rootQuery := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: fields,
	})
	return graphql.NewSchema(graphql.SchemaConfig{Query: rootQuery})
}
