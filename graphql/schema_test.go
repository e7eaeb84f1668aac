package graphql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndash/vulndash-backend/metrics"
)

func TestCreateSchema(t *testing.T) {
	schema, err := CreateSchema(metrics.NewService(nil))
	require.NoError(t, err)

	fields := schema.QueryType().Fields()
	assert.Contains(t, fields, "dashboardOverview")
	assert.Contains(t, fields, "dashboardSeverity")
	assert.Contains(t, fields, "dashboardSeverityBoard")
	assert.Contains(t, fields, "riskRankings")
}
