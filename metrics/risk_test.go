package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndash/vulndash-backend/model"
	"github.com/vulndash/vulndash-backend/store"
)

func msec(v float64) *float64 { return &v }

func snapWith(critCount float64, critOpen, critClose *float64) model.Snapshot {
	return model.Snapshot{
		Vulnerabilities: model.SeverityVector{Critical: critCount},
		TixMsecOpen:     model.DurationStats{Critical: critOpen},
		TixMsecToClose:  model.DurationStats{Critical: critClose},
	}
}

func TestRankOrganizationsExcludesSnapshotless(t *testing.T) {
	stats := []store.OrgSnapshots{
		{Owner: "ORG-A", Snapshots: []model.Snapshot{snapWith(5, msec(1000), msec(2000))}},
		{Owner: "ORG-B"},
	}
	r := RankOrganizations(stats, map[string]string{"ORG-A": "Org A", "ORG-B": "Org B"})

	require.Len(t, r.Overall, 1)
	assert.Equal(t, "ORG-A", r.Overall[0].OrgID)
	assert.Equal(t, "Org A", r.Overall[0].Name)
}

func TestRankOrganizationsHarmonicScores(t *testing.T) {
	// ORG-A is worse than ORG-B on every severity and every metric, so it
	// takes rank 1 in all four severity passes of all three metrics. Each
	// pass awards (1/rank)*100, so A scores 400 and B scores 200 per
	// metric, and 1200 vs 600 overall.
	stats := []store.OrgSnapshots{
		{Owner: "ORG-A", Snapshots: []model.Snapshot{snapWith(10, msec(9000), msec(9000))}},
		{Owner: "ORG-B", Snapshots: []model.Snapshot{snapWith(2, msec(1000), msec(1000))}},
	}
	r := RankOrganizations(stats, nil)

	require.Len(t, r.VulnerabilityCount, 2)
	assert.Equal(t, "ORG-A", r.VulnerabilityCount[0].OrgID)
	assert.InDelta(t, 400.0, r.VulnerabilityCount[0].Score, 0.01)
	assert.InDelta(t, 200.0, r.VulnerabilityCount[1].Score, 0.01)

	require.Len(t, r.Overall, 2)
	assert.Equal(t, "ORG-A", r.Overall[0].OrgID)
	assert.InDelta(t, 1200.0, r.Overall[0].Score, 0.01)
	assert.Equal(t, "ORG-B", r.Overall[1].OrgID)
	assert.InDelta(t, 600.0, r.Overall[1].Score, 0.01)
}

func TestRankOrganizationsAveragesAcrossSnapshots(t *testing.T) {
	// Two snapshots averaging to 6 findings per severity versus a single
	// snapshot of 5: the averaged org ranks worse.
	all := func(v float64) model.Snapshot {
		return model.Snapshot{
			Vulnerabilities: model.SeverityVector{Low: v, Medium: v, High: v, Critical: v},
		}
	}
	stats := []store.OrgSnapshots{
		{Owner: "ORG-A", Snapshots: []model.Snapshot{all(5)}},
		{Owner: "ORG-B", Snapshots: []model.Snapshot{all(4), all(8)}},
	}
	r := RankOrganizations(stats, nil)

	require.Len(t, r.VulnerabilityCount, 2)
	assert.Equal(t, "ORG-B", r.VulnerabilityCount[0].OrgID)
	assert.Equal(t, "ORG-A", r.VulnerabilityCount[1].OrgID)
}

func TestRankOrganizationsTieBreaksOnOrgID(t *testing.T) {
	stats := []store.OrgSnapshots{
		{Owner: "ZED", Snapshots: []model.Snapshot{snapWith(3, nil, nil)}},
		{Owner: "ACME", Snapshots: []model.Snapshot{snapWith(3, nil, nil)}},
	}
	r := RankOrganizations(stats, nil)

	require.Len(t, r.Overall, 2)
	assert.Equal(t, "ACME", r.Overall[0].OrgID)
	assert.Equal(t, "ZED", r.Overall[1].OrgID)
	assert.Greater(t, r.Overall[0].Score, r.Overall[1].Score)
}

func TestRankOrganizationsRoundsScores(t *testing.T) {
	stats := []store.OrgSnapshots{
		{Owner: "A", Snapshots: []model.Snapshot{snapWith(3, nil, nil)}},
		{Owner: "B", Snapshots: []model.Snapshot{snapWith(2, nil, nil)}},
		{Owner: "C", Snapshots: []model.Snapshot{snapWith(1, nil, nil)}},
	}
	r := RankOrganizations(stats, nil)

	// Rank 3 accrues (1/3)*100 per pass; the presented score is rounded
	// to two decimals.
	require.Len(t, r.VulnerabilityCount, 3)
	assert.Equal(t, 133.33, r.VulnerabilityCount[2].Score)
}
