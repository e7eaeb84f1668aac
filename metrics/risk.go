package metrics

import (
	"math"
	"sort"

	"github.com/vulndash/vulndash-backend/model"
	"github.com/vulndash/vulndash-backend/store"
)

// Weights applied to per-severity averages before ranking. Higher
// severities dominate an organization's standing.
var severityWeights = map[model.Severity]float64{
	model.SeverityCritical: 10.0,
	model.SeverityHigh:     9.9,
	model.SeverityMedium:   6.9,
	model.SeverityLow:      3.9,
}

// rankedSeverities is the evaluation order for the per-severity passes.
var rankedSeverities = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
}

// RankedOrg is one organization's standing on a ranked scale.
type RankedOrg struct {
	OrgID string  `json:"org_id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// RiskRankings holds the three per-metric rankings and their combination.
// Each list is sorted worst first.
type RiskRankings struct {
	VulnerabilityCount []RankedOrg `json:"vulnerability_count"`
	MaxTimeAlive       []RankedOrg `json:"max_time_alive"`
	TimeToMitigate     []RankedOrg `json:"time_to_mitigate"`
	Overall            []RankedOrg `json:"overall"`
}

// RankOrganizations scores every organization that has at least one usable
// snapshot. For each severity level and each of three metrics (open
// vulnerability count, time a ticket stays alive, time to mitigate) it
// averages the metric across the organization's snapshots, weights it by
// severity, ranks organizations on the weighted value, and converts rank r
// to the harmonic score (1/r)*100. Per-metric scores are the sum of the
// four severity passes; the overall ranking re-ranks the sum of the three
// per-metric scores. Organizations with no snapshots are absent entirely
// rather than padding the bottom of the table.
func RankOrganizations(stats []store.OrgSnapshots, names map[string]string) RiskRankings {
	countScore := map[string]float64{}
	aliveScore := map[string]float64{}
	mitigateScore := map[string]float64{}

	for _, sev := range rankedSeverities {
		weight := severityWeights[sev]
		countAvg := map[string]float64{}
		aliveAvg := map[string]float64{}
		mitigateAvg := map[string]float64{}

		for _, org := range stats {
			n := len(org.Snapshots)
			if n == 0 {
				continue
			}
			var count, alive, mitigate float64
			for _, snap := range org.Snapshots {
				count += snap.Vulnerabilities.At(sev)
				if m := snap.TixMsecOpen.At(sev); m != nil {
					alive += *m
				}
				if m := snap.TixMsecToClose.At(sev); m != nil {
					mitigate += *m
				}
			}
			countAvg[org.Owner] = count / float64(n) * weight
			aliveAvg[org.Owner] = alive / float64(n) * weight
			mitigateAvg[org.Owner] = mitigate / float64(n) * weight
		}

		accumulateHarmonic(countScore, countAvg)
		accumulateHarmonic(aliveScore, aliveAvg)
		accumulateHarmonic(mitigateScore, mitigateAvg)
	}

	overall := map[string]float64{}
	for org, s := range countScore {
		overall[org] = s + aliveScore[org] + mitigateScore[org]
	}

	return RiskRankings{
		VulnerabilityCount: toRanking(countScore, names),
		MaxTimeAlive:       toRanking(aliveScore, names),
		TimeToMitigate:     toRanking(mitigateScore, names),
		Overall:            toRanking(overall, names),
	}
}

// accumulateHarmonic ranks orgs by value descending and adds (1/rank)*100
// to each org's running score. Ties break on org id so rankings are
// deterministic.
func accumulateHarmonic(into, values map[string]float64) {
	orgs := make([]string, 0, len(values))
	for org := range values {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool {
		if values[orgs[i]] != values[orgs[j]] {
			return values[orgs[i]] > values[orgs[j]]
		}
		return orgs[i] < orgs[j]
	})
	for i, org := range orgs {
		into[org] += 1.0 / float64(i+1) * 100.0
	}
}

// toRanking orders scores worst first and rounds to two decimals for
// presentation.
func toRanking(scores map[string]float64, names map[string]string) []RankedOrg {
	out := make([]RankedOrg, 0, len(scores))
	for org, s := range scores {
		out = append(out, RankedOrg{
			OrgID: org,
			Name:  names[org],
			Score: math.Round(s*100) / 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].OrgID < out[j].OrgID
	})
	return out
}
