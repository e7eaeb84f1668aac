package model

// Organization type classifications used for roll-up cohorts.
const (
	OrgTypeFederal     = "FEDERAL"
	OrgTypeState       = "STATE"
	OrgTypeLocal       = "LOCAL"
	OrgTypeTribal      = "TRIBAL"
	OrgTypeTerritorial = "TERRITORIAL"
	OrgTypePrivate     = "PRIVATE"
)

// Well-known hierarchy roots used by cohort queries.
const (
	OrgRootExecutive = "EXECUTIVE"
	OrgRootElection  = "ELECTION"
)

// Organization is a node in the ownership tree. Querying "for owner O"
// conventionally means O plus all of O's descendants.
type Organization struct {
	Key         string   `json:"_key"`
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Stakeholder bool     `json:"stakeholder"`
	Children    []string `json:"children,omitempty"`
	Retired     bool     `json:"retired,omitempty"`
}
