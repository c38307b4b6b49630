package model

import "time"

// UnknownTitle marks a stakeholder whose title could not be extracted.
const UnknownTitle = "Unknown"

// Stakeholder is a decision-maker at a company.
type Stakeholder struct {
	ID                     string     `json:"id"`
	CompanyID              string     `json:"company_id"`
	CompanyName            string     `json:"company_name"`
	Name                   string     `json:"name"`
	NameSource             NameSource `json:"name_source"`
	Title                  string     `json:"title"`
	Department             string     `json:"department"`
	DecisionMakerScore     float64    `json:"decision_maker_score"`
	DecisionMakerRationale string     `json:"decision_maker_rationale"`
	LinkedInURL            string     `json:"linkedin_url"`
	Email                  string     `json:"email"`
	Priority               Tier       `json:"priority"`
	Responsibilities       []string   `json:"responsibilities"`
	Influence              string     `json:"influence"`
	RelevantBenefits       []string   `json:"relevant_benefits"`
	CustomerSegment        string     `json:"customer_segment"`
	SalesNavigatorQuery    string     `json:"sales_navigator_query,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// EntityID implements Entity.
func (s Stakeholder) EntityID() string { return s.ID }

// Usable reports whether the stakeholder has a known title.
func (s Stakeholder) Usable() bool {
	return s.Title != UnknownTitle && s.Title != ""
}
