package model

import (
	"strings"
	"time"
)

// Company is a prospect discovered through a gathering.
type Company struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	NameSource             NameSource     `json:"name_source"`
	Industry               string         `json:"industry"`
	Description            string         `json:"description"`
	RevenueEstimate        string         `json:"revenue_estimate"`
	SizeEstimate           string         `json:"size_estimate"`
	Website                string         `json:"website"`
	InitialScore           float64        `json:"initial_score"`
	QualificationScore     float64        `json:"qualification_score"`
	QualificationRationale string         `json:"qualification_rationale"`
	LeadPriority           LeadPriority   `json:"lead_priority,omitempty"`
	CustomerSegment        string         `json:"customer_segment,omitempty"`
	SourceGatheringID      string         `json:"source_gathering_id,omitempty"`
	SourceGatheringName    string         `json:"source_gathering_name,omitempty"`
	SourceGatheringKind    GatheringKind  `json:"source_gathering_kind,omitempty"`
	DetailedQualification  *Qualification `json:"detailed_qualification,omitempty"`
	DiscoveredAt           time.Time      `json:"discovered_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// Qualification is the per-criterion breakdown behind a qualification score.
type Qualification struct {
	CriterionScores         map[string]float64 `json:"criterion_scores"`
	CriterionJustifications map[string]string  `json:"criterion_justifications"`
	UseCases                []string           `json:"use_cases"`
	PainPoints              []string           `json:"pain_points"`
	RawQualification        map[string]any     `json:"raw_qualification,omitempty"`
}

// EntityID implements Entity.
func (c Company) EntityID() string { return c.ID }

// Usable reports whether the company carries a real extracted name and may
// flow into downstream stages.
func (c Company) Usable() bool {
	return c.NameSource != NameSynthesized && strings.TrimSpace(c.Name) != ""
}
