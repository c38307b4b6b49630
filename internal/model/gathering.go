package model

import "time"

// GatheringKind distinguishes events from associations.
type GatheringKind string

const (
	KindEvent       GatheringKind = "event"
	KindAssociation GatheringKind = "association"
)

// Gathering sources.
const (
	SourceCuratedEvent       = "curated_event"
	SourceCuratedAssociation = "curated_association"
	SourceDiscovered         = "discovered"
)

// Gathering is an industry event or trade association.
type Gathering struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Kind               GatheringKind  `json:"kind"`
	Date               string         `json:"date"`
	Location           string         `json:"location"`
	Description        string         `json:"description"`
	Website            string         `json:"website"`
	RelevanceScore     float64        `json:"relevance_score"`
	RelevanceRationale string         `json:"relevance_rationale"`
	Priority           Tier           `json:"priority"`
	Source             string         `json:"source"`
	DetailedAnalysis   map[string]any `json:"detailed_analysis,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// EntityID implements Entity.
func (g Gathering) EntityID() string { return g.ID }
