package model

import "time"

// Role is the audience a message is pitched at.
type Role string

const (
	RoleTechnical Role = "technical"
	RoleBusiness  Role = "business"
)

// OutreachMessage is a drafted first-touch message to a stakeholder.
type OutreachMessage struct {
	ID                     string    `json:"id"`
	StakeholderID          string    `json:"stakeholder_id"`
	CompanyID              string    `json:"company_id"`
	StakeholderName        string    `json:"stakeholder_name"`
	StakeholderTitle       string    `json:"stakeholder_title"`
	CompanyName            string    `json:"company_name"`
	Subject                string    `json:"subject"`
	MessageBody            string    `json:"message_body"`
	PersonalizationFactors []string  `json:"personalization_factors"`
	ValuePropositions      []string  `json:"value_propositions"`
	CallToAction           string    `json:"call_to_action"`
	StakeholderRole        Role      `json:"stakeholder_role"`
	EventName              string    `json:"event_name"`
	Defaulted              []string  `json:"defaulted_fields,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// EntityID implements Entity.
func (m OutreachMessage) EntityID() string { return m.ID }
