package model

// Tier is the high/medium/low ranking shared by gatherings and stakeholders.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Rank orders tiers for sorting; lower ranks sort first.
func (t Tier) Rank() int {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 1
	case TierLow:
		return 2
	default:
		return 3
	}
}

// LeadPriority is the qualification tier of a company.
type LeadPriority string

const (
	LeadExceptional  LeadPriority = "exceptional"
	LeadHighPriority LeadPriority = "high_priority"
	LeadQualified    LeadPriority = "qualified"
	LeadUnqualified  LeadPriority = "unqualified"
)

// Bucket groups lead priorities for global ordering: exceptional and
// high_priority share the first bucket, qualified is second, and
// everything else (including unscored companies) is last.
func (p LeadPriority) Bucket() int {
	switch p {
	case LeadExceptional, LeadHighPriority:
		return 0
	case LeadQualified:
		return 1
	default:
		return 2
	}
}

// Premium reports whether the lead deserves premium-tier model calls.
func (p LeadPriority) Premium() bool {
	return p == LeadExceptional || p == LeadHighPriority
}

// NameSource records whether an entity name came from model output or was
// generated because none was found.
type NameSource string

const (
	NameExtracted   NameSource = "extracted"
	NameSynthesized NameSource = "synthesized"
)
