// Package icp holds the ideal-customer profile: the fixed description of the
// product, target segments, seed gatherings and scoring policy that every
// pipeline stage consults.
package icp

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed profile.yaml
var defaultProfile []byte

//go:embed schema.json
var profileSchema []byte

// Profile is the immutable ideal-customer profile.
type Profile struct {
	Product             Product           `yaml:"product"`
	ProductLines        []ProductLine     `yaml:"product_lines"`
	KeyBenefits         []string          `yaml:"key_benefits"`
	DefaultIndustry     string            `yaml:"default_industry"`
	DefaultSegment      string            `yaml:"default_segment"`
	Segments            []Segment         `yaml:"segments"`
	UseCases            []UseCaseCategory `yaml:"use_cases"`
	SeedEvents          []SeedEvent       `yaml:"seed_events"`
	SeedAssociations    []SeedAssociation `yaml:"seed_associations"`
	MajorEvents         []string          `yaml:"major_events"`
	AssociationKeywords []string          `yaml:"association_keywords"`
	Scoring             Scoring           `yaml:"scoring"`
	Stakeholders        StakeholderPolicy `yaml:"stakeholders"`
	ExampleCompany      ExampleCompany    `yaml:"example_company"`
	Outreach            OutreachPolicy    `yaml:"outreach"`
}

// Product describes what is being sold.
type Product struct {
	Name                 string   `yaml:"name"`
	Description          string   `yaml:"description"`
	TotalCostOfOwnership string   `yaml:"total_cost_of_ownership"`
	Competitors          []string `yaml:"competitors"`
}

// ProductLine is a sellable variant with the keywords that suggest it.
type ProductLine struct {
	Code        string   `yaml:"code"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
}

// Segment is one of the target customer segments.
type Segment struct {
	Name             string    `yaml:"name"`
	Keywords         []string  `yaml:"keywords"`
	IndustryHints    []string  `yaml:"industry_hints"`
	DecisionMakers   []string  `yaml:"decision_makers"`
	PainPoints       []string  `yaml:"pain_points"`
	FallbackContacts []Contact `yaml:"fallback_contacts"`
}

// Contact is a deterministic stand-in stakeholder for a segment.
type Contact struct {
	Name      string  `yaml:"name"`
	Title     string  `yaml:"title"`
	Score     float64 `yaml:"score"`
	Rationale string  `yaml:"rationale"`
}

// UseCaseCategory groups example applications.
type UseCaseCategory struct {
	Category     string   `yaml:"category"`
	Applications []string `yaml:"applications"`
}

// SeedEvent is a curated industry event.
type SeedEvent struct {
	Name      string `yaml:"name"`
	Date      string `yaml:"date"`
	Location  string `yaml:"location"`
	Attendees string `yaml:"attendees"`
	Relevance string `yaml:"relevance"`
	Website   string `yaml:"website"`
}

// SeedAssociation is a curated trade association.
type SeedAssociation struct {
	Name      string `yaml:"name"`
	Members   string `yaml:"members"`
	Relevance string `yaml:"relevance"`
	Website   string `yaml:"website"`
}

// Scoring is the weighted lead-scoring policy.
type Scoring struct {
	Criteria             []Criterion `yaml:"criteria"`
	Thresholds           Thresholds  `yaml:"thresholds"`
	Tiers                TierCutoffs `yaml:"tiers"`
	SeedEventScore       float64     `yaml:"seed_event_score"`
	SeedAssociationScore float64     `yaml:"seed_association_score"`
}

// Criterion is one weighted qualification dimension.
type Criterion struct {
	Name        string  `yaml:"name"`
	Weight      float64 `yaml:"weight"`
	Description string  `yaml:"description"`
}

// Thresholds are the inclusive lower bounds of the lead priority tiers.
type Thresholds struct {
	MinimumQualification float64 `yaml:"minimum_qualification"`
	HighPriority         float64 `yaml:"high_priority"`
	Exceptional          float64 `yaml:"exceptional"`
}

// TierCutoffs are the high/medium bounds for gatherings and stakeholders.
type TierCutoffs struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// StakeholderPolicy holds stakeholder defaults.
type StakeholderPolicy struct {
	DefaultScore   float64  `yaml:"default_score"`
	QueryThreshold float64  `yaml:"query_threshold"`
	FirstNames     []string `yaml:"first_names"`
	LastNames      []string `yaml:"last_names"`
}

// ExampleCompany substitutes for an unparseable discovery response.
type ExampleCompany struct {
	Name            string  `yaml:"name"`
	Industry        string  `yaml:"industry"`
	Description     string  `yaml:"description"`
	RevenueEstimate string  `yaml:"revenue_estimate"`
	SizeEstimate    string  `yaml:"size_estimate"`
	Website         string  `yaml:"website"`
	Score           float64 `yaml:"score"`
	Rationale       string  `yaml:"rationale"`
}

// OutreachPolicy holds role detection keywords and per-role message defaults.
type OutreachPolicy struct {
	TechnicalKeywords []string     `yaml:"technical_keywords"`
	Technical         RoleDefaults `yaml:"technical"`
	Business          RoleDefaults `yaml:"business"`
}

// RoleDefaults are the fallback message parts for one audience.
type RoleDefaults struct {
	SubjectTemplate   string   `yaml:"subject_template"`
	ValuePropositions []string `yaml:"value_propositions"`
	CallToAction      string   `yaml:"call_to_action"`
}

// Default returns the embedded profile.
func Default() (*Profile, error) {
	return Parse(defaultProfile)
}

// Load reads a profile from path, or the embedded profile when path is empty.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "icp: read profile %s", path)
	}
	return Parse(data)
}

// Parse validates raw YAML against the profile schema and decodes it.
func Parse(data []byte) (*Profile, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "icp: parse yaml")
	}
	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "icp: decode profile")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func validateSchema(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(profileSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return eris.Wrap(err, "icp: schema validation")
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return eris.Errorf("icp: profile does not match schema: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks cross-field rules the schema cannot express.
func (p *Profile) Validate() error {
	var errs []string

	t := p.Scoring.Thresholds
	if t.MinimumQualification > t.HighPriority || t.HighPriority > t.Exceptional {
		errs = append(errs, "scoring thresholds must ascend: minimum_qualification <= high_priority <= exceptional")
	}
	if p.Scoring.Tiers.Medium > p.Scoring.Tiers.High {
		errs = append(errs, "scoring tiers must ascend: medium <= high")
	}
	if p.Segment(p.DefaultSegment) == nil {
		errs = append(errs, "default_segment "+p.DefaultSegment+" is not a declared segment")
	}

	seen := make(map[string]bool, len(p.Scoring.Criteria))
	for _, c := range p.Scoring.Criteria {
		if seen[c.Name] {
			errs = append(errs, "duplicate criterion "+c.Name)
		}
		seen[c.Name] = true
	}

	if len(errs) > 0 {
		return eris.Errorf("icp: profile validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Segment looks up a segment by exact name.
func (p *Profile) Segment(name string) *Segment {
	for i := range p.Segments {
		if p.Segments[i].Name == name {
			return &p.Segments[i]
		}
	}
	return nil
}

// SegmentOrDefault looks up a segment, falling back to the default segment.
func (p *Profile) SegmentOrDefault(name string) *Segment {
	if s := p.Segment(name); s != nil {
		return s
	}
	return p.Segment(p.DefaultSegment)
}

// FallbackContactNames returns the names of every segment's fallback contacts.
func (p *Profile) FallbackContactNames() map[string]bool {
	out := make(map[string]bool)
	for _, seg := range p.Segments {
		for _, c := range seg.FallbackContacts {
			out[c.Name] = true
		}
	}
	return out
}

// RoleDefaults returns the outreach defaults for a technical or business audience.
func (o OutreachPolicy) RoleDefaults(technical bool) RoleDefaults {
	if technical {
		return o.Technical
	}
	return o.Business
}
