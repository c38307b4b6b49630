package pipeline

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/icp"
	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scorer"
)

const (
	estimateStakeholders  = 0.03
	estimateSalesNavQuery = 0.01
)

// Key spellings seen in stakeholder replies, in probe order.
var (
	stakeholderWrappers = []string{"stakeholders", "Stakeholders", "people", "People", "decision_makers", "DecisionMakers"}
	stakeholderRecord   = []string{"name", "title", "jobTitle", "JobTitle", "role", "Role"}

	nameKeys             = extract.StringKeys("name", "Name", "contact", "Contact", "person", "Person")
	titleKeys            = extract.StringKeys("title", "Title", "jobTitle", "JobTitle", "role", "Role", "position", "Position")
	departmentKeys       = extract.StringKeys("department", "Department", "function", "Function")
	scoreKeys            = extract.NumberKeys("decision_maker_score", "decisionMakerScore", "DecisionMakerScore", "score", "Score", "relevance", "Relevance", "priority_score", "PriorityScore")
	rationaleKeys        = extract.StringKeys("rationale", "Rationale", "decision_maker_rationale", "decisionMakerRationale", "justification", "Justification", "reason", "Reason", "explanation", "Explanation", "JobChallengesAddressed", "jobChallengesAddressed")
	linkedInKeys         = extract.StringKeys("linkedin_url", "linkedinUrl", "LinkedinUrl", "linkedin", "Linkedin", "linkedInProfile", "LinkedInProfile")
	emailKeys            = extract.StringKeys("email", "Email")
	responsibilitiesKeys = extract.ListKeys("responsibilities", "Responsibilities", "duties", "Duties", "role_details", "RoleDetails")
	influenceKeys        = extract.StringKeys("influence", "Influence", "influenceInPurchasing", "InfluenceInPurchasing")
	benefitsKeys         = extract.ListKeys("relevant_benefits", "relevantBenefits", "tedlarBenefits", "TedlarBenefits", "benefits", "Benefits")
)

// StakeholderOptions limits the stakeholders stage.
type StakeholderOptions struct {
	LimitCompanies    int
	LimitStakeholders int // per company
}

// StakeholderResult summarizes a stakeholders run.
type StakeholderResult struct {
	Stakeholders []model.Stakeholder
	Companies    int
	Fallbacks    int
	Queries      int
}

// Stakeholders identifies decision-makers at each usable company and saves
// them in priority order.
func (p *Pipeline) Stakeholders(ctx context.Context, opts StakeholderOptions) (*StakeholderResult, error) {
	log := zap.L().With(zap.String("stage", StageStakeholders))

	all, err := p.store.Companies.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load companies")
	}
	companies := make([]model.Company, 0, len(all))
	for _, c := range all {
		if !c.Usable() {
			log.Debug("pipeline: skipping company without an extracted name", zap.String("company_id", c.ID))
			continue
		}
		companies = append(companies, c)
	}
	if len(companies) == 0 {
		return nil, &MissingInputError{Stage: StageStakeholders, Prerequisite: StageCompanies}
	}
	model.SortCompanies(companies)
	companies = limit(companies, opts.LimitCompanies)
	log.Info("pipeline: starting stakeholder identification", zap.Int("companies", len(companies)))

	res := &StakeholderResult{Companies: len(companies)}
	var found []model.Stakeholder
	for _, c := range companies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		people, fallback := p.identifyStakeholders(ctx, log, c)
		if fallback {
			res.Fallbacks++
		}
		people = limit(people, opts.LimitStakeholders)
		for i := range people {
			if p.addSalesNavigatorQuery(ctx, log, c, &people[i]) {
				res.Queries++
			}
		}
		found = append(found, people...)
	}

	prioritizeStakeholders(p.scorer, found)
	for _, s := range found {
		if err := p.store.Stakeholders.Put(ctx, s); err != nil {
			return nil, eris.Wrapf(err, "pipeline: save stakeholder %s", s.Name)
		}
	}
	res.Stakeholders = found

	usable := 0
	for _, s := range found {
		if s.Usable() {
			usable++
		}
	}
	log.Info("pipeline: stakeholder identification complete",
		zap.Int("stakeholders", len(found)),
		zap.Int("usable", usable),
		zap.Int("fallback_companies", res.Fallbacks),
		zap.Int("queries", res.Queries),
	)
	return res, nil
}

// identifyStakeholders asks for the company's decision-makers. When the reply
// yields none, the segment's fallback contacts stand in; fallback reports
// that substitution. A budget denial yields nothing.
func (p *Pipeline) identifyStakeholders(ctx context.Context, log *zap.Logger, c model.Company) (people []model.Stakeholder, fallback bool) {
	log = log.With(zap.String("company", c.Name))
	segment := c.CustomerSegment
	if segment == "" {
		segment = p.scorer.SegmentFromIndustry(c.Industry)
	}

	if !p.allowed(log, ModuleStakeholders, "identify_stakeholders", estimateStakeholders) {
		return nil, false
	}
	resp := p.llm.Invoke(ctx, llm.Request{
		System:      systemContext(p.profile),
		Prompt:      stakeholderRequest(p.profile, c, segment, p.scorer.DecisionMakers(segment)),
		Tier:        llm.TierFor(c.LeadPriority.Premium()),
		Temperature: 0.4,
		MaxTokens:   1200,
		Module:      ModuleStakeholders,
		Operation:   "identify_stakeholders",
	})

	var records []map[string]any
	if resp.Failed() {
		log.Warn("pipeline: stakeholder identification failed", zap.Error(resp.Err))
	} else {
		records = extract.Objects(resp.Text, stakeholderWrappers, stakeholderRecord)
	}

	if len(records) == 0 {
		log.Warn("pipeline: no stakeholders recovered, using segment contacts", zap.String("segment", segment))
		seg := p.profile.SegmentOrDefault(segment)
		for _, fc := range seg.FallbackContacts {
			people = append(people, p.fallbackStakeholder(c, segment, fc))
		}
		return people, true
	}

	for _, rec := range records {
		people = append(people, p.stakeholderFrom(rec, c, segment))
	}
	return people, false
}

func (p *Pipeline) stakeholderFrom(rec map[string]any, c model.Company, segment string) model.Stakeholder {
	title := extract.Or(rec, model.UnknownTitle, titleKeys)
	s := model.Stakeholder{
		ID:                     p.newID(),
		CompanyID:              c.ID,
		CompanyName:            c.Name,
		NameSource:             model.NameExtracted,
		Title:                  title,
		Department:             extract.Or(rec, "", departmentKeys),
		DecisionMakerScore:     scorer.Clamp(extract.Or(rec, p.profile.Stakeholders.DefaultScore, scoreKeys)),
		DecisionMakerRationale: extract.Or(rec, "", rationaleKeys),
		LinkedInURL:            extract.Or(rec, "", linkedInKeys),
		Email:                  extract.Or(rec, "", emailKeys),
		Responsibilities:       extract.Or(rec, []string(nil), responsibilitiesKeys),
		Influence:              extract.Or(rec, "", influenceKeys),
		RelevantBenefits:       extract.Or(rec, []string(nil), benefitsKeys),
		CustomerSegment:        segment,
		CreatedAt:              p.timestamp(),
	}
	if name, ok := extract.First(rec, nameKeys); ok {
		s.Name = name
	} else {
		s.Name = placeholderName(p.profile, title)
		s.NameSource = model.NameSynthesized
	}
	return s
}

func (p *Pipeline) fallbackStakeholder(c model.Company, segment string, fc icp.Contact) model.Stakeholder {
	return model.Stakeholder{
		ID:                     p.newID(),
		CompanyID:              c.ID,
		CompanyName:            c.Name,
		Name:                   fc.Name,
		NameSource:             model.NameSynthesized,
		Title:                  fc.Title,
		DecisionMakerScore:     fc.Score,
		DecisionMakerRationale: fc.Rationale,
		CustomerSegment:        segment,
		CreatedAt:              p.timestamp(),
	}
}

// placeholderName derives a stable stand-in name from a title. Names used by
// any segment's fallback contacts are skipped so a synthesized person never
// collides with one.
func placeholderName(profile *icp.Profile, title string) string {
	policy := profile.Stakeholders
	nf, nl := len(policy.FirstNames), len(policy.LastNames)
	if nf == 0 || nl == 0 {
		return "Contact"
	}
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(title)))) //nolint:errcheck
	sum := h.Sum32()

	reserved := profile.FallbackContactNames()
	n := uint32(nf * nl)
	name := ""
	for k := uint32(0); k < n; k++ {
		idx := (sum + k) % n
		candidate := policy.FirstNames[idx%uint32(nf)] + " " + policy.LastNames[idx/uint32(nf)]
		if k == 0 {
			name = candidate
		}
		if !reserved[candidate] {
			return candidate
		}
	}
	return name
}

// addSalesNavigatorQuery attaches a people-search query for stakeholders
// scoring at or above the query threshold. It reports whether one was added.
func (p *Pipeline) addSalesNavigatorQuery(ctx context.Context, log *zap.Logger, c model.Company, s *model.Stakeholder) bool {
	if s.DecisionMakerScore < p.profile.Stakeholders.QueryThreshold || !s.Usable() {
		return false
	}
	log = log.With(zap.String("company", c.Name), zap.String("stakeholder", s.Name))
	if !p.allowed(log, ModuleStakeholders, "sales_navigator_query", estimateSalesNavQuery) {
		return false
	}
	resp := p.llm.Invoke(ctx, llm.Request{
		System:      systemContext(p.profile),
		Prompt:      salesNavigatorRequest(c, *s),
		Tier:        llm.TierEconomy,
		Temperature: 0.2,
		MaxTokens:   300,
		Module:      ModuleStakeholders,
		Operation:   "sales_navigator_query",
	})
	if resp.Failed() {
		log.Warn("pipeline: sales navigator query failed", zap.Error(resp.Err))
		return false
	}
	q := strings.TrimSpace(resp.Text)
	if q == "" {
		return false
	}
	s.SalesNavigatorQuery = q
	return true
}

// prioritizeStakeholders assigns tiers and sorts high first, by score
// within each tier.
func prioritizeStakeholders(e *scorer.Engine, ss []model.Stakeholder) {
	for i := range ss {
		ss[i].Priority = e.TierForScore(ss[i].DecisionMakerScore)
	}
	model.SortStakeholders(ss)
}
