package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scorer"
)

const (
	estimateCompanyDiscovery     = 0.02
	estimateQualificationPremium = 0.10
	estimateQualificationEconomy = 0.02
)

var (
	companyWrappers = []string{"companies", "Companies", "results", "prospects"}
	companyRecord   = []string{"name", "company_name", "Name", "company"}

	// Criterion objects are sometimes nested one level down.
	criteriaWrappers = []string{"scores", "criteria", "criterion_scores", "lead_scoring", "evaluation"}
)

// CompanyOptions limits the companies stage.
type CompanyOptions struct {
	LimitGatherings int
	LimitCompanies  int
}

// CompanyResult summarizes a companies run.
type CompanyResult struct {
	Companies  []model.Company
	Candidates int
	Qualified  int
}

// Companies proposes candidate companies for each gathering, deduplicates
// them by name, qualifies each one and saves them in priority order.
func (p *Pipeline) Companies(ctx context.Context, opts CompanyOptions) (*CompanyResult, error) {
	log := zap.L().With(zap.String("stage", StageCompanies))

	gatherings, err := p.store.Gatherings.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load gatherings")
	}
	if len(gatherings) == 0 {
		return nil, &MissingInputError{Stage: StageCompanies, Prerequisite: StageGather}
	}
	sortGatherings(gatherings)
	gatherings = limit(gatherings, opts.LimitGatherings)
	log.Info("pipeline: starting company discovery", zap.Int("gatherings", len(gatherings)))

	var candidates []model.Company
	for _, g := range gatherings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates = append(candidates, p.discoverCompanies(ctx, log, g)...)
	}

	unique := dedupeCompanies(candidates)
	unique = limit(unique, opts.LimitCompanies)
	res := &CompanyResult{Candidates: len(candidates)}

	for i := range unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.qualify(ctx, log, &unique[i]) {
			res.Qualified++
		}
	}

	model.SortCompanies(unique)
	for _, c := range unique {
		if err := p.store.Companies.Put(ctx, c); err != nil {
			return nil, eris.Wrapf(err, "pipeline: save company %s", c.Name)
		}
	}
	res.Companies = unique

	counts := make(map[model.LeadPriority]int)
	for _, c := range unique {
		counts[c.LeadPriority]++
	}
	log.Info("pipeline: company analysis complete",
		zap.Int("candidates", res.Candidates),
		zap.Int("unique", len(unique)),
		zap.Int("qualified_by_model", res.Qualified),
		zap.Int("exceptional", counts[model.LeadExceptional]),
		zap.Int("high_priority", counts[model.LeadHighPriority]),
		zap.Int("qualified", counts[model.LeadQualified]),
	)
	return res, nil
}

// sortGatherings puts high-priority gatherings first, then by relevance.
func sortGatherings(gs []model.Gathering) {
	sort.SliceStable(gs, func(i, j int) bool {
		if ri, rj := gs[i].Priority.Rank(), gs[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return gs[i].RelevanceScore > gs[j].RelevanceScore
	})
}

// discoverCompanies proposes candidates for one gathering. A reply with no
// recoverable company list yields the profile's example company.
func (p *Pipeline) discoverCompanies(ctx context.Context, log *zap.Logger, g model.Gathering) []model.Company {
	log = log.With(zap.String("gathering", g.Name))
	if !p.allowed(log, ModuleCompanyAnalysis, "company_discovery", estimateCompanyDiscovery) {
		return nil
	}
	resp := p.llm.Invoke(ctx, llm.Request{
		System:      systemContext(p.profile),
		Prompt:      companyDiscoveryRequest(g),
		Tier:        llm.TierEconomy,
		Temperature: 0.2,
		MaxTokens:   800,
		Module:      ModuleCompanyAnalysis,
		Operation:   "company_discovery",
	})

	var records []map[string]any
	if resp.Failed() {
		log.Warn("pipeline: company discovery failed", zap.Error(resp.Err))
	} else {
		records = extract.Objects(resp.Text, companyWrappers, companyRecord)
	}
	if len(records) == 0 {
		log.Warn("pipeline: no companies recovered, using example company")
		return []model.Company{p.exampleCompany(g)}
	}

	out := make([]model.Company, len(records))
	for i, rec := range records {
		out[i] = p.companyFrom(rec, g)
	}
	log.Debug("pipeline: companies discovered", zap.Int("count", len(out)))
	return out
}

func (p *Pipeline) companyFrom(rec map[string]any, g model.Gathering) model.Company {
	now := p.timestamp()
	c := model.Company{
		ID:              p.newID(),
		NameSource:      model.NameExtracted,
		Industry:        extract.Or(rec, p.profile.DefaultIndustry, extract.StringKeys("industry", "Industry", "industry_focus")),
		Description:     extract.Or(rec, "", extract.StringKeys("description", "Description")),
		RevenueEstimate: extract.Or(rec, "Unknown", extract.StringKeys("revenue_estimate", "revenueEstimate", "revenue")),
		SizeEstimate:    extract.Or(rec, "Unknown", extract.StringKeys("size_estimate", "sizeEstimate", "size", "employees")),
		Website:         extract.Or(rec, "", extract.StringKeys("website", "Website", "url")),
		InitialScore: scorer.Clamp(extract.Or(rec, 0.0,
			extract.NumberKeys("qualification_score", "initial_qualification_score", "initial_score", "score"))),
		QualificationRationale: extract.Or(rec, "",
			extract.StringKeys("why_relevant", "why_attend", "rationale", "reason", "tedlar_use")),
		DiscoveredAt: now,
		UpdatedAt:    now,
	}
	c.QualificationScore = c.InitialScore
	setSource(&c, g)

	if name, ok := extract.First(rec, extract.StringKeys(companyRecord...)); ok {
		c.Name = name
	} else {
		c.Name = "Company-" + shortID(c.ID)
		c.NameSource = model.NameSynthesized
	}
	return c
}

func (p *Pipeline) exampleCompany(g model.Gathering) model.Company {
	ex := p.profile.ExampleCompany
	now := p.timestamp()
	c := model.Company{
		ID:                     p.newID(),
		Name:                   ex.Name,
		NameSource:             model.NameExtracted,
		Industry:               ex.Industry,
		Description:            ex.Description,
		RevenueEstimate:        ex.RevenueEstimate,
		SizeEstimate:           ex.SizeEstimate,
		Website:                ex.Website,
		InitialScore:           ex.Score,
		QualificationScore:     ex.Score,
		QualificationRationale: ex.Rationale,
		DiscoveredAt:           now,
		UpdatedAt:              now,
	}
	setSource(&c, g)
	return c
}

func setSource(c *model.Company, g model.Gathering) {
	c.SourceGatheringID = g.ID
	c.SourceGatheringName = g.Name
	c.SourceGatheringKind = g.Kind
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// companyKey is the dedup key: the case-folded trimmed name. Synthesized
// names never collide with each other or with real names.
func companyKey(c model.Company) string {
	if c.NameSource == model.NameSynthesized {
		return "\x00" + c.ID
	}
	return cases.Fold().String(strings.TrimSpace(c.Name))
}

// dedupeCompanies keeps one company per name, the one with the highest
// initial score. Ties keep the first seen. Order follows first appearance.
func dedupeCompanies(in []model.Company) []model.Company {
	idx := make(map[string]int, len(in))
	out := make([]model.Company, 0, len(in))
	for _, c := range in {
		k := companyKey(c)
		if i, ok := idx[k]; ok {
			if c.InitialScore > out[i].InitialScore {
				out[i] = c
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, c)
	}
	return out
}

// qualify scores the company on the profile's criteria. Without a usable
// reply the company keeps its discovery data and is ranked by its initial
// score. It reports whether a model qualification was applied.
func (p *Pipeline) qualify(ctx context.Context, log *zap.Logger, c *model.Company) bool {
	log = log.With(zap.String("company", c.Name))
	defer func() {
		c.LeadPriority = p.scorer.PriorityForScore(c.QualificationScore)
		if c.CustomerSegment == "" {
			c.CustomerSegment = p.scorer.InferSegment(c.Industry, c.Description)
		}
		c.UpdatedAt = p.timestamp()
	}()

	premium := p.scorer.PremiumEscalation(c.InitialScore)
	estimate := estimateQualificationEconomy
	if premium {
		estimate = estimateQualificationPremium
	}
	if !p.allowed(log, ModuleCompanyAnalysis, "qualification", estimate) {
		return false
	}

	resp := p.llm.Invoke(ctx, llm.Request{
		System:      systemContext(p.profile),
		Prompt:      qualificationRequest(p.profile, *c),
		Tier:        llm.TierFor(premium),
		Temperature: 0.3,
		MaxTokens:   1500,
		Module:      ModuleCompanyAnalysis,
		Operation:   "qualification",
	})
	if resp.Failed() {
		log.Warn("pipeline: qualification failed, keeping initial score", zap.Error(resp.Err))
		return false
	}
	obj, ok := extract.ObjectFrom(resp.Text)
	if !ok {
		log.Warn("pipeline: qualification reply was not JSON, keeping initial score")
		return false
	}

	q := p.readQualification(obj)
	if len(q.CriterionScores) == 0 {
		log.Warn("pipeline: qualification reply carried no criterion scores, keeping initial score")
		return false
	}

	segment := p.scorer.InferSegment(c.Industry, c.Description)
	c.QualificationScore = p.scorer.WeightedScore(q.CriterionScores)
	c.CustomerSegment = segment
	c.QualificationRationale = p.scorer.Rationale(scorer.RationaleInput{
		CompanyName:    c.Name,
		Segment:        segment,
		Scores:         q.CriterionScores,
		Justifications: q.CriterionJustifications,
		UseCases:       q.UseCases,
		PainPoints:     q.PainPoints,
	})
	c.DetailedQualification = q
	log.Debug("pipeline: company qualified",
		zap.Float64("score", c.QualificationScore),
		zap.Int("criteria", len(q.CriterionScores)),
	)
	return true
}

func (p *Pipeline) readQualification(obj map[string]any) *model.Qualification {
	q := &model.Qualification{
		CriterionScores:         make(map[string]float64),
		CriterionJustifications: make(map[string]string),
		RawQualification:        obj,
	}

	sources := []map[string]any{obj}
	for _, k := range criteriaWrappers {
		if inner, ok := obj[k].(map[string]any); ok {
			sources = append(sources, inner)
		}
	}
	for _, cr := range p.profile.Scoring.Criteria {
		for _, src := range sources {
			if score, just, ok := extract.Criterion(src, cr.Name); ok {
				q.CriterionScores[cr.Name] = scorer.Clamp(score)
				if just != "" {
					q.CriterionJustifications[cr.Name] = just
				}
				break
			}
		}
	}

	q.UseCases = extract.Or(obj, []string(nil), extract.ListKeys("use_cases", "useCases", "UseCases", "tedlar_use_cases"))
	q.PainPoints = extract.Or(obj, []string(nil), extract.ListKeys("pain_points", "painPoints", "PainPoints", "challenges"))
	return q
}

