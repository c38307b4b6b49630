package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scorer"
)

const (
	estimateDiscovery = 0.02
	estimateRelevance = 0.06
)

var (
	gatheringWrappers = []string{"gatherings", "Gatherings", "events", "Events", "associations", "results"}
	gatheringRecord   = []string{"name", "Name", "event_name", "title"}
)

// GatherOptions limits the gather stage.
type GatherOptions struct {
	// Limit caps how many merged gatherings are analyzed and saved.
	Limit int
}

// GatherResult summarizes a gather run.
type GatherResult struct {
	Gatherings []model.Gathering
	Discovered int
	Analyzed   int
}

// Gather discovers industry gatherings, merges them with the curated seeds,
// refines each one's relevance and saves them in priority order.
func (p *Pipeline) Gather(ctx context.Context, opts GatherOptions) (*GatherResult, error) {
	log := zap.L().With(zap.String("stage", StageGather))
	log.Info("pipeline: starting gathering discovery")

	discovered := p.discoverGatherings(ctx, log)
	merged := p.mergeGatherings(discovered)
	merged = limit(merged, opts.Limit)

	res := &GatherResult{Discovered: len(discovered)}
	for i := range merged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.refineRelevance(ctx, log, &merged[i]) {
			res.Analyzed++
		}
	}

	prioritizeGatherings(p.scorer, merged)
	for _, g := range merged {
		if err := p.store.Gatherings.Put(ctx, g); err != nil {
			return nil, eris.Wrapf(err, "pipeline: save gathering %s", g.Name)
		}
	}
	res.Gatherings = merged

	high := 0
	for _, g := range merged {
		if g.Priority == model.TierHigh {
			high++
		}
	}
	log.Info("pipeline: gathering discovery complete",
		zap.Int("gatherings", len(merged)),
		zap.Int("discovered", res.Discovered),
		zap.Int("analyzed", res.Analyzed),
		zap.Int("high_priority", high),
	)
	return res, nil
}

// discoverGatherings runs the real-time search. Any failure yields an empty
// set so the curated seeds still flow through.
func (p *Pipeline) discoverGatherings(ctx context.Context, log *zap.Logger) []model.Gathering {
	if !p.allowed(log, ModuleEventResearch, "initial_discovery", estimateDiscovery) {
		return nil
	}
	resp := p.llm.Search(ctx, llm.SearchRequest{
		System:      systemContext(p.profile),
		Query:       fmt.Sprintf(discoveryQuery, p.profile.Product.Name),
		Temperature: 0.1,
		MaxTokens:   2000,
		Module:      ModuleEventResearch,
		Operation:   "initial_discovery",
	})
	if resp.Failed() {
		log.Warn("pipeline: gathering search failed, using curated gatherings only", zap.Error(resp.Err))
		return nil
	}

	records := extract.Objects(resp.Text, gatheringWrappers, gatheringRecord)
	if len(records) == 0 {
		log.Warn("pipeline: no gatherings recovered from search reply", zap.Int("reply_len", len(resp.Text)))
		return nil
	}

	out := make([]model.Gathering, 0, len(records))
	for _, rec := range records {
		g, ok := p.gatheringFrom(rec)
		if !ok {
			log.Debug("pipeline: skipping unnamed gathering")
			continue
		}
		out = append(out, g)
	}
	return out
}

func (p *Pipeline) gatheringFrom(rec map[string]any) (model.Gathering, bool) {
	name, ok := extract.First(rec, extract.StringKeys(gatheringRecord...))
	if !ok {
		return model.Gathering{}, false
	}

	kind := p.classifyGathering(name, extract.Or(rec, "", extract.StringKeys("type", "Type", "kind")))
	g := model.Gathering{
		ID:          p.newID(),
		Name:        name,
		Kind:        kind,
		Date:        extract.Or(rec, "", extract.StringKeys("date", "Date", "dates")),
		Location:    extract.Or(rec, "", extract.StringKeys("location", "Location")),
		Description: extract.Or(rec, "", extract.StringKeys("description", "Description")),
		Website:     extract.Or(rec, "", extract.StringKeys("website", "Website", "url")),
		RelevanceScore: scorer.Clamp(extract.Or(rec, 0.0,
			extract.NumberKeys("relevance_score", "relevanceScore", "estimated_relevance_score", "score"))),
		RelevanceRationale: extract.Or(rec, "",
			extract.StringKeys("why_relevant", "relevance_rationale", "relevance", "rationale")),
		Source:    model.SourceDiscovered,
		CreatedAt: p.timestamp(),
	}
	if kind == model.KindAssociation {
		if g.Date == "" {
			g.Date = "Ongoing"
		}
		if g.Location == "" {
			g.Location = "Various"
		}
	}
	return g, true
}

// classifyGathering trusts an explicit type label, else treats
// organizational-sounding names as associations.
func (p *Pipeline) classifyGathering(name, label string) model.GatheringKind {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "association", "organization", "organisation":
		return model.KindAssociation
	case "event", "conference", "expo", "trade show":
		return model.KindEvent
	}
	lower := strings.ToLower(name)
	for _, kw := range p.profile.AssociationKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return model.KindAssociation
		}
	}
	return model.KindEvent
}

// mergeGatherings puts the curated events and associations first, then every
// discovered gathering whose name is not already present.
func (p *Pipeline) mergeGatherings(discovered []model.Gathering) []model.Gathering {
	now := p.timestamp()
	sc := p.profile.Scoring

	out := make([]model.Gathering, 0, len(p.profile.SeedEvents)+len(p.profile.SeedAssociations)+len(discovered))
	for _, e := range p.profile.SeedEvents {
		out = append(out, model.Gathering{
			ID:                 p.newID(),
			Name:               e.Name,
			Kind:               model.KindEvent,
			Date:               e.Date,
			Location:           e.Location,
			Description:        e.Relevance,
			Website:            e.Website,
			RelevanceScore:     sc.SeedEventScore,
			RelevanceRationale: fmt.Sprintf("Major industry event with %s focused on %s", e.Attendees, e.Relevance),
			Source:             model.SourceCuratedEvent,
			CreatedAt:          now,
		})
	}
	for _, a := range p.profile.SeedAssociations {
		out = append(out, model.Gathering{
			ID:                 p.newID(),
			Name:               a.Name,
			Kind:               model.KindAssociation,
			Date:               "Ongoing",
			Location:           "Various",
			Description:        a.Relevance,
			Website:            a.Website,
			RelevanceScore:     sc.SeedAssociationScore,
			RelevanceRationale: fmt.Sprintf("Major industry association with %s focused on %s", a.Members, a.Relevance),
			Source:             model.SourceCuratedAssociation,
			CreatedAt:          now,
		})
	}

	seen := make(map[string]bool, len(out)+len(discovered))
	for _, g := range out {
		seen[g.Name] = true
	}
	for _, g := range discovered {
		if seen[g.Name] {
			continue
		}
		seen[g.Name] = true
		out = append(out, g)
	}
	return out
}

// refineRelevance asks the premium model for a scored relevance analysis.
// The gathering keeps its prior score and rationale unless the reply yields
// new ones. It reports whether an analysis was attached.
func (p *Pipeline) refineRelevance(ctx context.Context, log *zap.Logger, g *model.Gathering) bool {
	log = log.With(zap.String("gathering", g.Name))
	if !p.allowed(log, ModuleEventResearch, "relevance_analysis", estimateRelevance) {
		return false
	}
	resp := p.llm.Invoke(ctx, llm.Request{
		System:      systemContext(p.profile),
		Prompt:      relevanceRequest(*g),
		Tier:        llm.TierPremium,
		Temperature: 0.3,
		MaxTokens:   1000,
		Module:      ModuleEventResearch,
		Operation:   "relevance_analysis",
	})
	if resp.Failed() {
		log.Warn("pipeline: relevance analysis failed, keeping initial score", zap.Error(resp.Err))
		return false
	}
	analysis, ok := extract.ObjectFrom(resp.Text)
	if !ok {
		log.Warn("pipeline: relevance reply was not JSON, keeping initial score")
		return false
	}

	if score, rationale, ok := overallRelevance(analysis); ok {
		g.RelevanceScore = scorer.Clamp(score)
		if rationale != "" {
			g.RelevanceRationale = rationale
		}
	} else {
		log.Debug("pipeline: relevance reply carried no overall score")
	}
	g.DetailedAnalysis = analysis
	return true
}

var overallKeys = []string{"overall_event_priority", "overall_relevance_score", "overall_relevance", "overall_score", "relevance_score"}

func overallRelevance(analysis map[string]any) (float64, string, bool) {
	for _, k := range overallKeys {
		if score, just, ok := extract.Criterion(analysis, k); ok {
			if just == "" {
				just = extract.Or(analysis, "", extract.StringKeys("final_recommendation", "recommendation", "justification"))
			}
			return score, just, true
		}
	}
	return 0, "", false
}

// prioritizeGatherings sorts by relevance, highest first, and assigns tiers.
func prioritizeGatherings(e *scorer.Engine, gs []model.Gathering) {
	model.SortGatherings(gs)
	for i := range gs {
		gs[i].Priority = e.TierForScore(gs[i].RelevanceScore)
	}
}
