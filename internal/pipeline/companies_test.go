package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/model"
)

func seedGatherings(t *testing.T, f *fixture, gs ...model.Gathering) {
	t.Helper()
	for _, g := range gs {
		require.NoError(t, f.store.Gatherings.Put(context.Background(), g))
	}
}

var (
	wrapSummit = model.Gathering{
		ID: "g-wrap", Name: "Wrap Summit", Kind: model.KindEvent,
		RelevanceScore: 9.0, Priority: model.TierHigh,
	}
	localMeetup = model.Gathering{
		ID: "g-local", Name: "Local Meetup", Kind: model.KindEvent,
		RelevanceScore: 5.0, Priority: model.TierLow,
	}
)

const scenarioB = `{
  "industry_relevance": {"score": 9, "justification": "Fleet graphics shop"},
  "product_fit": {"score": 8, "justification": "Needs long-life overlaminates"},
  "decision_maker_access": {"score": 7, "justification": "Owner-operated"},
  "current_engagement": {"score": 6, "justification": "Exhibits regionally"},
  "market_presence": {"score": 5, "justification": "Mid-sized"},
  "use_cases": ["Bus wraps requiring 5-7 year durability"],
  "pain_points": ["Graphics degradation in harsh transit conditions"]
}`

func companiesByName(cs []model.Company) map[string]model.Company {
	out := make(map[string]model.Company, len(cs))
	for _, c := range cs {
		out[c.Name] = c
	}
	return out
}

func TestCompaniesRequiresGatherings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.p.Companies(context.Background(), CompanyOptions{})
	require.Error(t, err)

	var missing *MissingInputError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, StageCompanies, missing.Stage)
	assert.Equal(t, StageGather, missing.Prerequisite)
	assert.Contains(t, err.Error(), "leadgen-cli gather")
	f.llm.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestCompaniesDiscoverQualifyAndRank(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seedGatherings(t, f, localMeetup, wrapSummit)
	allowAll(f.budget)

	f.llm.On("Invoke", mock.Anything, opWith("company_discovery", "Name: Wrap Summit\n")).Return(reply(`{"companies": [
	  {"name": "Acme Signs", "industry": "Sign Manufacturing", "description": "Vehicle wrap and fleet graphics", "qualification_score": 7},
	  {"name": "Beta Graphics", "qualification_score": 5, "why_relevant": "Small print shop"},
	  {"industry": "Printing", "qualification_score": "4"}
	]}`))
	f.llm.On("Invoke", mock.Anything, opWith("company_discovery", "Name: Local Meetup\n")).Return(reply(`[
	  {"name": "acme signs ", "qualification_score": 6},
	  {"company_name": "Gamma Print", "qualification_score": 9.2}
	]`))
	f.llm.On("Invoke", mock.Anything, opWith("qualification", "Company: Acme Signs\n")).Return(reply(scenarioB))
	f.llm.On("Invoke", mock.Anything, opWith("qualification", "Company: Beta Graphics\n")).Return(reply("Beta looks like a reasonable fit."))
	f.llm.On("Invoke", mock.Anything, op("qualification")).Return(failed("qualification"))

	res, err := f.p.Companies(context.Background(), CompanyOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Candidates)
	assert.Equal(t, 1, res.Qualified)
	require.Len(t, res.Companies, 4)

	byName := companiesByName(res.Companies)

	acme := byName["Acme Signs"]
	assert.InDelta(t, 7.0, acme.InitialScore, 1e-9)
	assert.InDelta(t, 7.5, acme.QualificationScore, 1e-9)
	assert.Equal(t, model.LeadQualified, acme.LeadPriority)
	assert.Equal(t, "Fleet Graphics Specialists", acme.CustomerSegment)
	assert.Equal(t, "Wrap Summit", acme.SourceGatheringName)
	assert.Equal(t, "g-wrap", acme.SourceGatheringID)
	assert.Contains(t, acme.QualificationRationale, "Acme Signs")
	require.NotNil(t, acme.DetailedQualification)
	assert.Len(t, acme.DetailedQualification.CriterionScores, 5)
	assert.Equal(t, "Owner-operated", acme.DetailedQualification.CriterionJustifications["decision_maker_access"])
	assert.Equal(t, []string{"Bus wraps requiring 5-7 year durability"}, acme.DetailedQualification.UseCases)

	beta := byName["Beta Graphics"]
	assert.InDelta(t, 5.0, beta.QualificationScore, 1e-9)
	assert.Equal(t, model.LeadUnqualified, beta.LeadPriority)
	assert.Equal(t, "Small print shop", beta.QualificationRationale)
	assert.Equal(t, "Graphics & Signage", beta.Industry)
	assert.Equal(t, "Unknown", beta.RevenueEstimate)
	assert.NotEmpty(t, beta.CustomerSegment)
	assert.Nil(t, beta.DetailedQualification)

	gamma := byName["Gamma Print"]
	assert.InDelta(t, 9.2, gamma.QualificationScore, 1e-9)
	assert.Equal(t, model.LeadExceptional, gamma.LeadPriority, "a failed qualification ranks by the initial score")
	assert.Nil(t, gamma.DetailedQualification)
	assert.Equal(t, "Local Meetup", gamma.SourceGatheringName)

	var synthesized *model.Company
	for i := range res.Companies {
		if res.Companies[i].NameSource == model.NameSynthesized {
			synthesized = &res.Companies[i]
		}
	}
	require.NotNil(t, synthesized)
	assert.True(t, strings.HasPrefix(synthesized.Name, "Company-"))
	assert.False(t, synthesized.Usable())

	// Exceptional, then qualified, then the rest by score.
	assert.Equal(t, "Gamma Print", res.Companies[0].Name)
	assert.Equal(t, "Acme Signs", res.Companies[1].Name)
	assert.Equal(t, "Beta Graphics", res.Companies[2].Name)
	assert.Equal(t, synthesized.ID, res.Companies[3].ID)

	saved, err := f.store.Companies.Get(context.Background(), acme.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, saved.QualificationScore, 1e-9)

	for _, c := range f.llm.Calls {
		req := c.Arguments.Get(1).(llm.Request)
		switch {
		case req.Operation == "company_discovery":
			assert.Equal(t, llm.TierEconomy, req.Tier)
			assert.Equal(t, 800, req.MaxTokens)
		case strings.Contains(req.Prompt, "Company: Acme Signs\n"):
			assert.Equal(t, llm.TierPremium, req.Tier)
			assert.Equal(t, 1500, req.MaxTokens)
		case strings.Contains(req.Prompt, "Company: Beta Graphics\n"):
			assert.Equal(t, llm.TierEconomy, req.Tier)
		}
	}
	f.budget.AssertCalled(t, "BudgetAvailable", ModuleCompanyAnalysis, estimateQualificationPremium)
	f.budget.AssertCalled(t, "BudgetAvailable", ModuleCompanyAnalysis, estimateQualificationEconomy)
}

func TestCompaniesExampleFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seedGatherings(t, f, wrapSummit)
	f.budget.On("BudgetAvailable", ModuleCompanyAnalysis, estimateCompanyDiscovery).Return(true)
	f.budget.On("BudgetAvailable", ModuleCompanyAnalysis, estimateQualificationPremium).Return(false)
	f.llm.On("Invoke", mock.Anything, op("company_discovery")).Return(reply("I could not identify specific companies."))

	res, err := f.p.Companies(context.Background(), CompanyOptions{})
	require.NoError(t, err)
	require.Len(t, res.Companies, 1)

	c := res.Companies[0]
	assert.Equal(t, "Avery Dennison Graphics Solutions", c.Name)
	assert.Equal(t, model.NameExtracted, c.NameSource)
	assert.InDelta(t, 8.5, c.QualificationScore, 1e-9)
	assert.Equal(t, model.LeadHighPriority, c.LeadPriority)
	assert.NotEmpty(t, c.CustomerSegment)
	assert.Equal(t, "Wrap Summit", c.SourceGatheringName)
	assert.Zero(t, res.Qualified)

	f.llm.AssertNumberOfCalls(t, "Invoke", 1)
}

func TestCompaniesLimits(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	seedGatherings(t, f, localMeetup, wrapSummit)
	f.budget.On("BudgetAvailable", ModuleCompanyAnalysis, estimateCompanyDiscovery).Return(true)
	f.budget.On("BudgetAvailable", ModuleCompanyAnalysis, estimateQualificationPremium).Return(false)
	f.llm.On("Invoke", mock.Anything, op("company_discovery")).Return(reply(`[
	  {"name": "One", "qualification_score": 6},
	  {"name": "Two", "qualification_score": 7},
	  {"name": "Three", "qualification_score": 8}
	]`))

	res, err := f.p.Companies(context.Background(), CompanyOptions{LimitGatherings: 1, LimitCompanies: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Candidates)
	require.Len(t, res.Companies, 2)
	assert.Equal(t, "Two", res.Companies[0].Name)
	assert.Equal(t, "Wrap Summit", res.Companies[0].SourceGatheringName)

	f.llm.AssertNumberOfCalls(t, "Invoke", 1)
	f.llm.AssertCalled(t, "Invoke", mock.Anything, opWith("company_discovery", "Name: Wrap Summit\n"))
}

func TestDedupeCompanies(t *testing.T) {
	t.Parallel()

	named := func(id, name string, score float64) model.Company {
		return model.Company{ID: id, Name: name, NameSource: model.NameExtracted, InitialScore: score}
	}
	synth := func(id string) model.Company {
		return model.Company{ID: id, Name: "Company-x", NameSource: model.NameSynthesized}
	}

	tests := []struct {
		name string
		in   []model.Company
		want []string
	}{
		{
			name: "case and whitespace fold together",
			in:   []model.Company{named("1", "Acme", 5), named("2", " ACME ", 4)},
			want: []string{"1"},
		},
		{
			name: "higher score replaces in place",
			in:   []model.Company{named("1", "Acme", 5), named("2", "Beta", 6), named("3", "acme", 8)},
			want: []string{"3", "2"},
		},
		{
			name: "tie keeps first seen",
			in:   []model.Company{named("1", "Acme", 7), named("2", "Acme", 7)},
			want: []string{"1"},
		},
		{
			name: "synthesized names never merge",
			in:   []model.Company{synth("1"), synth("2")},
			want: []string{"1", "2"},
		},
		{
			name: "empty",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := dedupeCompanies(tt.in)
			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)

			again := dedupeCompanies(got)
			assert.Equal(t, got, again)
		})
	}
}

func TestReadQualificationNested(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	q := f.p.readQualification(map[string]any{
		"scores": map[string]any{
			"industry_relevance": map[string]any{"score": 9.0, "justification": "Core market"},
			"product_fit":        8.0,
		},
		"market_presence": "5/10",
		"unknown_metric":  4.0,
		"use_cases":       []any{"Bus wraps", map[string]any{"name": "Billboards"}},
		"pain_points":     "Fading",
	})

	assert.Equal(t, map[string]float64{
		"industry_relevance": 9,
		"product_fit":        8,
		"market_presence":    5,
	}, q.CriterionScores)
	assert.Equal(t, map[string]string{"industry_relevance": "Core market"}, q.CriterionJustifications)
	assert.Len(t, q.UseCases, 2)
	assert.Equal(t, "Bus wraps", q.UseCases[0])
	assert.Equal(t, []string{"Fading"}, q.PainPoints)
	assert.Contains(t, q.RawQualification, "unknown_metric")
	assert.InDelta(t, 8.0, f.engine.WeightedScore(q.CriterionScores), 1e-9)
}
