package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

const (
	estimateOutreachPremium = 0.05
	estimateOutreachEconomy = 0.02
)

// OutreachOptions limits the outreach stage.
type OutreachOptions struct {
	Limit int
}

// OutreachResult summarizes an outreach run.
type OutreachResult struct {
	Messages []model.OutreachMessage
	Eligible int
	Skipped  int
}

// target is a stakeholder paired with the company it belongs to.
type target struct {
	stakeholder model.Stakeholder
	company     model.Company
}

// Outreach drafts one message per usable stakeholder.
func (p *Pipeline) Outreach(ctx context.Context, opts OutreachOptions) (*OutreachResult, error) {
	log := zap.L().With(zap.String("stage", StageOutreach))

	targets, err := p.outreachTargets(ctx, log)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, &MissingInputError{Stage: StageOutreach, Prerequisite: StageStakeholders}
	}
	targets = limit(targets, opts.Limit)
	log.Info("pipeline: starting outreach generation", zap.Int("stakeholders", len(targets)))

	res := &OutreachResult{Eligible: len(targets)}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, ok := p.draftMessage(ctx, log, t)
		if !ok {
			res.Skipped++
			continue
		}
		if err := p.store.Outreach.Put(ctx, msg); err != nil {
			return nil, eris.Wrapf(err, "pipeline: save outreach for %s", msg.StakeholderName)
		}
		res.Messages = append(res.Messages, msg)
	}

	log.Info("pipeline: outreach generation complete",
		zap.Int("messages", len(res.Messages)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// outreachTargets loads usable stakeholders, high priority first, each with
// its company. Stakeholders with an unknown title or a company without a
// real name are left out.
func (p *Pipeline) outreachTargets(ctx context.Context, log *zap.Logger) ([]target, error) {
	stakeholders, err := p.store.Stakeholders.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load stakeholders")
	}
	model.SortStakeholders(stakeholders)

	out := make([]target, 0, len(stakeholders))
	for _, s := range stakeholders {
		if !s.Usable() {
			log.Debug("pipeline: skipping stakeholder with unknown title", zap.String("stakeholder_id", s.ID))
			continue
		}
		c, err := p.companyFor(ctx, log, s)
		if err != nil {
			return nil, err
		}
		if !c.Usable() {
			log.Debug("pipeline: skipping stakeholder of unnamed company", zap.String("stakeholder_id", s.ID))
			continue
		}
		out = append(out, target{stakeholder: s, company: c})
	}
	return out, nil
}

// companyFor loads the stakeholder's company, rebuilding a minimal one from
// the stakeholder when the record is gone.
func (p *Pipeline) companyFor(ctx context.Context, log *zap.Logger, s model.Stakeholder) (model.Company, error) {
	c, err := p.store.Companies.Get(ctx, s.CompanyID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Company{}, eris.Wrapf(err, "pipeline: load company %s", s.CompanyID)
	}

	log.Warn("pipeline: company record missing, rebuilding from stakeholder",
		zap.String("company_id", s.CompanyID),
		zap.String("company", s.CompanyName),
	)
	segment := s.CustomerSegment
	if segment == "" {
		segment = p.profile.DefaultSegment
	}
	return model.Company{
		ID:              s.CompanyID,
		Name:            s.CompanyName,
		NameSource:      model.NameExtracted,
		Industry:        p.profile.DefaultIndustry,
		CustomerSegment: segment,
	}, nil
}

// stakeholderRole classifies a title as technical or business.
func (p *Pipeline) stakeholderRole(title string) model.Role {
	lower := strings.ToLower(title)
	for _, kw := range p.profile.Outreach.TechnicalKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return model.RoleTechnical
		}
	}
	return model.RoleBusiness
}

// outreachDefaults are the per-field fallbacks. They depend only on the
// company, stakeholder, role and event.
func (p *Pipeline) outreachDefaults(c model.Company, s model.Stakeholder, role model.Role, event string) extract.Defaults {
	rd := p.profile.Outreach.RoleDefaults(role == model.RoleTechnical)
	segment := c.CustomerSegment
	if segment == "" {
		segment = s.CustomerSegment
	}
	return extract.Defaults{
		Subject: fmt.Sprintf(rd.SubjectTemplate, c.Name),
		PersonalizationFactors: []string{
			"Reference to " + event,
			"Specific role: " + s.Title,
			"Industry segment: " + segment,
		},
		ValuePropositions: append([]string(nil), rd.ValuePropositions...),
		CallToAction:      rd.CallToAction,
	}
}

// draftMessage generates and parses one message. Budget denial or a failed
// call skips the stakeholder.
func (p *Pipeline) draftMessage(ctx context.Context, log *zap.Logger, t target) (model.OutreachMessage, bool) {
	s, c := t.stakeholder, t.company
	log = log.With(zap.String("company", c.Name), zap.String("stakeholder", s.Name))

	role := p.stakeholderRole(s.Title)
	event := c.SourceGatheringName
	if event == "" {
		event = p.pickEvent(p.profile.MajorEvents)
	}

	premium := s.Priority == model.TierHigh
	estimate := estimateOutreachEconomy
	if premium {
		estimate = estimateOutreachPremium
	}
	if !p.allowed(log, ModuleOutreachGeneration, "generate_message", estimate) {
		return model.OutreachMessage{}, false
	}

	resp := p.llm.Invoke(ctx, llm.Request{
		System:      systemContext(p.profile),
		Prompt:      outreachRequest(c, s, role, event),
		Tier:        llm.TierFor(premium),
		Temperature: 0.7,
		MaxTokens:   1000,
		Module:      ModuleOutreachGeneration,
		Operation:   "generate_message",
	})
	if resp.Failed() {
		log.Warn("pipeline: message generation failed", zap.Error(resp.Err))
		return model.OutreachMessage{}, false
	}

	d := extract.ParseOutreach(resp.Text, p.outreachDefaults(c, s, role, event))
	if defaulted := d.Defaulted(); len(defaulted) > 0 {
		log.Debug("pipeline: outreach fields defaulted", zap.Strings("fields", defaulted))
	}
	return model.OutreachMessage{
		ID:                     p.newID(),
		StakeholderID:          s.ID,
		CompanyID:              c.ID,
		StakeholderName:        s.Name,
		StakeholderTitle:       s.Title,
		CompanyName:            c.Name,
		Subject:                d.Subject.Value,
		MessageBody:            d.Body.Value,
		PersonalizationFactors: d.PersonalizationFactors.Value,
		ValuePropositions:      d.ValuePropositions.Value,
		CallToAction:           d.CallToAction.Value,
		StakeholderRole:        role,
		EventName:              event,
		Defaulted:              d.Defaulted(),
		CreatedAt:              p.timestamp(),
	}, true
}
