// Package pipeline runs the four lead-generation stages: gather, companies,
// stakeholders and outreach. Each stage reads the previous stage's
// repository and writes its own. Every model call is gated on the budget
// first; a denial, a failed call or an unreadable reply degrades to a
// defined fallback and never aborts the stage.
package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/icp"
	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/scorer"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Ledger modules, one per stage.
const (
	ModuleEventResearch      = "event_research"
	ModuleCompanyAnalysis    = "company_analysis"
	ModuleStakeholders       = "stakeholder_identification"
	ModuleOutreachGeneration = "outreach_generation"
)

// Stage names, as used on the command line.
const (
	StageGather       = "gather"
	StageCompanies    = "companies"
	StageStakeholders = "stakeholders"
	StageOutreach     = "outreach"
)

// Stages lists the stages in execution order.
var Stages = []string{StageGather, StageCompanies, StageStakeholders, StageOutreach}

// Budget answers whether a module may spend an estimated amount more.
type Budget interface {
	BudgetAvailable(module string, estimated float64) bool
}

// MissingInputError reports a stage that found nothing usable upstream.
// It is a clean stop, not a failure.
type MissingInputError struct {
	Stage        string
	Prerequisite string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("no usable input for %s; run `leadgen-cli %s` first", e.Stage, e.Prerequisite)
}

// Deps are the collaborators shared by every stage.
type Deps struct {
	LLM    llm.Client
	Budget Budget
	Store  *store.Store
	Scorer *scorer.Engine

	// Optional; defaulted by New.
	Now       func() time.Time
	NewID     func() string
	PickEvent func(events []string) string
}

// Pipeline holds the stages' shared dependencies.
type Pipeline struct {
	llm       llm.Client
	budget    Budget
	store     *store.Store
	scorer    *scorer.Engine
	profile   *icp.Profile
	now       func() time.Time
	newID     func() string
	pickEvent func(events []string) string
}

// New creates a Pipeline.
func New(d Deps) *Pipeline {
	p := &Pipeline{
		llm:       d.LLM,
		budget:    d.Budget,
		store:     d.Store,
		scorer:    d.Scorer,
		profile:   d.Scorer.Profile(),
		now:       d.Now,
		newID:     d.NewID,
		pickEvent: d.PickEvent,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if p.pickEvent == nil {
		p.pickEvent = randomEvent
	}
	return p
}

func randomEvent(events []string) string {
	if len(events) == 0 {
		return ""
	}
	return events[rand.IntN(len(events))]
}

// allowed checks the budget and logs a denial.
func (p *Pipeline) allowed(log *zap.Logger, module, operation string, estimate float64) bool {
	if p.budget.BudgetAvailable(module, estimate) {
		return true
	}
	log.Warn("pipeline: budget denied",
		zap.String("module", module),
		zap.String("operation", operation),
		zap.Float64("estimate_usd", estimate),
	)
	return false
}

func (p *Pipeline) timestamp() time.Time {
	return p.now().UTC()
}

// Run executes every stage in order. After each stage that completes, after
// is called with the stage name. A stage without input stops the run with
// its *MissingInputError.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions, after func(stage string) error) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{StageGather, func() error { _, err := p.Gather(ctx, opts.Gather); return err }},
		{StageCompanies, func() error { _, err := p.Companies(ctx, opts.Companies); return err }},
		{StageStakeholders, func() error { _, err := p.Stakeholders(ctx, opts.Stakeholders); return err }},
		{StageOutreach, func() error { _, err := p.Outreach(ctx, opts.Outreach); return err }},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.run(); err != nil {
			return err
		}
		if after != nil {
			if err := after(s.name); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunOptions carries the per-stage limits for Run.
type RunOptions struct {
	Gather       GatherOptions
	Companies    CompanyOptions
	Stakeholders StakeholderOptions
	Outreach     OutreachOptions
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
