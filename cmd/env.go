package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/icp"
	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/monitoring"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scorer"
	"github.com/sells-group/leadgen-cli/internal/store"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/perplexity"
)

// appEnv holds everything the commands share. Pipeline is nil for commands
// that only read.
type appEnv struct {
	Store    *store.Store
	Ledger   *cost.Ledger
	Profile  *icp.Profile
	Pipeline *pipeline.Pipeline
	Exporter *monitoring.Exporter
	Checker  *monitoring.Checker
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// newLedger builds the usage ledger from the budget and pricing config.
func newLedger(c *config.Config) *cost.Ledger {
	rates := cost.Rates{
		Models: make(map[string]cost.ModelRate, len(c.Pricing.Models)),
		Search: cost.SearchRate{PerRequest: c.Pricing.Search.PerRequest},
	}
	for id, p := range c.Pricing.Models {
		rates.Models[id] = cost.ModelRate{InputPer1K: p.InputPer1K, OutputPer1K: p.OutputPer1K}
	}
	return cost.NewLedger(c.Data.LedgerPath(), cost.NewCalculator(rates), cost.Budget{
		TotalUSD:   c.Budget.TotalUSD,
		Allocation: c.Budget.Allocation,
	})
}

// initEnv opens the store and ledger and builds the monitoring chain. With
// withPipeline it also wires the providers and the pipeline. Callers should
// defer env.Close().
func initEnv(ctx context.Context, withPipeline bool) (*appEnv, error) {
	profile, err := icp.Load(cfg.ICP.ProfilePath)
	if err != nil {
		return nil, eris.Wrap(err, "load icp profile")
	}

	ledger := newLedger(cfg)
	if err := ledger.Init(); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	exporter := monitoring.NewExporter()
	checker := monitoring.NewChecker(
		monitoring.NewCollector(ledger, st),
		monitoring.NewAlerter(cfg.Monitoring),
		exporter,
		cfg.Monitoring,
	)

	env := &appEnv{
		Store:    st,
		Ledger:   ledger,
		Profile:  profile,
		Exporter: exporter,
		Checker:  checker,
	}
	if !withPipeline {
		return env, nil
	}

	if cfg.Anthropic.Key == "" {
		zap.L().Warn("ANTHROPIC_API_KEY not set, model calls will fail and stages will use fallbacks")
	}
	chat := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var search perplexity.Client
	if cfg.Perplexity.Key != "" {
		search = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	} else {
		zap.L().Warn("PERPLEXITY_API_KEY not set, real-time search disabled")
	}

	gateway := llm.NewGateway(chat, search, ledger, llm.Config{
		EconomyModel:     cfg.Anthropic.EconomyModel,
		PremiumModel:     cfg.Anthropic.PremiumModel,
		CallDelay:        time.Duration(cfg.Pipeline.CallDelayMs) * time.Millisecond,
		Retry:            resilience.NewRetryPolicy(cfg.Pipeline.RetryAttempts, cfg.Pipeline.RetryBackoffMs),
		CircuitThreshold: cfg.Pipeline.CircuitThreshold,
	})

	env.Pipeline = pipeline.New(pipeline.Deps{
		LLM:    gateway,
		Budget: ledger,
		Store:  st,
		Scorer: scorer.New(profile),
	})
	return env, nil
}

// afterStage snapshots usage, refreshes metrics and raises budget alerts.
// Failures here are logged; they never fail the stage that just finished.
func (e *appEnv) afterStage(ctx context.Context, stage string) error {
	log := zap.L().With(zap.String("stage", stage))

	path, err := e.Ledger.WriteReport(cfg.Data.ReportDir())
	if err != nil {
		log.Warn("usage report not written", zap.Error(err))
	} else {
		log.Info("usage report written", zap.String("path", path))
	}

	e.Checker.Check(ctx)
	if cfg.Metrics.Textfile != "" {
		if err := e.Exporter.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("metrics textfile not written", zap.Error(err))
		}
	}
	return nil
}

// stageOutcome turns a missing-input stop into a printed hint and a clean
// exit. Any other error is returned unchanged.
func stageOutcome(w io.Writer, err error) error {
	var missing *pipeline.MissingInputError
	if errors.As(err, &missing) {
		fmt.Fprintln(w, missing.Error())
		return nil
	}
	return err
}
