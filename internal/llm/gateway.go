// Package llm is the single door every pipeline stage uses to reach a model.
// It picks the model for a tier, paces and retries calls, and records actual
// usage in the cost ledger. It never returns a Go error: a call that fails
// for good comes back as a Response with Err set.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/perplexity"
)

// Tier selects a chat model by cost class.
type Tier string

const (
	TierEconomy Tier = "economy"
	TierPremium Tier = "premium"
)

// TierFor returns premium when premium is true.
func TierFor(premium bool) Tier {
	if premium {
		return TierPremium
	}
	return TierEconomy
}

// ErrNoProvider is returned when the gateway has no client for a call.
var ErrNoProvider = eris.New("llm: provider not configured")

// Request is one chat completion.
type Request struct {
	System      string
	Prompt      string
	Tier        Tier
	Temperature float64
	MaxTokens   int
	Module      string
	Operation   string
}

// SearchRequest is one real-time search query.
type SearchRequest struct {
	System      string
	Query       string
	Temperature float64
	MaxTokens   int
	Module      string
	Operation   string
}

// Response is the outcome of a call. Err is set when every attempt failed.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Err              error
}

// Failed reports whether the call produced no usable text.
func (r Response) Failed() bool { return r.Err != nil }

// Client is what pipeline stages depend on.
type Client interface {
	Invoke(ctx context.Context, req Request) Response
	Search(ctx context.Context, req SearchRequest) Response
}

// Recorder persists call usage.
type Recorder interface {
	Record(modelID string, promptTokens, completionTokens int, module, operation string) (model.UsageRecord, error)
	RecordFailure(modelID, module, operation string) (model.UsageRecord, error)
}

// Config holds the gateway's pacing and model selection.
type Config struct {
	EconomyModel     string
	PremiumModel     string
	CallDelay        time.Duration
	Retry            resilience.RetryPolicy
	CircuitThreshold int
	CircuitCooldown  time.Duration
}

// Gateway implements Client over Anthropic and Perplexity.
type Gateway struct {
	chat    anthropic.Client
	search  perplexity.Client
	ledger  Recorder
	models  map[Tier]string
	limiter *rate.Limiter
	retry   resilience.RetryPolicy

	chatBreaker   *resilience.Breaker
	searchBreaker *resilience.Breaker
}

// NewGateway wires the providers to the ledger. Either provider may be nil,
// in which case calls to it fail with ErrNoProvider.
func NewGateway(chat anthropic.Client, search perplexity.Client, ledger Recorder, cfg Config) *Gateway {
	limit := rate.Inf
	if cfg.CallDelay > 0 {
		limit = rate.Every(cfg.CallDelay)
	}
	cooldown := cfg.CircuitCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Gateway{
		chat:   chat,
		search: search,
		ledger: ledger,
		models: map[Tier]string{
			TierEconomy: cfg.EconomyModel,
			TierPremium: cfg.PremiumModel,
		},
		limiter:       rate.NewLimiter(limit, 1),
		retry:         cfg.Retry,
		chatBreaker:   resilience.NewBreaker("anthropic", cfg.CircuitThreshold, cooldown),
		searchBreaker: resilience.NewBreaker("perplexity", cfg.CircuitThreshold, cooldown),
	}
}

// Model returns the model id used for a tier.
func (g *Gateway) Model(t Tier) string {
	if m, ok := g.models[t]; ok && m != "" {
		return m
	}
	return g.models[TierEconomy]
}

// Invoke sends a chat completion.
func (g *Gateway) Invoke(ctx context.Context, req Request) Response {
	modelID := g.Model(req.Tier)
	log := zap.L().With(
		zap.String("model", modelID),
		zap.String("module", req.Module),
		zap.String("operation", req.Operation),
	)

	if g.chat == nil {
		return g.fail(log, modelID, req.Module, req.Operation, ErrNoProvider)
	}

	temp := req.Temperature
	msg := anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   int64(req.MaxTokens),
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: &temp,
	}

	resp, err := resilience.Retry(ctx, g.retry, req.Operation, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: wait for rate limiter")
		}
		return resilience.Call(ctx, g.chatBreaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			r, err := g.chat.CreateMessage(ctx, msg)
			if err != nil {
				return nil, classifyChat(err)
			}
			return r, nil
		})
	})
	if err != nil {
		return g.fail(log, modelID, req.Module, req.Operation, err)
	}

	out := Response{
		Text:             resp.Text(),
		Model:            modelID,
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}
	g.record(log, out, req.Module, req.Operation)
	return out
}

// Search sends a real-time search query.
func (g *Gateway) Search(ctx context.Context, req SearchRequest) Response {
	if g.search == nil {
		log := zap.L().With(zap.String("module", req.Module), zap.String("operation", req.Operation))
		return g.fail(log, cost.SearchModelID("unconfigured"), req.Module, req.Operation, ErrNoProvider)
	}

	modelID := cost.SearchModelID(g.search.Model())
	log := zap.L().With(
		zap.String("model", modelID),
		zap.String("module", req.Module),
		zap.String("operation", req.Operation),
	)

	temp := req.Temperature
	maxTokens := req.MaxTokens
	chat := perplexity.ChatCompletionRequest{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
	if req.System != "" {
		chat.Messages = append(chat.Messages, perplexity.Message{Role: "system", Content: req.System})
	}
	chat.Messages = append(chat.Messages, perplexity.Message{Role: "user", Content: req.Query})

	resp, err := resilience.Retry(ctx, g.retry, req.Operation, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: wait for rate limiter")
		}
		return resilience.Call(ctx, g.searchBreaker, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
			r, err := g.search.ChatCompletion(ctx, chat)
			if err != nil {
				return nil, classifySearch(err)
			}
			return r, nil
		})
	})
	if err != nil {
		return g.fail(log, modelID, req.Module, req.Operation, err)
	}

	out := Response{
		Text:             resp.Text(),
		Model:            modelID,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	g.record(log, out, req.Module, req.Operation)
	return out
}

func (g *Gateway) record(log *zap.Logger, r Response, module, operation string) {
	if g.ledger == nil {
		return
	}
	if _, err := g.ledger.Record(r.Model, r.PromptTokens, r.CompletionTokens, module, operation); err != nil {
		log.Error("llm: failed to record usage", zap.Error(err))
	}
}

func (g *Gateway) fail(log *zap.Logger, modelID, module, operation string, err error) Response {
	log.Error("llm: call failed", zap.Error(err))
	if g.ledger != nil {
		if _, rerr := g.ledger.RecordFailure(modelID, module, operation); rerr != nil {
			log.Error("llm: failed to record failure", zap.Error(rerr))
		}
	}
	return Response{Model: modelID, Err: err}
}

// statusOverloaded is Anthropic's "overloaded" response code.
const statusOverloaded = 529

func classifyChat(err error) error {
	code := anthropic.StatusCode(err)
	if resilience.IsTransientHTTPStatus(code) || code == statusOverloaded {
		return resilience.NewTransientError(err, code)
	}
	return err
}

func classifySearch(err error) error {
	var se *perplexity.StatusError
	if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
		return resilience.NewTransientError(err, se.StatusCode)
	}
	return err
}
