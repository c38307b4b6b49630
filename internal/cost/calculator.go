package cost

import (
	"math"
	"strings"
)

// SearchModelPrefix marks ledger model ids that belong to the real-time
// search provider, which is billed per request rather than per token.
const SearchModelPrefix = "perplexity"

// Rates holds pricing configuration.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
	Search SearchRate           `yaml:"search" mapstructure:"search"`
}

// ModelRate holds per-model token pricing (USD per 1K tokens).
type ModelRate struct {
	InputPer1K  float64 `yaml:"input_per_1k" mapstructure:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k" mapstructure:"output_per_1k"`
}

// SearchRate holds the flat real-time search pricing.
type SearchRate struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// Breakdown is the priced cost of one call.
type Breakdown struct {
	Input  float64
	Output float64
	Total  float64
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Cost prices a call. Chat models are billed per 1K input and output tokens;
// search ids are billed a flat per-request rate; unknown models cost nothing.
func (c *Calculator) Cost(model string, promptTokens, completionTokens int) Breakdown {
	if rate, ok := c.rates.Models[model]; ok {
		in := round6(float64(promptTokens) / 1000 * rate.InputPer1K)
		out := round6(float64(completionTokens) / 1000 * rate.OutputPer1K)
		return Breakdown{Input: in, Output: out, Total: round6(in + out)}
	}
	if IsSearchModel(model) {
		per := round6(c.rates.Search.PerRequest)
		return Breakdown{Input: per, Total: per}
	}
	return Breakdown{}
}

// IsSearchModel reports whether a ledger model id belongs to the search provider.
func IsSearchModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), SearchModelPrefix)
}

// SearchModelID builds the ledger model id for a search model.
func SearchModelID(model string) string {
	return SearchModelPrefix + "/" + model
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
			"claude-sonnet-4-5-20250929": {InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-opus-4-6":            {InputPer1K: 0.015, OutputPer1K: 0.075},
		},
		Search: SearchRate{PerRequest: 0.01},
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
