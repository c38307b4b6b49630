package model

import "time"

// UsageRecord is one ledger line: the tokens and cost of a single model call.
type UsageRecord struct {
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	InputCostUSD     float64   `json:"input_cost_usd"`
	OutputCostUSD    float64   `json:"output_cost_usd"`
	TotalCostUSD     float64   `json:"total_cost_usd"`
	Module           string    `json:"module"`
	Operation        string    `json:"operation"`
	Timestamp        time.Time `json:"timestamp"`
}
