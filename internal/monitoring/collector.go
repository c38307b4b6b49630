// Package monitoring turns the cost ledger and the entity store into
// Prometheus metrics and budget alerts.
package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Snapshot holds a point-in-time view of spend and pipeline output.
type Snapshot struct {
	// Spend.
	TotalBudgetUSD     float64 `json:"total_budget_usd"`
	TotalCostUSD       float64 `json:"total_cost_usd"`
	BudgetRemainingUSD float64 `json:"budget_remaining_usd"`
	BudgetUsedPct      float64 `json:"budget_used_pct"`
	TotalCalls         int     `json:"total_calls"`
	FailedCalls        int     `json:"failed_calls"`
	TotalTokens        int     `json:"total_tokens"`

	ByModule   map[string]cost.Usage            `json:"by_module"`
	ByModel    map[string]cost.Usage            `json:"by_model"`
	Allocation map[string]cost.AllocationStatus `json:"allocation"`

	// Pipeline output.
	Entities store.Counts `json:"entities"`

	CollectedAt time.Time `json:"collected_at"`
}

// UsageSource abstracts the ledger reads needed by the collector.
type UsageSource interface {
	Summary() (*cost.Summary, error)
	Records() ([]model.UsageRecord, error)
}

// EntityCounter abstracts the store reads needed by the collector.
type EntityCounter interface {
	Counts(ctx context.Context) (store.Counts, error)
}

// Collector gathers metrics from the ledger and the store.
type Collector struct {
	usage    UsageSource
	entities EntityCounter
	now      func() time.Time
}

// NewCollector creates a new metrics collector. entities may be nil.
func NewCollector(usage UsageSource, entities EntityCounter) *Collector {
	return &Collector{usage: usage, entities: entities, now: time.Now}
}

// Collect gathers a snapshot of spend and output.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	sum, err := c.usage.Summary()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: summarize ledger")
	}

	snap := &Snapshot{
		TotalBudgetUSD:     sum.TotalBudgetUSD,
		TotalCostUSD:       sum.TotalCostUSD,
		BudgetRemainingUSD: sum.BudgetRemainingUSD,
		BudgetUsedPct:      sum.BudgetUsedPct,
		TotalCalls:         sum.TotalCalls,
		TotalTokens:        sum.TotalTokens,
		ByModule:           sum.ByModule,
		ByModel:            sum.ByModel,
		Allocation:         sum.Allocation,
		CollectedAt:        c.now().UTC(),
	}

	recs, err := c.usage.Records()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read ledger")
	}
	for _, r := range recs {
		if strings.HasPrefix(r.Operation, "error_") {
			snap.FailedCalls++
		}
	}

	if c.entities != nil {
		counts, err := c.entities.Counts(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: count entities")
		}
		snap.Entities = counts
	}

	return snap, nil
}
