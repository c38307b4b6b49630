package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// fakeUsage implements UsageSource for testing.
type fakeUsage struct {
	summary    *cost.Summary
	records    []model.UsageRecord
	summaryErr error
	recordsErr error
}

func (f *fakeUsage) Summary() (*cost.Summary, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.summary, nil
}

func (f *fakeUsage) Records() ([]model.UsageRecord, error) {
	return f.records, f.recordsErr
}

// fakeCounter implements EntityCounter for testing.
type fakeCounter struct {
	counts store.Counts
	err    error
}

func (f *fakeCounter) Counts(context.Context) (store.Counts, error) {
	return f.counts, f.err
}

func sampleSummary() *cost.Summary {
	return &cost.Summary{
		TotalBudgetUSD:     200,
		TotalCostUSD:       12.5,
		BudgetRemainingUSD: 187.5,
		BudgetUsedPct:      6.25,
		TotalCalls:         4,
		TotalTokens:        9000,
		ByModule: map[string]cost.Usage{
			"company_analysis": {Calls: 3, CostUSD: 12.5},
		},
		ByModel: map[string]cost.Usage{
			"claude-sonnet-4-5-20250929": {Calls: 3, CostUSD: 12.5},
		},
		Allocation: map[string]cost.AllocationStatus{
			"company_analysis": {AllocatedUSD: 50, SpentUSD: 12.5, RemainingUSD: 37.5, UtilizationPct: 25},
		},
	}
}

func sampleRecords() []model.UsageRecord {
	return []model.UsageRecord{
		{Model: "claude-sonnet-4-5-20250929", Module: "company_analysis", Operation: "qualification"},
		{Model: "claude-sonnet-4-5-20250929", Module: "company_analysis", Operation: "qualification"},
		{Model: "claude-sonnet-4-5-20250929", Module: "company_analysis", Operation: "company_discovery"},
		{Model: "claude-haiku-4-5-20251001", Module: "outreach_generation", Operation: "error_generate_message"},
	}
}

func TestCollector_Collect(t *testing.T) {
	usage := &fakeUsage{summary: sampleSummary(), records: sampleRecords()}
	counter := &fakeCounter{counts: store.Counts{
		Gatherings: 10, Companies: 6, UsableCompanies: 5,
		Stakeholders: 12, UsableStakeholders: 11, Outreach: 9,
	}}

	c := NewCollector(usage, counter)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 200.0, snap.TotalBudgetUSD, 1e-9)
	assert.InDelta(t, 12.5, snap.TotalCostUSD, 1e-9)
	assert.InDelta(t, 187.5, snap.BudgetRemainingUSD, 1e-9)
	assert.Equal(t, 4, snap.TotalCalls)
	assert.Equal(t, 1, snap.FailedCalls)
	assert.Equal(t, 9000, snap.TotalTokens)
	assert.Equal(t, 5, snap.Entities.UsableCompanies)
	assert.Equal(t, 9, snap.Entities.Outreach)
	assert.Contains(t, snap.Allocation, "company_analysis")
	assert.Equal(t, fixed, snap.CollectedAt)
}

func TestCollector_NilCounter(t *testing.T) {
	c := NewCollector(&fakeUsage{summary: sampleSummary()}, nil)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Entities)
	assert.Zero(t, snap.FailedCalls)
}

func TestCollector_Errors(t *testing.T) {
	tests := []struct {
		name    string
		usage   *fakeUsage
		counter *fakeCounter
		want    string
	}{
		{
			name:  "summary",
			usage: &fakeUsage{summaryErr: errors.New("disk gone")},
			want:  "monitoring: summarize ledger",
		},
		{
			name:  "records",
			usage: &fakeUsage{summary: sampleSummary(), recordsErr: errors.New("bad line")},
			want:  "monitoring: read ledger",
		},
		{
			name:    "counts",
			usage:   &fakeUsage{summary: sampleSummary()},
			counter: &fakeCounter{err: errors.New("locked")},
			want:    "monitoring: count entities",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var counter EntityCounter
			if tt.counter != nil {
				counter = tt.counter
			}
			_, err := NewCollector(tt.usage, counter).Collect(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
