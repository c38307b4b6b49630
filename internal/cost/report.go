package cost

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// Usage aggregates calls, tokens and spend for one model or module.
type Usage struct {
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// AllocationStatus compares a module's allocation with its spend.
type AllocationStatus struct {
	AllocatedUSD   float64 `json:"allocated_usd"`
	SpentUSD       float64 `json:"spent_usd"`
	RemainingUSD   float64 `json:"remaining_usd"`
	UtilizationPct float64 `json:"utilization_pct"`
}

// Summary is a point-in-time rollup of the ledger.
type Summary struct {
	GeneratedAt        time.Time                   `json:"generated_at"`
	TotalBudgetUSD     float64                     `json:"total_budget_usd"`
	TotalCostUSD       float64                     `json:"total_cost_usd"`
	BudgetRemainingUSD float64                     `json:"budget_remaining_usd"`
	BudgetUsedPct      float64                     `json:"budget_used_pct"`
	TotalCalls         int                         `json:"total_calls"`
	TotalTokens        int                         `json:"total_tokens"`
	ByModel            map[string]Usage            `json:"by_model"`
	ByModule           map[string]Usage            `json:"by_module"`
	Allocation         map[string]AllocationStatus `json:"allocation"`
}

// Modules returns the allocated module names in sorted order.
func (s *Summary) Modules() []string {
	out := make([]string, 0, len(s.Allocation))
	for m := range s.Allocation {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Summary rolls up the ledger as it currently stands on disk.
func (l *Ledger) Summary() (*Summary, error) {
	recs, err := l.Records()
	if err != nil {
		return nil, err
	}

	s := &Summary{
		GeneratedAt:    l.now().UTC(),
		TotalBudgetUSD: l.budget.TotalUSD,
		ByModel:        make(map[string]Usage),
		ByModule:       make(map[string]Usage),
		Allocation:     make(map[string]AllocationStatus),
	}

	for _, r := range recs {
		s.TotalCalls++
		s.TotalTokens += r.TotalTokens
		s.TotalCostUSD += r.TotalCostUSD
		s.ByModel[r.Model] = addUsage(s.ByModel[r.Model], r.PromptTokens, r.CompletionTokens, r.TotalCostUSD)
		s.ByModule[r.Module] = addUsage(s.ByModule[r.Module], r.PromptTokens, r.CompletionTokens, r.TotalCostUSD)
	}
	s.TotalCostUSD = round6(s.TotalCostUSD)
	s.BudgetRemainingUSD = round6(l.budget.TotalUSD - s.TotalCostUSD)
	s.BudgetUsedPct = pct(s.TotalCostUSD, l.budget.TotalUSD)

	spend, _ := spendByModule(recs)
	for module := range l.budget.Allocation {
		allocated := l.budget.Allocated(module)
		spent := spend[module]
		if module == BufferModule {
			spent = l.bufferUsed(spend)
		}
		s.Allocation[module] = AllocationStatus{
			AllocatedUSD:   round6(allocated),
			SpentUSD:       round6(spent),
			RemainingUSD:   round6(allocated - spent),
			UtilizationPct: pct(spent, allocated),
		}
	}

	return s, nil
}

// WriteReport writes the current summary to dir/report_<YYYYMMDD_HHMMSS>.json
// and returns the file path. Reports from the same second get a _2, _3, ...
// suffix instead of overwriting one another.
func (l *Ledger) WriteReport(dir string) (string, error) {
	s, err := l.Summary()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "cost: create report dir")
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "cost: marshal report")
	}

	stamp := "report_" + s.GeneratedAt.Format("20060102_150405")
	for n := 1; ; n++ {
		name := stamp + ".json"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.json", stamp, n)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", eris.Wrap(err, "cost: create report")
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", eris.Wrap(err, "cost: write report")
		}
		if err := f.Close(); err != nil {
			return "", eris.Wrap(err, "cost: close report")
		}
		return path, nil
	}
}

func addUsage(u Usage, prompt, completion int, cost float64) Usage {
	u.Calls++
	u.PromptTokens += prompt
	u.CompletionTokens += completion
	u.TotalTokens += prompt + completion
	u.CostUSD = round6(u.CostUSD + cost)
	return u
}

func pct(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return round6(part / whole * 100)
}
