package cost

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// BufferModule is the allocation key for the shared budget slice.
const BufferModule = "buffer"

const epsilon = 1e-9

// Budget is the total spend and its split across modules.
type Budget struct {
	TotalUSD   float64
	Allocation map[string]float64
}

// Allocated returns the dollar allocation for a module.
func (b Budget) Allocated(module string) float64 {
	return b.TotalUSD * b.Allocation[module]
}

// Ledger is the append-only JSONL log of every model call. The file is the
// only source of truth for spend: every query re-reads it.
type Ledger struct {
	path   string
	calc   *Calculator
	budget Budget
	now    func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a ledger backed by the file at path.
func NewLedger(path string, calc *Calculator, budget Budget, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		path:   path,
		calc:   calc,
		budget: budget,
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Budget returns the configured budget.
func (l *Ledger) Budget() Budget { return l.budget }

// Init creates the ledger file if it does not exist.
func (l *Ledger) Init() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return eris.Wrap(err, "cost: create ledger dir")
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "cost: create ledger")
	}
	return f.Close()
}

// Record prices a call and appends it to the ledger.
func (l *Ledger) Record(modelID string, promptTokens, completionTokens int, module, operation string) (model.UsageRecord, error) {
	c := l.calc.Cost(modelID, promptTokens, completionTokens)
	rec := model.UsageRecord{
		Model:            modelID,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		InputCostUSD:     c.Input,
		OutputCostUSD:    c.Output,
		TotalCostUSD:     c.Total,
		Module:           module,
		Operation:        operation,
		Timestamp:        l.now().UTC(),
	}

	if err := l.append(rec); err != nil {
		return rec, err
	}

	zap.L().Debug("cost: recorded usage",
		zap.String("model", modelID),
		zap.String("module", module),
		zap.String("operation", operation),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
		zap.Float64("cost_usd", rec.TotalCostUSD),
	)
	return rec, nil
}

// RecordFailure appends a zero-cost marker for a call that never completed.
// The operation is logged as error_<operation>.
func (l *Ledger) RecordFailure(modelID, module, operation string) (model.UsageRecord, error) {
	rec := model.UsageRecord{
		Model:     modelID,
		Module:    module,
		Operation: "error_" + operation,
		Timestamp: l.now().UTC(),
	}
	return rec, l.append(rec)
}

func (l *Ledger) append(rec model.UsageRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "cost: marshal usage record")
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return eris.Wrap(err, "cost: create ledger dir")
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "cost: open ledger")
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(line); err != nil {
		return eris.Wrap(err, "cost: append usage record")
	}
	return nil
}

// Records reads every usage record. Blank lines are skipped; malformed lines
// are logged and skipped. A missing file is an empty ledger.
func (l *Ledger) Records() ([]model.UsageRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "cost: open ledger")
	}
	defer f.Close() //nolint:errcheck

	var out []model.UsageRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var rec model.UsageRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			zap.L().Warn("cost: skipping malformed ledger line",
				zap.String("path", l.path),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return out, eris.Wrap(err, "cost: scan ledger")
	}
	return out, nil
}

// BudgetAvailable reports whether module may spend estimated more dollars.
// The module's own allocation is tried first, then the shared buffer. Spend
// is never approved past the total budget. A ledger that cannot be read
// denies the request.
func (l *Ledger) BudgetAvailable(module string, estimated float64) bool {
	recs, err := l.Records()
	if err != nil {
		zap.L().Error("cost: budget check could not read ledger", zap.Error(err))
		return false
	}

	spend, total := spendByModule(recs)
	log := zap.L().With(
		zap.String("module", module),
		zap.Float64("estimated_usd", estimated),
		zap.Float64("total_spent_usd", total),
	)

	if total+estimated > l.budget.TotalUSD+epsilon {
		log.Warn("cost: total budget exhausted")
		return false
	}

	if module != BufferModule {
		if spend[module]+estimated <= l.budget.Allocated(module)+epsilon {
			return true
		}
	}

	remaining := l.budget.Allocated(BufferModule) - l.bufferUsed(spend)
	if remaining+epsilon >= estimated {
		log.Info("cost: module allocation exhausted, drawing on buffer",
			zap.Float64("buffer_remaining_usd", remaining))
		return true
	}

	log.Warn("cost: budget denied", zap.Float64("buffer_remaining_usd", remaining))
	return false
}

// bufferUsed is the spend charged against the buffer: anything a module has
// spent beyond its allocation, plus all spend by modules with no allocation.
func (l *Ledger) bufferUsed(spend map[string]float64) float64 {
	var used float64
	for module, s := range spend {
		frac, ok := l.budget.Allocation[module]
		if !ok || module == BufferModule {
			used += s
			continue
		}
		used += math.Max(0, s-l.budget.TotalUSD*frac)
	}
	return used
}

func spendByModule(recs []model.UsageRecord) (map[string]float64, float64) {
	spend := make(map[string]float64)
	var total float64
	for _, r := range recs {
		spend[r.Module] += r.TotalCostUSD
		total += r.TotalCostUSD
	}
	return spend, total
}
