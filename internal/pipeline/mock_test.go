package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/icp"
	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/scorer"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// --- LLM Mock ---

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Invoke(ctx context.Context, req llm.Request) llm.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.Response)
}

func (m *mockLLM) Search(ctx context.Context, req llm.SearchRequest) llm.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.Response)
}

// --- Budget Mock ---

type mockBudget struct {
	mock.Mock
}

func (m *mockBudget) BudgetAvailable(module string, estimated float64) bool {
	return m.Called(module, estimated).Bool(0)
}

func allowAll(b *mockBudget) {
	b.On("BudgetAvailable", mock.Anything, mock.Anything).Return(true)
}

// --- Matchers ---

// op matches a chat request by operation.
func op(operation string) any {
	return mock.MatchedBy(func(r llm.Request) bool { return r.Operation == operation })
}

// opWith matches a chat request by operation and a prompt fragment.
func opWith(operation, fragment string) any {
	return mock.MatchedBy(func(r llm.Request) bool {
		return r.Operation == operation && strings.Contains(r.Prompt, fragment)
	})
}

func reply(text string) llm.Response {
	return llm.Response{Text: text, Model: "claude-haiku-4-5-20251001", PromptTokens: 100, CompletionTokens: 50}
}

func failed(operation string) llm.Response {
	return llm.Response{Model: "claude-haiku-4-5-20251001", Err: eris.Errorf("llm: %s: retries exhausted", operation)}
}

// --- Fixture ---

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	p      *Pipeline
	llm    *mockLLM
	budget *mockBudget
	store  *store.Store
	engine *scorer.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	profile, err := icp.Default()
	require.NoError(t, err)

	f := &fixture{
		llm:    &mockLLM{},
		budget: &mockBudget{},
		store:  store.NewFileStore(t.TempDir()),
		engine: scorer.New(profile),
	}
	n := 0
	f.p = New(Deps{
		LLM:    f.llm,
		Budget: f.budget,
		Store:  f.store,
		Scorer: f.engine,
		Now:    func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
		PickEvent: func(events []string) string { return events[0] },
	})
	return f
}

// pipelineFor builds a pipeline with no collaborators for checks that only
// read the profile.
func pipelineFor(p *icp.Profile) *Pipeline {
	return New(Deps{Scorer: scorer.New(p)})
}
