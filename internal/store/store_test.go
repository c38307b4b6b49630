package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func backends(t *testing.T) map[string]*Store {
	t.Helper()
	return map[string]*Store{
		"file":   NewFileStore(t.TempDir()),
		"sqlite": NewSQLiteStore(newTestSQLite(t)),
	}
}

func sampleCompany(id, name string) model.Company {
	ts := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	return model.Company{
		ID:                 id,
		Name:               name,
		NameSource:         model.NameExtracted,
		Industry:           "Sign Manufacturing",
		QualificationScore: 8.2,
		LeadPriority:       model.LeadHighPriority,
		DiscoveredAt:       ts,
		UpdatedAt:          ts,
	}
}

func TestRepositoryPutGetList(t *testing.T) {
	t.Parallel()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			list, err := st.Companies.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			b := sampleCompany("b-2", "Beta Signs")
			a := sampleCompany("a-1", "Acme Graphics")
			require.NoError(t, st.Companies.Put(ctx, b))
			require.NoError(t, st.Companies.Put(ctx, a))

			got, err := st.Companies.Get(ctx, "a-1")
			require.NoError(t, err)
			assert.Equal(t, a, got)

			list, err = st.Companies.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a-1", list[0].ID)
			assert.Equal(t, "b-2", list[1].ID)
		})
	}
}

func TestRepositoryPutReplaces(t *testing.T) {
	t.Parallel()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			c := sampleCompany("c-1", "Acme")
			require.NoError(t, st.Companies.Put(ctx, c))
			c.QualificationScore = 9.1
			c.LeadPriority = model.LeadExceptional
			require.NoError(t, st.Companies.Put(ctx, c))

			list, err := st.Companies.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.InDelta(t, 9.1, list[0].QualificationScore, 1e-9)
			assert.Equal(t, model.LeadExceptional, list[0].LeadPriority)
		})
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	t.Parallel()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := st.Stakeholders.Get(context.Background(), "nope")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestRepositoryRejectsBadIDs(t *testing.T) {
	t.Parallel()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			assert.Error(t, st.Gatherings.Put(ctx, model.Gathering{}))
			assert.Error(t, st.Gatherings.Put(ctx, model.Gathering{ID: "../escape"}))
		})
	}
}

func TestKindsAreIsolated(t *testing.T) {
	t.Parallel()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			require.NoError(t, st.Gatherings.Put(ctx, model.Gathering{ID: "same", Name: "ISA Sign Expo"}))
			require.NoError(t, st.Outreach.Put(ctx, model.OutreachMessage{ID: "same", Subject: "Hello"}))

			g, err := st.Gatherings.Get(ctx, "same")
			require.NoError(t, err)
			assert.Equal(t, "ISA Sign Expo", g.Name)

			companies, err := st.Companies.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, companies)
		})
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			require.NoError(t, st.Gatherings.Put(ctx, model.Gathering{ID: "g1"}))
			require.NoError(t, st.Companies.Put(ctx, sampleCompany("c1", "Acme")))
			require.NoError(t, st.Companies.Put(ctx, model.Company{ID: "c2", Name: "Company-1a2b", NameSource: model.NameSynthesized}))
			require.NoError(t, st.Stakeholders.Put(ctx, model.Stakeholder{ID: "s1", Title: "Plant Manager"}))
			require.NoError(t, st.Stakeholders.Put(ctx, model.Stakeholder{ID: "s2", Title: model.UnknownTitle}))
			require.NoError(t, st.Stakeholders.Put(ctx, model.Stakeholder{ID: "s3", Title: "CEO"}))

			c, err := st.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, Counts{
				Gatherings:         1,
				Companies:          2,
				UsableCompanies:    1,
				Stakeholders:       3,
				UsableStakeholders: 2,
			}, c)
		})
	}
}

func TestFileRepositoryLayout(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st := NewFileStore(dir)
	require.NoError(t, st.Stakeholders.Put(context.Background(), model.Stakeholder{ID: "s-9", Name: "Dana Lee"}))

	data, err := os.ReadFile(filepath.Join(dir, "stakeholders", "s-9.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"id\": \"s-9\",")
	assert.Contains(t, string(data), `"name": "Dana Lee"`)

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "stakeholders"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileRepositorySkipsUnreadable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo := NewFileRepository[model.Gathering](dir, KindGatherings)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, model.Gathering{ID: "ok", Name: "PRINTING United"}))

	require.NoError(t, os.WriteFile(filepath.Join(repo.dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo.dir, "empty.json"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo.dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(repo.dir, "nested.json"), 0o755))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "PRINTING United", list[0].Name)
}

func TestSQLiteRepositorySkipsUndecodableRows(t *testing.T) {
	t.Parallel()
	db := newTestSQLite(t)
	ctx := context.Background()
	repo := NewSQLiteRepository[model.Company](db, KindCompanies)
	require.NoError(t, repo.Put(ctx, sampleCompany("c1", "Acme")))

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO entities (kind, id, body) VALUES (?, ?, ?)`, string(KindCompanies), "c2", "garbage")
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)

	_, err = repo.Get(ctx, "c2")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fileCfg := &config.Config{}
	fileCfg.Data.Dir = t.TempDir()
	fileCfg.Store.Driver = "file"
	st, err := Open(ctx, fileCfg)
	require.NoError(t, err)
	assert.IsType(t, &FileRepository[model.Company]{}, st.Companies)
	assert.NoError(t, st.Close())

	sqlCfg := &config.Config{}
	sqlCfg.Store.Driver = "sqlite"
	sqlCfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "leadgen.db")
	st, err = Open(ctx, sqlCfg)
	require.NoError(t, err)
	require.NoError(t, st.Companies.Put(ctx, sampleCompany("c1", "Acme")))
	assert.IsType(t, &SQLiteRepository[model.Company]{}, st.Companies)
	assert.NoError(t, st.Close())

	badCfg := &config.Config{}
	badCfg.Store.Driver = "postgres"
	_, err = Open(ctx, badCfg)
	assert.Error(t, err)
}
