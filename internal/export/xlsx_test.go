package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

func seed(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st := store.NewFileStore(t.TempDir())

	for _, c := range []model.Company{
		{ID: "c-acme", Name: "Acme Wraps", NameSource: model.NameExtracted, LeadPriority: model.LeadQualified, QualificationScore: 7.5, CustomerSegment: "Fleet Graphics"},
		{ID: "c-gamma", Name: "Gamma Signs", NameSource: model.NameExtracted, LeadPriority: model.LeadExceptional, QualificationScore: 9.2, InitialScore: 8},
		{ID: "c-synth", Name: "Company-1a2b", NameSource: model.NameSynthesized, QualificationScore: 8.8},
	} {
		require.NoError(t, st.Companies.Put(ctx, c))
	}
	for _, s := range []model.Stakeholder{
		{ID: "s-dana", CompanyID: "c-acme", CompanyName: "Acme Wraps", Name: "Dana Cruz", Title: "VP Operations", Priority: model.TierHigh, DecisionMakerScore: 9.1},
		{ID: "s-pat", CompanyID: "c-acme", CompanyName: "Acme Wraps", Name: "Pat Lee", Title: model.UnknownTitle},
		{ID: "s-sky", CompanyID: "c-synth", Name: "Sky Hart", Title: "Owner", Priority: model.TierHigh},
	} {
		require.NoError(t, st.Stakeholders.Put(ctx, s))
	}
	for _, m := range []model.OutreachMessage{
		{ID: "o-dana", CompanyID: "c-acme", CompanyName: "Acme Wraps", StakeholderName: "Dana Cruz",
			StakeholderRole: model.RoleBusiness, Subject: "Fleet wraps that last", Defaulted: []string{"subject", "call_to_action"}},
		{ID: "o-sky", CompanyID: "c-synth", Subject: "hidden"},
	} {
		require.NoError(t, st.Outreach.Put(ctx, m))
	}
	return st
}

func sheetRows(t *testing.T, f *xlsx.File, name string) [][]string {
	t.Helper()
	sheet, ok := f.Sheet[name]
	require.True(t, ok, "sheet %s", name)
	out := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		out = append(out, cells)
	}
	return out
}

func TestWorkbook(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reports", "leads.xlsx")

	res, err := Workbook(context.Background(), seed(t), path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 2, res.Companies)
	assert.Equal(t, 1, res.Stakeholders)
	assert.Equal(t, 1, res.Outreach)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, SheetCompanies, f.Sheets[0].Name)
	assert.Equal(t, SheetStakeholders, f.Sheets[1].Name)
	assert.Equal(t, SheetOutreach, f.Sheets[2].Name)

	companies := sheetRows(t, f, SheetCompanies)
	require.Len(t, companies, 3)
	assert.Equal(t, companyHeader, companies[0])
	assert.Equal(t, "Gamma Signs", companies[1][1])
	assert.Equal(t, "9.2", companies[1][5])
	assert.Equal(t, "8", companies[1][6])
	assert.Equal(t, "Acme Wraps", companies[2][1])

	people := sheetRows(t, f, SheetStakeholders)
	require.Len(t, people, 2)
	assert.Equal(t, "Dana Cruz", people[1][2])

	drafts := sheetRows(t, f, SheetOutreach)
	require.Len(t, drafts, 2)
	assert.Equal(t, "business", drafts[1][4])
	assert.Equal(t, "subject, call_to_action", drafts[1][9])
}

func TestWorkbookEmptyStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	res, err := Workbook(context.Background(), store.NewFileStore(t.TempDir()), path)
	require.NoError(t, err)
	assert.Zero(t, res.Companies)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, sheetRows(t, f, SheetOutreach), 1)
}
