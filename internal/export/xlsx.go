// Package export writes the finished pipeline output to a spreadsheet.
package export

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Sheet names, in workbook order.
const (
	SheetCompanies    = "Companies"
	SheetStakeholders = "Stakeholders"
	SheetOutreach     = "Outreach"
)

var (
	companyHeader = []string{
		"ID", "Name", "Industry", "Segment", "Lead Priority", "Qualification Score",
		"Initial Score", "Revenue", "Size", "Website", "Source Gathering", "Rationale",
	}
	stakeholderHeader = []string{
		"ID", "Company", "Name", "Title", "Department", "Priority",
		"Decision Maker Score", "Segment", "LinkedIn", "Email", "Sales Navigator Query",
	}
	outreachHeader = []string{
		"ID", "Company", "Stakeholder", "Title", "Role", "Event",
		"Subject", "Message", "Call To Action", "Defaulted Fields",
	}
)

// Result counts the rows written per sheet, excluding headers.
type Result struct {
	Path         string
	Companies    int
	Stakeholders int
	Outreach     int
}

// Workbook writes usable companies, their stakeholders and the drafted
// outreach to path. Companies with a synthesized name, stakeholders with an
// unknown title, and anything attached to a hidden company are left out.
func Workbook(ctx context.Context, st *store.Store, path string) (*Result, error) {
	companies, err := st.Companies.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: list companies")
	}
	stakeholders, err := st.Stakeholders.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: list stakeholders")
	}
	messages, err := st.Outreach.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: list outreach")
	}

	hidden := make(map[string]bool)
	usable := companies[:0]
	for _, c := range companies {
		if c.Usable() {
			usable = append(usable, c)
		} else {
			hidden[c.ID] = true
		}
	}
	model.SortCompanies(usable)

	var people []model.Stakeholder
	for _, s := range stakeholders {
		if s.Usable() && !hidden[s.CompanyID] {
			people = append(people, s)
		}
	}
	model.SortStakeholders(people)

	var drafts []model.OutreachMessage
	for _, m := range messages {
		if !hidden[m.CompanyID] {
			drafts = append(drafts, m)
		}
	}

	f := xlsx.NewFile()
	res := &Result{Path: path}

	rows := make([][]string, 0, len(usable))
	for _, c := range usable {
		rows = append(rows, []string{
			c.ID, c.Name, c.Industry, c.CustomerSegment, string(c.LeadPriority),
			score(c.QualificationScore), score(c.InitialScore), c.RevenueEstimate,
			c.SizeEstimate, c.Website, c.SourceGatheringName, c.QualificationRationale,
		})
	}
	if res.Companies, err = addSheet(f, SheetCompanies, companyHeader, rows); err != nil {
		return nil, err
	}

	rows = make([][]string, 0, len(people))
	for _, s := range people {
		rows = append(rows, []string{
			s.ID, s.CompanyName, s.Name, s.Title, s.Department, string(s.Priority),
			score(s.DecisionMakerScore), s.CustomerSegment, s.LinkedInURL, s.Email,
			s.SalesNavigatorQuery,
		})
	}
	if res.Stakeholders, err = addSheet(f, SheetStakeholders, stakeholderHeader, rows); err != nil {
		return nil, err
	}

	rows = make([][]string, 0, len(drafts))
	for _, m := range drafts {
		rows = append(rows, []string{
			m.ID, m.CompanyName, m.StakeholderName, m.StakeholderTitle, string(m.StakeholderRole),
			m.EventName, m.Subject, m.MessageBody, m.CallToAction, strings.Join(m.Defaulted, ", "),
		})
	}
	if res.Outreach, err = addSheet(f, SheetOutreach, outreachHeader, rows); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "export: create %s", dir)
		}
	}
	if err := f.Save(path); err != nil {
		return nil, eris.Wrapf(err, "export: save %s", path)
	}
	return res, nil
}

func addSheet(f *xlsx.File, name string, header []string, rows [][]string) (int, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return 0, eris.Wrapf(err, "export: add sheet %s", name)
	}
	hr := sheet.AddRow()
	for _, h := range header {
		cell := hr.AddCell()
		cell.SetString(h)
		cell.GetStyle().Font.Bold = true
	}
	for _, data := range rows {
		row := sheet.AddRow()
		for _, v := range data {
			row.AddCell().SetString(v)
		}
	}
	return len(rows), nil
}

// score renders a score in its shortest form, blank when unset.
func score(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
