// Package store persists pipeline entities one document per id.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrNotFound is returned by Get when no entity has the id.
var ErrNotFound = eris.New("store: not found")

// Kind names the stage an entity belongs to. It doubles as the directory
// name for file storage.
type Kind string

const (
	KindGatherings   Kind = "gatherings"
	KindCompanies    Kind = "companies"
	KindStakeholders Kind = "stakeholders"
	KindOutreach     Kind = "outreach"
)

// Kinds lists every stage in pipeline order.
var Kinds = []Kind{KindGatherings, KindCompanies, KindStakeholders, KindOutreach}

// Repository is the typed input/output contract of a stage.
type Repository[T model.Entity] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Put(ctx context.Context, entity T) error
}

// Store bundles the four stage repositories.
type Store struct {
	Gatherings   Repository[model.Gathering]
	Companies    Repository[model.Company]
	Stakeholders Repository[model.Stakeholder]
	Outreach     Repository[model.OutreachMessage]

	close func() error
}

// Close releases the backend, if it holds anything open.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open builds the Store selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case "", "file":
		return NewFileStore(cfg.Data.Dir), nil
	case "sqlite":
		db, err := NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close() //nolint:errcheck
			return nil, err
		}
		return NewSQLiteStore(db), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}

// NewFileStore stores each entity as <dir>/<kind>/<id>.json.
func NewFileStore(dir string) *Store {
	return &Store{
		Gatherings:   NewFileRepository[model.Gathering](dir, KindGatherings),
		Companies:    NewFileRepository[model.Company](dir, KindCompanies),
		Stakeholders: NewFileRepository[model.Stakeholder](dir, KindStakeholders),
		Outreach:     NewFileRepository[model.OutreachMessage](dir, KindOutreach),
	}
}

// NewSQLiteStore stores every kind in the entities table of db. Closing the
// Store closes db.
func NewSQLiteStore(db *SQLite) *Store {
	return &Store{
		Gatherings:   NewSQLiteRepository[model.Gathering](db, KindGatherings),
		Companies:    NewSQLiteRepository[model.Company](db, KindCompanies),
		Stakeholders: NewSQLiteRepository[model.Stakeholder](db, KindStakeholders),
		Outreach:     NewSQLiteRepository[model.OutreachMessage](db, KindOutreach),
		close:        db.Close,
	}
}

// Counts is the number of stored entities per stage.
type Counts struct {
	Gatherings         int `json:"gatherings"`
	Companies          int `json:"companies"`
	UsableCompanies    int `json:"usable_companies"`
	Stakeholders       int `json:"stakeholders"`
	UsableStakeholders int `json:"usable_stakeholders"`
	Outreach           int `json:"outreach"`
}

// Counts tallies every stage.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts

	gatherings, err := s.Gatherings.List(ctx)
	if err != nil {
		return c, err
	}
	c.Gatherings = len(gatherings)

	companies, err := s.Companies.List(ctx)
	if err != nil {
		return c, err
	}
	c.Companies = len(companies)
	for _, co := range companies {
		if co.Usable() {
			c.UsableCompanies++
		}
	}

	stakeholders, err := s.Stakeholders.List(ctx)
	if err != nil {
		return c, err
	}
	c.Stakeholders = len(stakeholders)
	for _, sh := range stakeholders {
		if sh.Usable() {
			c.UsableStakeholders++
		}
	}

	messages, err := s.Outreach.List(ctx)
	if err != nil {
		return c, err
	}
	c.Outreach = len(messages)
	return c, nil
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return eris.New("store: empty id")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return eris.Errorf("store: invalid id %q", id)
	}
	return nil
}
