package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// SQLite is a database holding every stage in one entities table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLite{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (kind, id)
);
`

// Migrate creates the schema.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SQLiteRepository stores one kind of entity as JSON bodies keyed by id.
type SQLiteRepository[T model.Entity] struct {
	db   *sql.DB
	kind Kind
	now  func() time.Time
}

// NewSQLiteRepository scopes db to one kind.
func NewSQLiteRepository[T model.Entity](db *SQLite, kind Kind) *SQLiteRepository[T] {
	return &SQLiteRepository[T]{db: db.db, kind: kind, now: time.Now}
}

// List returns every entity of the kind ordered by id. Rows whose body no
// longer decodes are logged and skipped.
func (r *SQLiteRepository[T]) List(ctx context.Context) ([]T, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, body FROM entities WHERE kind = ? ORDER BY id`, string(r.kind))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", r.kind)
	}
	defer rows.Close() //nolint:errcheck

	var out []T
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", r.kind)
		}
		var v T
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			zap.L().Warn("store: skipping unreadable entity",
				zap.String("kind", string(r.kind)),
				zap.String("id", id),
				zap.Error(err),
			)
			continue
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: list %s", r.kind)
}

// Get loads one entity by id.
func (r *SQLiteRepository[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM entities WHERE kind = ? AND id = ?`, string(r.kind), id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return v, eris.Wrapf(ErrNotFound, "%s %s", r.kind, id)
	}
	if err != nil {
		return v, eris.Wrapf(err, "sqlite: get %s %s", r.kind, id)
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, eris.Wrapf(err, "sqlite: decode %s %s", r.kind, id)
	}
	return v, nil
}

// Put inserts or replaces the entity.
func (r *SQLiteRepository[T]) Put(ctx context.Context, entity T) error {
	id := entity.EntityID()
	if err := validID(id); err != nil {
		return err
	}
	body, err := json.Marshal(entity)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s %s", r.kind, id)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entities (kind, id, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(r.kind), id, string(body), r.now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put %s %s", r.kind, id)
}
