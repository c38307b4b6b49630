package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// FileRepository keeps one pretty-printed JSON file per entity. The
// directory listing is the only index.
type FileRepository[T model.Entity] struct {
	dir  string
	kind Kind
}

// NewFileRepository stores entities under root/kind.
func NewFileRepository[T model.Entity](root string, kind Kind) *FileRepository[T] {
	return &FileRepository[T]{dir: filepath.Join(root, string(kind)), kind: kind}
}

// List decodes every *.json file in the directory, in filename order. A
// missing directory is an empty stage. Files that cannot be read or decoded
// are logged and skipped.
func (r *FileRepository[T]) List(ctx context.Context) ([]T, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: list %s", r.kind)
	}

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		v, err := r.read(path)
		if err != nil {
			zap.L().Warn("store: skipping unreadable entity",
				zap.String("kind", string(r.kind)),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Get loads one entity by id.
func (r *FileRepository[T]) Get(_ context.Context, id string) (T, error) {
	var zero T
	if err := validID(id); err != nil {
		return zero, err
	}
	v, err := r.read(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return zero, eris.Wrapf(ErrNotFound, "%s %s", r.kind, id)
	}
	return v, err
}

// Put writes the entity, replacing any previous version. The file is
// written beside its final name and renamed into place.
func (r *FileRepository[T]) Put(_ context.Context, entity T) error {
	id := entity.EntityID()
	if err := validID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "store: marshal %s %s", r.kind, id)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return eris.Wrapf(err, "store: create %s", r.dir)
	}

	tmp, err := os.CreateTemp(r.dir, "."+id+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "store: write %s %s", r.kind, id)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "store: write %s %s", r.kind, id)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "store: write %s %s", r.kind, id)
	}
	return eris.Wrapf(os.Rename(tmp.Name(), r.path(id)), "store: write %s %s", r.kind, id)
}

func (r *FileRepository[T]) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *FileRepository[T]) read(path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return v, eris.Errorf("store: empty file %s", path)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, eris.Wrapf(err, "store: decode %s", path)
	}
	return v, nil
}
