// Package memory is an in-process backing store. Tables live in an FS keyed
// by path, which makes it the store of choice for tests and for derived
// datasets that never need to touch disk.
package memory

import (
	"context"
	"sync"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/store"
)

// FS holds committed tables by path. It is safe for concurrent use; files and
// sinks obtained from it are not.
type FS struct {
	mu     sync.RWMutex
	tables map[string]*store.Table
}

// New returns an empty FS.
func New() *FS {
	return &FS{tables: make(map[string]*store.Table)}
}

// Put stores t under path, replacing anything already there.
func (fs *FS) Put(path string, t *store.Table) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.tables[path] = t
}

// Remove deletes path. Removing a missing path is a no-op.
func (fs *FS) Remove(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.tables, path)
}

// Len returns the number of stored tables.
func (fs *FS) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.tables)
}

func (fs *FS) get(path string) (*store.Table, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	t, ok := fs.tables[path]
	return t, ok
}

// Open implements store.Backend.
func (fs *FS) Open(_ context.Context, path, dataset string) (store.File, error) {
	t, ok := fs.get(path)
	if !ok {
		return nil, errors.New(errors.ErrorTypeSourceUnavailable, "no such table").
			WithDetail("path", path)
	}
	if dataset != "" && t.Dataset() != dataset {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "table holds dataset %q, not %q", t.Dataset(), dataset).
			WithDetail("path", path)
	}
	return &file{path: path, table: t, bound: make(map[string]columnar.Buffer)}, nil
}

// Create implements store.Backend. The table becomes visible to Open only
// after the sink is closed.
func (fs *FS) Create(_ context.Context, path, dataset string, mode store.WriteMode) (store.Sink, error) {
	staged := store.NewTable(dataset)
	if mode != store.Create {
		existing, ok := fs.get(path)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "cannot %s missing table", mode).
				WithDetail("path", path)
		}
		if existing.Dataset() != dataset {
			return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "table holds dataset %q, not %q", existing.Dataset(), dataset).
				WithDetail("path", path)
		}
		staged = existing.Clone()
	}
	return store.NewStagingSink(staged, mode, func(t *store.Table) error {
		fs.Put(path, t)
		return nil
	}), nil
}

type file struct {
	path  string
	table *store.Table
	bound map[string]columnar.Buffer
}

func (f *file) Path() string    { return f.path }
func (f *file) Dataset() string { return f.table.Dataset() }

func (f *file) NumRows() (int64, bool) { return f.table.Entries(), true }

func (f *file) Columns() []columnar.Declaration { return f.table.Columns() }

func (f *file) Column(name string) (columnar.Declaration, bool) {
	c, ok := f.table.Column(name)
	if !ok {
		return columnar.Declaration{}, false
	}
	return c.Decl(), true
}

func (f *file) Bind(name string, buf columnar.Buffer) error {
	c, ok := f.table.Column(name)
	if !ok {
		return errors.UnknownColumn(name)
	}
	if c.Decl().Type != buf.Type() {
		return errors.Newf(errors.ErrorTypeTypeMismatch, "column %q holds %s", name, c.Decl().Type.Name())
	}
	f.bound[name] = buf
	return nil
}

func (f *file) Load(_ context.Context, name string, row int64) error {
	c, ok := f.table.Column(name)
	if !ok {
		return errors.UnknownColumn(name)
	}
	buf, ok := f.bound[name]
	if !ok {
		return errors.Newf(errors.ErrorTypeInternal, "column %q has no bound buffer", name)
	}
	return c.Load(buf, row)
}

func (f *file) Close() error {
	f.bound = nil
	return nil
}
