package dataset

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/store"
)

type cacheEntry struct {
	decl    columnar.Declaration
	buf     columnar.Buffer
	lastRow int64
}

// Cache decodes one row of a column at a time into a reusable buffer. A
// returned Value views the buffer and is valid until the column is read at a
// different row.
type Cache struct {
	chain     *Chain
	logger    *zap.Logger
	entries   map[string]*cacheEntry
	resolving map[string]bool
}

// NewCache returns a cache reading through chain.
func NewCache(chain *Chain, opts ...Option) *Cache {
	o := buildOptions(opts)
	return &Cache{
		chain:     chain,
		logger:    o.logger,
		entries:   make(map[string]*cacheEntry),
		resolving: make(map[string]bool),
	}
}

// Read returns the value of the canonical column name at row. Array columns
// with a length column expose exactly that many elements.
func (c *Cache) Read(ctx context.Context, name string, row int64) (columnar.Value, error) {
	e, err := c.entry(name)
	if err != nil {
		return columnar.Value{}, err
	}

	n, err := c.required(ctx, e, row)
	if err != nil {
		return columnar.Value{}, err
	}

	if e.lastRow != row || e.buf == nil {
		if e.buf == nil || e.buf.Cap() < n {
			c.grow(e, n)
		}
		if err := c.chain.Load(ctx, name, row, e.buf); err != nil {
			e.lastRow = -1
			return columnar.Value{}, err
		}
		metrics.ColumnDecodes.WithLabelValues(c.chain.dataset).Inc()
		e.lastRow = row
	}
	return columnar.NewValue(e.buf, n, e.decl.IsArray()), nil
}

func (c *Cache) entry(name string) (*cacheEntry, error) {
	if e, ok := c.entries[name]; ok {
		return e, nil
	}
	decl, ok := c.chain.Column(name)
	if !ok {
		return nil, errors.UnknownColumn(name)
	}
	e := &cacheEntry{decl: decl, lastRow: -1}
	c.entries[name] = e
	return e, nil
}

// required returns the element count of row, reading the length column
// through the cache first when there is one.
func (c *Cache) required(ctx context.Context, e *cacheEntry, row int64) (int, error) {
	lc := e.decl.LengthColumn
	if lc == "" {
		return store.ElementCount(e.decl, 0), nil
	}
	if c.resolving[e.decl.Name] {
		return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "length column cycle through %q", e.decl.Name)
	}
	c.resolving[e.decl.Name] = true
	defer delete(c.resolving, e.decl.Name)

	v, err := c.Read(ctx, lc, row)
	if err != nil {
		return 0, err
	}
	var length int64
	if v.Len() > 0 {
		length = v.Int64At(0)
	}
	return store.ElementCount(e.decl, length), nil
}

// grow replaces the entry's buffer with one of 2n+1 elements. Buffers never
// shrink.
func (c *Cache) grow(e *cacheEntry, n int) {
	size := 2*n + 1
	if e.buf != nil && e.buf.Cap() >= size {
		size = e.buf.Cap()
	}
	buf := columnar.NewBuffer(e.decl.Type, size)
	if e.buf != nil {
		metrics.BufferReallocations.WithLabelValues(c.chain.dataset).Inc()
		c.logger.Debug("column buffer grown",
			zap.String("column", e.decl.Name),
			zap.Int("from", e.buf.Cap()),
			zap.Int("to", size))
	}
	e.buf = buf
	e.lastRow = -1
}

// Capacity returns the buffer capacity of a cached column, or 0 if the column
// has not been read.
func (c *Cache) Capacity(name string) int {
	e, ok := c.entries[name]
	if !ok || e.buf == nil {
		return 0
	}
	return e.buf.Cap()
}

// Materialize reads every column of the chain at row.
func (c *Cache) Materialize(ctx context.Context, row int64) error {
	for _, d := range c.chain.Columns() {
		if _, err := c.Read(ctx, d.Name, row); err != nil {
			return err
		}
	}
	return nil
}

// Reset forgets all entries. Buffers are reallocated on the next read.
func (c *Cache) Reset() {
	c.entries = make(map[string]*cacheEntry)
}
