package store

import (
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// Table is an in-memory column set. The memory backend serves reads straight
// from it and every backend stages writes in one until Close.
type Table struct {
	dataset string
	columns []*Column
	byName  map[string]*Column
}

// Column stores every row of one column as a flat element buffer plus row
// offsets.
type Column struct {
	decl    columnar.Declaration
	values  columnar.Buffer
	used    int
	offsets []int
	bound   columnar.Buffer
}

// NewTable returns an empty table for the named dataset.
func NewTable(dataset string) *Table {
	return &Table{
		dataset: dataset,
		byName:  make(map[string]*Column),
	}
}

func (t *Table) Dataset() string { return t.dataset }

// Declare adds a column. Redeclaring an existing column with the same element
// type reports existing == true; a different type is a type_mismatch.
func (t *Table) Declare(decl columnar.Declaration) (bool, error) {
	if err := decl.Validate(); err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeTypeMismatch, "invalid column declaration")
	}
	if c, ok := t.byName[decl.Name]; ok {
		if c.decl.Type != decl.Type {
			return true, errors.Newf(errors.ErrorTypeTypeMismatch,
				"column %q is stored as %s, declared as %s", decl.Name, c.decl.Type.Name(), decl.Type.Name())
		}
		if decl.Arity > c.decl.Arity {
			c.decl.Arity = decl.Arity
		}
		return true, nil
	}
	if decl.LengthColumn != "" {
		if _, ok := t.byName[decl.LengthColumn]; !ok {
			return false, errors.UnknownColumn(decl.LengthColumn).
				WithDetail("declaring", decl.Name)
		}
	}

	c := &Column{
		decl:    decl,
		values:  columnar.NewBuffer(decl.Type, 16),
		offsets: []int{0},
	}
	t.columns = append(t.columns, c)
	t.byName[decl.Name] = c
	return false, nil
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// Columns returns the declarations in declaration order.
func (t *Table) Columns() []columnar.Declaration {
	out := make([]columnar.Declaration, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.decl
	}
	return out
}

// Bind sets the buffer captured by Fill and FillColumn.
func (t *Table) Bind(name string, buf columnar.Buffer) error {
	c, ok := t.byName[name]
	if !ok {
		return errors.UnknownColumn(name)
	}
	if buf.Type() != c.decl.Type {
		return errors.Newf(errors.ErrorTypeTypeMismatch,
			"column %q holds %s, buffer holds %s", name, c.decl.Type.Name(), buf.Type().Name())
	}
	c.bound = buf
	return nil
}

// Fill captures one row for every bound column. When padUnbound is set,
// columns without a buffer receive a zero row so the table stays rectangular.
func (t *Table) Fill(padUnbound bool) error {
	for _, c := range t.columns {
		if c.bound == nil {
			if padUnbound {
				c.appendZero()
			}
			continue
		}
		if err := t.fillColumn(c); err != nil {
			return err
		}
	}
	return nil
}

// FillColumn captures one row of a single bound column.
func (t *Table) FillColumn(name string) error {
	c, ok := t.byName[name]
	if !ok {
		return errors.UnknownColumn(name)
	}
	if c.bound == nil {
		return errors.Newf(errors.ErrorTypeInternal, "column %q has no bound buffer", name)
	}
	return t.fillColumn(c)
}

func (t *Table) fillColumn(c *Column) error {
	var length int64
	if c.decl.LengthColumn != "" {
		lc := t.byName[c.decl.LengthColumn]
		if lc.bound == nil || lc.bound.Cap() == 0 {
			return errors.Newf(errors.ErrorTypeInternal,
				"length column %q of %q has no bound buffer", c.decl.LengthColumn, c.decl.Name)
		}
		length = lc.bound.Int64(0)
	}
	n := ElementCount(c.decl, length)
	if c.decl.Arity > 1 && n > c.decl.Arity {
		n = c.decl.Arity
	}
	c.AppendRow(c.bound, n)
	return nil
}

// Entries returns the largest column row count.
func (t *Table) Entries() int64 {
	return Entries(t.Counts())
}

// ColumnEntries returns the row count of one column.
func (t *Table) ColumnEntries(name string) (int64, error) {
	c, ok := t.byName[name]
	if !ok {
		return 0, errors.UnknownColumn(name)
	}
	return c.Rows(), nil
}

// Counts returns the row count of every column.
func (t *Table) Counts() map[string]int64 {
	counts := make(map[string]int64, len(t.columns))
	for _, c := range t.columns {
		counts[c.decl.Name] = c.Rows()
	}
	return counts
}

// Clone returns a deep copy with no bound buffers.
func (t *Table) Clone() *Table {
	out := NewTable(t.dataset)
	for _, c := range t.columns {
		cc := &Column{
			decl:    c.decl,
			values:  columnar.NewBuffer(c.decl.Type, max(c.used, 16)),
			used:    c.used,
			offsets: append([]int(nil), c.offsets...),
		}
		columnar.Copy(cc.values, c.values, c.used)
		out.columns = append(out.columns, cc)
		out.byName[cc.decl.Name] = cc
	}
	return out
}

func (c *Column) Decl() columnar.Declaration { return c.decl }

// Rows returns the number of committed rows.
func (c *Column) Rows() int64 { return int64(len(c.offsets) - 1) }

// Row returns the element range [start, end) of row r in Values.
func (c *Column) Row(r int64) (start, end int) {
	return c.offsets[r], c.offsets[r+1]
}

// Values returns the flat element buffer. Only the first Len elements are
// meaningful.
func (c *Column) Values() columnar.Buffer { return c.values }

// Len returns the number of stored elements across all rows.
func (c *Column) Len() int { return c.used }

// AppendRow appends the first n elements of src as one row.
func (c *Column) AppendRow(src columnar.Buffer, n int) {
	n = min(n, src.Cap())
	if n < 0 {
		n = 0
	}
	c.reserve(n)
	for i := 0; i < n; i++ {
		columnar.Transfer(c.values, c.used+i, src, i)
	}
	c.used += n
	c.offsets = append(c.offsets, c.used)
}

// AppendFloat64s appends vals as one row.
func (c *Column) AppendFloat64s(vals ...float64) {
	c.reserve(len(vals))
	for i, v := range vals {
		c.values.SetFloat64(c.used+i, v)
	}
	c.used += len(vals)
	c.offsets = append(c.offsets, c.used)
}

// AppendInt64s appends vals as one row.
func (c *Column) AppendInt64s(vals ...int64) {
	c.reserve(len(vals))
	for i, v := range vals {
		c.values.SetInt64(c.used+i, v)
	}
	c.used += len(vals)
	c.offsets = append(c.offsets, c.used)
}

// Load copies row r into dst, dropping elements beyond dst's capacity.
func (c *Column) Load(dst columnar.Buffer, r int64) error {
	if r < 0 || r >= c.Rows() {
		return errors.Newf(errors.ErrorTypeOutOfRange, "row %d outside [0, %d) of column %q", r, c.Rows(), c.decl.Name)
	}
	start, end := c.Row(r)
	n := min(end-start, dst.Cap())
	for i := 0; i < n; i++ {
		columnar.Transfer(dst, i, c.values, start+i)
	}
	return nil
}

func (c *Column) appendZero() {
	n := ElementCount(c.decl, 0)
	c.reserve(n)
	for i := 0; i < n; i++ {
		c.values.SetInt64(c.used+i, 0)
	}
	c.used += n
	c.offsets = append(c.offsets, c.used)
}

func (c *Column) reserve(n int) {
	if need := c.used + n; need > c.values.Cap() {
		c.values = columnar.Grow(c.values, max(need, 2*c.values.Cap()))
	}
}
