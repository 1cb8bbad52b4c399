package parquet

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/store"
)

// readTable loads a whole file into a Table so that Append and Extend can
// rewrite it with the new rows or columns.
func (b *Backend) readTable(ctx context.Context, local, dataset string) (*store.Table, error) {
	rdr, err := file.OpenParquetFile(local, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "cannot open parquet file").
			WithDetail("path", local)
	}
	defer rdr.Close()

	f, err := newParquetFile(b, local, rdr, dataset)
	if err != nil {
		return nil, err
	}
	tbl, err := f.fr.ReadTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read parquet table").
			WithDetail("path", local)
	}
	defer tbl.Release()

	t := store.NewTable(f.dataset)
	if dataset != "" {
		t = store.NewTable(dataset)
	}
	scratch := columnar.NewBuffer(columnar.Float64, 16)

	for _, decl := range f.decls {
		if _, err := t.Declare(decl); err != nil {
			return nil, err
		}
		col, _ := t.Column(decl.Name)
		if scratch.Type() != decl.Type {
			scratch = columnar.NewBuffer(decl.Type, scratch.Cap())
		}

		for _, arr := range tbl.Column(f.fields[decl.Name]).Data().Chunks() {
			for i := 0; i < arr.Len(); i++ {
				n, err := decodeRow(scratch, arr, i)
				if err != nil {
					return nil, err
				}
				if n > scratch.Cap() {
					scratch = columnar.NewBuffer(decl.Type, 2*n+1)
					if n, err = decodeRow(scratch, arr, i); err != nil {
						return nil, err
					}
				}
				col.AppendRow(scratch, n)
			}
		}
	}

	b.logger.Debug("loaded parquet file for rewrite",
		zap.String("path", local),
		zap.Int64("rows", t.Entries()))
	return t, nil
}

// writeTable writes t to path through a temporary file in the same directory,
// so readers never observe a partially written file.
func (b *Backend) writeTable(path string, t *store.Table) error {
	rec, err := b.record(t)
	if err != nil {
		return err
	}
	defer rec.Release()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
	}
	tmp, err := os.CreateTemp(dir, ".strata-*.parquet")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name())

	props := parquet.NewWriterProperties(
		parquet.WithCompression(b.codec),
		parquet.WithMaxRowGroupLength(b.rowGroupLength),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(b.alloc))

	fw, err := pqarrow.NewFileWriter(rec.Schema(), tmp, props, arrowProps)
	if err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}
	if rec.NumRows() > 0 {
		if err := fw.Write(rec); err != nil {
			fw.Close()
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write parquet rows")
		}
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish parquet file")
	}
	// The parquet writer closes its sink.
	if err := tmp.Close(); err != nil && !stderrors.Is(err, os.ErrClosed) {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close temporary file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to replace destination")
	}

	b.logger.Info("wrote parquet file",
		zap.String("path", path),
		zap.String("dataset", t.Dataset()),
		zap.Int64("rows", rec.NumRows()),
		zap.Int64("columns", rec.NumCols()))
	return nil
}

func (b *Backend) record(t *store.Table) (arrow.Record, error) {
	decls := t.Columns()
	fields := make([]arrow.Field, 0, len(decls))
	cols := make([]arrow.Array, 0, len(decls))
	keys := []string{MetaDataset}
	values := []string{t.Dataset()}

	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for _, decl := range decls {
		col, _ := t.Column(decl.Name)
		arr, err := b.buildColumn(col)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build column").
				WithDetail("column", decl.Name)
		}
		cols = append(cols, arr)
		fields = append(fields, arrow.Field{Name: decl.Name, Type: arr.DataType()})
		keys = append(keys, MetaColumnPrefix+decl.Name)
		values = append(values, decl.String())
	}

	md := arrow.NewMetadata(keys, values)
	schema := arrow.NewSchema(fields, &md)
	return array.NewRecord(schema, cols, t.Entries()), nil
}

func (b *Backend) buildColumn(col *store.Column) (arrow.Array, error) {
	decl := col.Decl()
	elem := arrowType(decl.Type)
	vals := col.Values()

	if !decl.IsArray() {
		bld := array.NewBuilder(b.alloc, elem)
		defer bld.Release()
		bld.Reserve(int(col.Rows()))
		for r := int64(0); r < col.Rows(); r++ {
			start, end := col.Row(r)
			if start == end {
				bld.AppendNull()
				continue
			}
			if err := appendElement(bld, vals, start); err != nil {
				return nil, err
			}
		}
		return bld.NewArray(), nil
	}

	lb := array.NewListBuilder(b.alloc, elem)
	defer lb.Release()
	vb := lb.ValueBuilder()
	for r := int64(0); r < col.Rows(); r++ {
		lb.Append(true)
		start, end := col.Row(r)
		for i := start; i < end; i++ {
			if err := appendElement(vb, vals, i); err != nil {
				return nil, err
			}
		}
	}
	return lb.NewArray(), nil
}
