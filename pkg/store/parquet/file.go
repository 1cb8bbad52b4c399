package parquet

import (
	"context"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// parquetFile is a store.File over one Parquet file.
type parquetFile struct {
	path    string
	dataset string
	rdr     *file.Reader
	fr      *pqarrow.FileReader
	alloc   memory.Allocator
	logger  *zap.Logger

	decls  []columnar.Declaration
	byName map[string]int
	fields map[string]int
	// starts[g] is the first row of row group g; the last entry is the row count.
	starts []int64

	bound  map[string]columnar.Buffer
	chunks map[string]*chunk
}

// chunk is the decoded data of one column in one row group.
type chunk struct {
	group int
	arr   arrow.Array
}

func openFile(ctx context.Context, b *Backend, path, local, dataset string) (*parquetFile, error) {
	rdr, err := file.OpenParquetFile(local, b.memoryMap)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "cannot open parquet file").
			WithDetail("path", path)
	}

	f, err := newParquetFile(b, path, rdr, dataset)
	if err != nil {
		rdr.Close()
		return nil, err
	}
	b.logger.Debug("opened parquet file",
		zap.String("path", path),
		zap.Int("row_groups", len(f.starts)-1),
		zap.Int("columns", len(f.decls)))
	return f, nil
}

func newParquetFile(b *Backend, path string, rdr *file.Reader, dataset string) (*parquetFile, error) {
	meta := metaLookup(rdr)
	stored, _ := meta(MetaDataset)
	if dataset != "" && stored != dataset {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable, "file holds dataset %q, not %q", stored, dataset).
			WithDetail("path", path)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, b.alloc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to create arrow reader").
			WithDetail("path", path)
	}
	schema, err := fr.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to read arrow schema").
			WithDetail("path", path)
	}
	decls, err := declarations(schema, meta)
	if err != nil {
		return nil, err
	}

	f := &parquetFile{
		path:    path,
		dataset: stored,
		rdr:     rdr,
		fr:      fr,
		alloc:   b.alloc,
		logger:  b.logger,
		decls:   decls,
		byName:  make(map[string]int, len(decls)),
		fields:  make(map[string]int, len(decls)),
		starts:  make([]int64, 1, rdr.NumRowGroups()+1),
		bound:   make(map[string]columnar.Buffer),
		chunks:  make(map[string]*chunk),
	}
	for i, d := range decls {
		f.byName[d.Name] = i
		if idx := schema.FieldIndices(d.Name); len(idx) > 0 {
			f.fields[d.Name] = idx[0]
		}
	}
	var total int64
	for g := 0; g < rdr.NumRowGroups(); g++ {
		total += rdr.RowGroup(g).NumRows()
		f.starts = append(f.starts, total)
	}
	return f, nil
}

func metaLookup(rdr *file.Reader) func(string) (string, bool) {
	kv := rdr.MetaData().KeyValueMetadata()
	return func(key string) (string, bool) {
		if v := kv.FindValue(key); v != nil {
			return *v, true
		}
		return "", false
	}
}

func (f *parquetFile) Path() string    { return f.path }
func (f *parquetFile) Dataset() string { return f.dataset }

func (f *parquetFile) NumRows() (int64, bool) {
	return f.starts[len(f.starts)-1], true
}

func (f *parquetFile) Columns() []columnar.Declaration {
	return append([]columnar.Declaration(nil), f.decls...)
}

func (f *parquetFile) Column(name string) (columnar.Declaration, bool) {
	i, ok := f.byName[name]
	if !ok {
		return columnar.Declaration{}, false
	}
	return f.decls[i], true
}

func (f *parquetFile) Bind(name string, buf columnar.Buffer) error {
	decl, ok := f.Column(name)
	if !ok {
		return errors.UnknownColumn(name)
	}
	if decl.Type != buf.Type() {
		return errors.Newf(errors.ErrorTypeTypeMismatch, "column %q holds %s", name, decl.Type.Name())
	}
	f.bound[name] = buf
	return nil
}

// Load decodes one row. The column chunk of the row's group stays decoded
// until a row from another group is requested.
func (f *parquetFile) Load(ctx context.Context, name string, row int64) error {
	buf, ok := f.bound[name]
	if !ok {
		if _, known := f.byName[name]; !known {
			return errors.UnknownColumn(name)
		}
		return errors.Newf(errors.ErrorTypeInternal, "column %q has no bound buffer", name)
	}
	total := f.starts[len(f.starts)-1]
	if row < 0 || row >= total {
		return errors.Newf(errors.ErrorTypeOutOfRange, "row %d outside [0, %d)", row, total).
			WithDetail("path", f.path)
	}

	group := sort.Search(len(f.starts)-1, func(g int) bool { return f.starts[g+1] > row })
	c, err := f.chunk(ctx, name, group)
	if err != nil {
		return err
	}
	_, err = decodeRow(buf, c.arr, int(row-f.starts[group]))
	return err
}

func (f *parquetFile) chunk(ctx context.Context, name string, group int) (*chunk, error) {
	if c, ok := f.chunks[name]; ok && c.group == group {
		return c, nil
	}
	field, ok := f.fields[name]
	if !ok {
		return nil, errors.UnknownColumn(name)
	}

	chunked, err := f.fr.RowGroup(group).Column(field).Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read column chunk").
			WithDetail("column", name).
			WithDetail("row_group", group)
	}
	defer chunked.Release()

	var arr arrow.Array
	switch parts := chunked.Chunks(); len(parts) {
	case 0:
		return nil, errors.Newf(errors.ErrorTypeFile, "empty column chunk for %q", name)
	case 1:
		arr = parts[0]
		arr.Retain()
	default:
		arr, err = array.Concatenate(parts, f.alloc)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to concatenate column chunk")
		}
	}

	if old, ok := f.chunks[name]; ok {
		old.arr.Release()
	}
	c := &chunk{group: group, arr: arr}
	f.chunks[name] = c
	return c, nil
}

func (f *parquetFile) Close() error {
	for _, c := range f.chunks {
		c.arr.Release()
	}
	f.chunks = nil
	f.bound = nil
	if err := f.rdr.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close parquet file")
	}
	return nil
}
