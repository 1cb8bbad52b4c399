// Package writer fills the columns of an output dataset row by row.
//
// A Writer declares typed columns, takes values with Set or Commit and hands
// completed rows to a store.Sink. In unified mode every Commit adds one row to
// all columns at once. In independent mode each declared column advances on
// its own, which is how new columns are added next to rows that already
// exist:
//
//	w, err := writer.New(ctx, backend, "scored.parquet", "DecayTree",
//		writer.WithMode(store.Extend))
//	...
//	w.Declare("BDT", writer.Type(columnar.Float32))
//	for ... {
//		w.Commit(map[string]any{"BDT": score})
//	}
//	err = w.Close()
//
// Values for columns that were never declared are logged and counted, not
// returned from Commit, so that one bad key does not stop a long fill loop.
package writer

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/store"
)

// CommitMode selects how Commit finalizes a row.
type CommitMode int

const (
	// Unified adds one row to every column of the output.
	Unified CommitMode = iota
	// Independent adds one row to each column declared by this writer.
	Independent
)

func (m CommitMode) String() string {
	if m == Independent {
		return "independent"
	}
	return "unified"
}

// Option configures a Writer.
type Option func(*Writer)

// WithMode sets how an existing destination is treated. The default is
// store.Create.
func WithMode(mode store.WriteMode) Option {
	return func(w *Writer) { w.mode = mode }
}

// WithCommit sets the commit mode. Extend defaults to Independent, every
// other mode to Unified.
func WithCommit(mode CommitMode) Option {
	return func(w *Writer) { w.commit = &mode }
}

// WithLogger sets the logger. The default is logger.Get().
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// WithColumns declares columns from declaration strings such as "x",
// "pt/F" or "p[3]/D" when the writer is created.
func WithColumns(decls ...string) Option {
	return func(w *Writer) { w.initial = append(w.initial, decls...) }
}

type column struct {
	decl columnar.Declaration
	buf  columnar.Buffer
	// limit is the number of elements Set copies; 0 means the buffer grows
	// to fit.
	limit int
}

// Writer writes one output dataset. It is not safe for concurrent use.
type Writer struct {
	ctx     context.Context
	sink    store.Sink
	path    string
	dataset string
	mode    store.WriteMode
	commit  *CommitMode
	logger  *zap.Logger
	initial []string

	columns map[string]*column
	order   []string

	rows        int64
	diagnostics int
	closed      bool
}

// New opens path for writing the named dataset.
func New(ctx context.Context, backend store.Backend, path, dataset string, opts ...Option) (*Writer, error) {
	w := &Writer{
		ctx:     ctx,
		path:    path,
		dataset: dataset,
		columns: make(map[string]*column),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.With(zap.String(logger.DatasetKey, dataset), zap.String(logger.FileKey, path))
	if w.commit == nil {
		mode := Unified
		if w.mode == store.Extend {
			mode = Independent
		}
		w.commit = &mode
	}

	sink, err := backend.Create(ctx, path, dataset, w.mode)
	if err != nil {
		return nil, err
	}
	w.sink = sink

	for _, d := range w.initial {
		if err := w.DeclareString(d); err != nil {
			_ = sink.Close()
			return nil, err
		}
	}

	w.logger.Debug("writer opened",
		zap.Stringer("mode", w.mode),
		zap.Stringer("commit", *w.commit),
		zap.Int64("existing_rows", sink.Entries()))
	return w, nil
}

// ColumnOption shapes a declared column.
type ColumnOption func(*columnar.Declaration)

// Type sets the element type. The default is columnar.Float64.
func Type(code columnar.TypeCode) ColumnOption {
	return func(d *columnar.Declaration) { d.Type = code }
}

// Arity sets the fixed number of elements per row. The default is 1.
func Arity(n int) ColumnOption {
	return func(d *columnar.Declaration) { d.Arity = n }
}

// LengthFrom makes the row length of the column the value of another,
// already declared column.
func LengthFrom(name string) ColumnOption {
	return func(d *columnar.Declaration) { d.LengthColumn = name }
}

// Declare registers an output column.
func (w *Writer) Declare(name string, opts ...ColumnOption) error {
	decl := columnar.Declaration{Name: name, Type: columnar.Float64, Arity: 1}
	for _, opt := range opts {
		opt(&decl)
	}
	return w.declare(decl)
}

// DeclareString registers an output column from a declaration string. An
// array sized by another column without a fixed arity, such as "y[n]/F",
// grows to fit whatever Set is given.
func (w *Writer) DeclareString(s string) error {
	decl, err := columnar.ParseDeclaration(s)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid column declaration")
	}
	return w.declare(decl)
}

func (w *Writer) declare(decl columnar.Declaration) error {
	if w.closed {
		return errClosed()
	}
	if _, ok := w.columns[decl.Name]; ok {
		return errors.Newf(errors.ErrorTypeDuplicateColumn, "column %q already declared", decl.Name).
			WithDetail("dataset", w.dataset)
	}
	if err := decl.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid column declaration")
	}

	existing, err := w.sink.Declare(decl)
	if err != nil {
		return err
	}

	limit := max(decl.Arity, 1)
	if decl.LengthColumn != "" && decl.Arity == 0 {
		limit = 0
	}
	c := &column{decl: decl, buf: columnar.NewBuffer(decl.Type, max(limit, 1)), limit: limit}
	if err := w.sink.Bind(decl.Name, c.buf); err != nil {
		return err
	}
	w.columns[decl.Name] = c
	w.order = append(w.order, decl.Name)

	w.logger.Debug("column declared",
		zap.String("column", decl.String()),
		zap.Bool("existing", existing))
	return nil
}

// Columns returns the declared column names in declaration order.
func (w *Writer) Columns() []string { return append([]string(nil), w.order...) }

// Set stores value for the next committed row. A sequence fills elements
// from the start up to the column's arity; a scalar sets element 0 and leaves
// the others as they were. Columns keep their value across rows until set
// again.
func (w *Writer) Set(name string, value any) error {
	if w.closed {
		return errClosed()
	}
	c, ok := w.columns[name]
	if !ok {
		err := errors.UnknownColumn(name).WithDetail("dataset", w.dataset)
		w.diagnose("unknown_column", name, err)
		return err
	}

	limit := c.limit
	if limit == 0 {
		limit = length(value)
		if limit > c.buf.Cap() {
			c.buf = columnar.Grow(c.buf, 2*limit)
			if err := w.sink.Bind(name, c.buf); err != nil {
				return err
			}
		}
	}
	if _, err := assign(c.buf, limit, value); err != nil {
		w.diagnose("type_mismatch", name, err)
		return err
	}
	return nil
}

func (w *Writer) diagnose(kind, name string, err error) {
	w.diagnostics++
	metrics.WriterDiagnostics.WithLabelValues(w.dataset, kind).Inc()
	w.logger.Warn("value not stored",
		zap.String("column", name),
		zap.String("kind", kind),
		zap.Error(err))
}

// Commit sets each entry of values and finalizes the row. Values that could
// not be stored are reported through Diagnostics and do not fail the commit.
func (w *Writer) Commit(values map[string]any) error {
	if w.closed {
		return errClosed()
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		// Set has already recorded the diagnostic.
		_ = w.Set(name, values[name])
	}

	switch *w.commit {
	case Independent:
		for _, name := range w.order {
			if err := w.sink.FillColumn(name); err != nil {
				return err
			}
		}
	default:
		if err := w.sink.Fill(); err != nil {
			return err
		}
	}
	w.rows++
	metrics.RowsWritten.WithLabelValues(w.dataset, w.commit.String()).Inc()
	return nil
}

// Entries returns the row count of the output, including rows that existed
// before the writer was opened.
func (w *Writer) Entries() int64 { return w.sink.Entries() }

// ColumnEntries returns the row count of a single column.
func (w *Writer) ColumnEntries(name string) (int64, error) { return w.sink.ColumnEntries(name) }

// Diagnostics returns how many values were reported and skipped.
func (w *Writer) Diagnostics() int { return w.diagnostics }

// Close writes the output. Columns holding different row counts are refused
// and nothing is written. Closing twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	return observability.Trace(w.ctx, "writer.close", func(ctx context.Context) error {
		if err := w.sink.Close(); err != nil {
			w.logger.Error("output not written", zap.Error(err))
			return err
		}
		w.logger.Info("output written",
			zap.Int64("committed", w.rows),
			zap.Int64("entries", w.sink.Entries()),
			zap.Int("diagnostics", w.diagnostics))
		return nil
	},
		attribute.String("dataset", w.dataset),
		attribute.String("path", w.path),
		attribute.String("mode", w.mode.String()),
		attribute.Int64("rows", w.rows))
}

func errClosed() error {
	return errors.New(errors.ErrorTypeFile, "writer is closed")
}

