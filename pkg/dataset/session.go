package dataset

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/formula"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/store"
)

// Session reads one dataset row by row. It owns the chain, the column cache,
// the alias table and the compiled formulas. A Session is not safe for
// concurrent use.
type Session struct {
	chain    *Chain
	cache    *Cache
	logger   *zap.Logger
	aliases  map[string]string
	formulas map[string]*formula.Program

	entry        int64
	compilations int
	shouldPrint  bool
}

// NewSession returns a session reading through chain.
func NewSession(chain *Chain, opts ...Option) *Session {
	o := buildOptions(opts)
	return &Session{
		chain:    chain,
		cache:    NewCache(chain, opts...),
		logger:   o.logger.With(zap.String("dataset", chain.dataset)),
		aliases:  make(map[string]string),
		formulas: make(map[string]*formula.Program),
	}
}

// Open builds a chain over paths and returns a session for it. Paths that
// fail to open are skipped and reported in the returned error; the session is
// nil only when no path could be opened.
func Open(ctx context.Context, backend store.Backend, dataset string, paths []string, opts ...Option) (*Session, error) {
	chain := NewChain(dataset, backend, opts...)
	err := chain.AddFiles(ctx, paths...)
	if len(chain.files) == 0 && len(paths) > 0 {
		return nil, err
	}
	return NewSession(chain, opts...), err
}

// Chain returns the underlying chain.
func (s *Session) Chain() *Chain { return s.chain }

// Cache returns the column cache.
func (s *Session) Cache() *Cache { return s.cache }

// AddAlias makes alias read as target. An existing alias is overwritten.
func (s *Session) AddAlias(alias, target string) {
	s.aliases[alias] = target
}

// resolve follows aliases until a name that is not an alias, stopping if the
// aliases loop.
func (s *Session) resolve(name string) string {
	for range len(s.aliases) {
		target, ok := s.aliases[name]
		if !ok {
			break
		}
		name = target
	}
	return name
}

// Declaration returns the declaration of the column name denotes after
// alias resolution.
func (s *Session) Declaration(name string) (columnar.Declaration, bool) {
	return s.chain.Column(s.resolve(name))
}

// Has reports whether name, after alias resolution, is a column of the
// primary files or a friend.
func (s *Session) Has(name string) bool {
	return s.chain.Has(s.resolve(name))
}

// Entry returns the current logical row.
func (s *Session) Entry() int64 { return s.entry }

// Rows returns the total row count.
func (s *Session) Rows() int64 { return s.chain.Entries() }

// Seek moves the current row.
func (s *Session) Seek(row int64) error {
	if row < 0 || row >= s.chain.Entries() {
		return errors.Newf(errors.ErrorTypeOutOfRange, "row %d outside [0, %d)", row, s.chain.Entries())
	}
	s.entry = row
	return nil
}

// ShouldPrint reports whether the iterator emitted a progress line for the
// current row.
func (s *Session) ShouldPrint() bool { return s.shouldPrint }

// Compilations returns how many formulas the session has compiled.
func (s *Session) Compilations() int { return s.compilations }

// Read returns column name at the current row.
func (s *Session) Read(ctx context.Context, name string) (columnar.Value, error) {
	return s.ReadAt(ctx, name, s.entry)
}

// ReadAt returns column name at row without moving the current row.
func (s *Session) ReadAt(ctx context.Context, name string, row int64) (columnar.Value, error) {
	return s.cache.Read(ctx, s.resolve(name), row)
}

// Get returns a column, or evaluates text as a formula, at the current row.
func (s *Session) Get(ctx context.Context, text string) (columnar.Value, error) {
	return s.getAt(ctx, text, s.entry)
}

func (s *Session) getAt(ctx context.Context, text string, row int64) (columnar.Value, error) {
	if _, ok := s.aliases[text]; ok || s.chain.Has(text) {
		return s.cache.Read(ctx, s.resolve(text), row)
	}
	p, err := s.program(text)
	if err != nil {
		return columnar.Value{}, err
	}
	v, err := p.Eval(rowEnv{ctx: ctx, s: s, row: row})
	if err != nil {
		return columnar.Value{}, err
	}
	return columnar.Scalar(v), nil
}

// Eval returns the first element of Get.
func (s *Session) Eval(ctx context.Context, text string) (float64, error) {
	v, err := s.Get(ctx, text)
	if err != nil {
		return 0, err
	}
	if v.Len() == 0 {
		return 0, errors.Newf(errors.ErrorTypeOutOfRange, "%q is empty at row %d", text, s.entry)
	}
	return v.Float64(), nil
}

// Select evaluates text as a selection at the current row.
func (s *Session) Select(ctx context.Context, text string) (bool, error) {
	v, err := s.Eval(ctx, text)
	return v != 0, err
}

// Compile returns the program for text, compiling it on first use. Programs
// are cached under the literal text; aliases inside it are resolved when the
// program reads a column.
func (s *Session) Compile(text string) (*formula.Program, error) {
	return s.program(text)
}

func (s *Session) program(text string) (*formula.Program, error) {
	if p, ok := s.formulas[text]; ok {
		return p, nil
	}
	p, err := formula.Compile(text, s.Has)
	if err != nil {
		return nil, err
	}
	s.formulas[text] = p
	s.compilations++
	metrics.FormulaCompilations.WithLabelValues(s.chain.dataset).Inc()
	s.logger.Debug("formula compiled",
		zap.String("formula", text),
		zap.Strings("columns", p.Columns()))
	return p, nil
}

// Count returns the number of rows. A non-empty selection counts only the
// rows where it holds.
func (s *Session) Count(ctx context.Context, selection string) (int64, error) {
	if strings.TrimSpace(selection) == "" {
		return s.chain.Entries(), nil
	}
	p, err := s.Compile(selection)
	if err != nil {
		return 0, err
	}

	var n int64
	for row := range s.chain.Entries() {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		ok, err := p.Bool(rowEnv{ctx: ctx, s: s, row: row})
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Extrema returns the smallest and largest element of a column or formula
// over every row.
func (s *Session) Extrema(ctx context.Context, text string) (lo, hi float64, err error) {
	lo, hi = math.Inf(1), math.Inf(-1)
	var seen int64
	for row := range s.chain.Entries() {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, 0, err
			}
		}
		v, err := s.getAt(ctx, text, row)
		if err != nil {
			return 0, 0, err
		}
		for i := range v.Len() {
			x := v.At(i)
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
			seen++
		}
	}
	if seen == 0 {
		return 0, 0, errors.Newf(errors.ErrorTypeOutOfRange, "%q has no values", text)
	}
	return lo, hi, nil
}

// Minimum returns the smallest element of a column or formula.
func (s *Session) Minimum(ctx context.Context, text string) (float64, error) {
	lo, _, err := s.Extrema(ctx, text)
	return lo, err
}

// Maximum returns the largest element of a column or formula.
func (s *Session) Maximum(ctx context.Context, text string) (float64, error) {
	_, hi, err := s.Extrema(ctx, text)
	return hi, err
}

// ListColumns returns every column name, primary columns first.
func (s *Session) ListColumns() []string {
	decls := s.chain.Columns()
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	return names
}

// SearchColumns returns the column names containing substr.
func (s *Session) SearchColumns(substr string) []string {
	var out []string
	for _, name := range s.ListColumns() {
		if strings.Contains(name, substr) {
			out = append(out, name)
		}
	}
	return out
}

// Close closes the chain.
func (s *Session) Close() error {
	s.cache.Reset()
	return s.chain.Close()
}

// rowEnv evaluates formulas at a fixed row.
type rowEnv struct {
	ctx context.Context
	s   *Session
	row int64
}

func (e rowEnv) Read(name string) (columnar.Value, error) {
	return e.s.ReadAt(e.ctx, name, e.row)
}

func (e rowEnv) Entry() int64 { return e.row }
