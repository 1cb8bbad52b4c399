package dataset

import (
	"context"
	goerrors "errors"
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

// Option configures a Chain or a Session.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger. The default is logger.Get().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	return o
}

// FileSpan is the place of one file in a chain's logical row space.
type FileSpan struct {
	Path  string
	Start int64
	Rows  int64
}

// Chain presents an ordered list of files holding the same dataset as one
// logical sequence of rows. Friend chains contribute columns for the same
// row indices.
type Chain struct {
	dataset string
	backend store.Backend
	logger  *zap.Logger

	files []store.File
	// offsets[i] is the first logical row of files[i]; the final element is
	// the total row count.
	offsets []int64

	friends []*Chain

	// bound records the buffer each file last decoded a column into, so
	// files are rebound only when the caller's buffer changes.
	bound []map[string]columnar.Buffer
}

// NewChain returns an empty chain for the named dataset.
func NewChain(dataset string, backend store.Backend, opts ...Option) *Chain {
	o := buildOptions(opts)
	return &Chain{
		dataset: dataset,
		backend: backend,
		logger:  o.logger.With(zap.String(logger.DatasetKey, dataset)),
		offsets: []int64{0},
	}
}

// Dataset returns the logical dataset name.
func (c *Chain) Dataset() string { return c.dataset }

// AddFile opens path and appends it to the sequence.
func (c *Chain) AddFile(ctx context.Context, path string) error {
	return observability.Trace(ctx, "dataset.add_file", func(ctx context.Context) error {
		timer := metrics.NewTimer("open")
		f, err := c.backend.Open(ctx, path, c.dataset)
		metrics.FileOpenSeconds.WithLabelValues(c.dataset).Observe(timer.Stop().Seconds())
		if err != nil {
			if _, ok := err.(*errors.Error); !ok {
				err = errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "cannot open file").
					WithDetail("path", path)
			}
			return err
		}

		n, ok := f.NumRows()
		if !ok {
			_ = f.Close()
			return errors.New(errors.ErrorTypeSourceUnavailable, "file does not report a row count").
				WithDetail("path", path)
		}

		c.files = append(c.files, f)
		c.bound = append(c.bound, make(map[string]columnar.Buffer))
		c.offsets = append(c.offsets, c.offsets[len(c.offsets)-1]+n)

		c.logger.Debug("file added",
			zap.String(logger.FileKey, path),
			zap.Int64("rows", n),
			zap.Int64("total", c.Entries()))
		return nil
	}, attribute.String("path", path), attribute.String("dataset", c.dataset))
}

// AddFiles adds each path in order. A path that fails is skipped and the
// remaining paths are still added; the failures are returned joined.
func (c *Chain) AddFiles(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := c.AddFile(ctx, p); err != nil {
			c.logger.Warn("skipping file", zap.String(logger.FileKey, p), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return goerrors.Join(errs...)
}

// AddFriend attaches a row-aligned chain whose columns become readable
// through c. Attaching c to itself, directly or through other friends, is
// refused.
func (c *Chain) AddFriend(friend *Chain) error {
	if friend == nil {
		return errors.New(errors.ErrorTypeConfig, "nil friend")
	}
	if friend.reaches(c) {
		return errors.New(errors.ErrorTypeConfig, "friend would form a cycle").
			WithDetail("friend", friend.dataset)
	}
	for _, f := range c.friends {
		if f == friend {
			return nil
		}
	}
	c.friends = append(c.friends, friend)
	return nil
}

// RemoveFriend detaches friend. Removing a chain that is not attached does
// nothing.
func (c *Chain) RemoveFriend(friend *Chain) {
	for i, f := range c.friends {
		if f == friend {
			c.friends = append(c.friends[:i], c.friends[i+1:]...)
			return
		}
	}
}

// Friends returns the attached friend chains.
func (c *Chain) Friends() []*Chain { return append([]*Chain(nil), c.friends...) }

func (c *Chain) reaches(target *Chain) bool {
	if c == target {
		return true
	}
	for _, f := range c.friends {
		if f.reaches(target) {
			return true
		}
	}
	return false
}

// Entries returns the total row count.
func (c *Chain) Entries() int64 { return c.offsets[len(c.offsets)-1] }

// Files returns the paths in sequence order.
func (c *Chain) Files() []string {
	paths := make([]string, len(c.files))
	for i, f := range c.files {
		paths[i] = f.Path()
	}
	return paths
}

// Locate returns the span of the first file added under path.
func (c *Chain) Locate(path string) (FileSpan, bool) {
	for i, f := range c.files {
		if f.Path() == path {
			return FileSpan{
				Path:  path,
				Start: c.offsets[i],
				Rows:  c.offsets[i+1] - c.offsets[i],
			}, true
		}
	}
	return FileSpan{}, false
}

// Column returns the declaration of name from the primary files or, failing
// that, from the first friend that has it.
func (c *Chain) Column(name string) (columnar.Declaration, bool) {
	owner := c.owner(name)
	if owner == nil {
		return columnar.Declaration{}, false
	}
	return owner.files[0].Column(name)
}

// Has reports whether any attached source has the column.
func (c *Chain) Has(name string) bool { return c.owner(name) != nil }

// Columns lists the primary columns followed by friend columns not already
// listed.
func (c *Chain) Columns() []columnar.Declaration {
	var out []columnar.Declaration
	seen := make(map[string]bool)
	c.collect(&out, seen)
	return out
}

func (c *Chain) collect(out *[]columnar.Declaration, seen map[string]bool) {
	if len(c.files) > 0 {
		for _, d := range c.files[0].Columns() {
			if !seen[d.Name] {
				seen[d.Name] = true
				*out = append(*out, d)
			}
		}
	}
	for _, f := range c.friends {
		f.collect(out, seen)
	}
}

func (c *Chain) owner(name string) *Chain {
	if len(c.files) > 0 {
		if _, ok := c.files[0].Column(name); ok {
			return c
		}
	}
	for _, f := range c.friends {
		if o := f.owner(name); o != nil {
			return o
		}
	}
	return nil
}

// Load decodes logical row of name into buf. Each caller owns its buffer;
// the chain only remembers which buffer each file was last bound to.
func (c *Chain) Load(ctx context.Context, name string, row int64, buf columnar.Buffer) error {
	owner := c.owner(name)
	if owner == nil {
		return errors.UnknownColumn(name)
	}
	return owner.load(ctx, name, row, buf)
}

func (c *Chain) load(ctx context.Context, name string, row int64, buf columnar.Buffer) error {
	if buf == nil {
		return errors.Newf(errors.ErrorTypeInternal, "column %q loaded without a buffer", name)
	}
	i, local, err := c.find(row)
	if err != nil {
		return err
	}
	if c.bound[i][name] != buf {
		if err := c.files[i].Bind(name, buf); err != nil {
			return err
		}
		c.bound[i][name] = buf
	}
	return c.files[i].Load(ctx, name, local)
}

// find maps a logical row to a file index and the row within that file.
func (c *Chain) find(row int64) (int, int64, error) {
	if row < 0 || row >= c.Entries() {
		return 0, 0, errors.Newf(errors.ErrorTypeOutOfRange, "row %d outside [0, %d)", row, c.Entries()).
			WithDetail("dataset", c.dataset)
	}
	// First offset greater than row, minus one.
	i := sort.Search(len(c.offsets), func(i int) bool { return c.offsets[i] > row }) - 1
	return i, row - c.offsets[i], nil
}

// Close closes every file of the chain. Friends are left open.
func (c *Chain) Close() error {
	var errs []error
	for _, f := range c.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.files = nil
	c.bound = nil
	c.offsets = []int64{0}
	return goerrors.Join(errs...)
}
