// Package parquet stores datasets in Apache Parquet files through arrow-go.
//
// Column declarations travel in the file's key-value metadata, one
// "strata.column.<name>" entry per column, next to a "strata.dataset" entry
// naming the logical dataset. Array columns are list<T>. Reads decode a single
// column chunk of a single row group at a time.
package parquet

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/remote"
	"github.com/ajitpratap0/strata/pkg/store"
)

const (
	// MetaDataset names the logical dataset held by the file.
	MetaDataset = "strata.dataset"
	// MetaColumnPrefix prefixes the per-column declaration entries.
	MetaColumnPrefix = "strata.column."

	defaultRowGroupLength = 64 * 1024
)

// Backend implements store.Backend over Parquet files.
type Backend struct {
	codec          compress.Compression
	rowGroupLength int64
	fetcher        *remote.Fetcher
	alloc          memory.Allocator
	logger         *zap.Logger
	memoryMap      bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithCompression sets the codec used for new files.
func WithCompression(c compress.Compression) Option {
	return func(b *Backend) { b.codec = c }
}

// WithRowGroupLength caps the rows per row group. Smaller groups mean less
// memory per decoded chunk.
func WithRowGroupLength(n int64) Option {
	return func(b *Backend) {
		if n > 0 {
			b.rowGroupLength = n
		}
	}
}

// WithFetcher enables s3:// and gs:// paths.
func WithFetcher(f *remote.Fetcher) Option {
	return func(b *Backend) { b.fetcher = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithAllocator sets the arrow allocator, mostly for leak checks in tests.
func WithAllocator(a memory.Allocator) Option {
	return func(b *Backend) { b.alloc = a }
}

// WithMemoryMap maps input files into memory instead of reading them.
func WithMemoryMap(on bool) Option {
	return func(b *Backend) { b.memoryMap = on }
}

// New returns a Backend writing snappy-compressed files by default.
func New(opts ...Option) *Backend {
	b := &Backend{
		codec:          compress.Codecs.Snappy,
		rowGroupLength: defaultRowGroupLength,
		alloc:          memory.NewGoAllocator(),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ParseCompression maps a codec name to its parquet codec.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	}
	return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig, "unknown compression codec %q", name)
}

// localPath resolves path to a readable local file, downloading remote
// objects first.
func (b *Backend) localPath(ctx context.Context, path string) (string, error) {
	if !remote.IsRemote(path) {
		return path, nil
	}
	if b.fetcher == nil {
		return "", errors.New(errors.ErrorTypeSourceUnavailable, "remote paths need a fetcher").
			WithDetail("path", path)
	}
	return b.fetcher.Fetch(ctx, path)
}

// Open implements store.Backend.
func (b *Backend) Open(ctx context.Context, path, dataset string) (store.File, error) {
	local, err := b.localPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return openFile(ctx, b, path, local, dataset)
}

// Create implements store.Backend. Nothing touches the destination until the
// sink is closed; Append and Extend load the existing file first and replace
// it atomically.
func (b *Backend) Create(ctx context.Context, path, dataset string, mode store.WriteMode) (store.Sink, error) {
	staged := store.NewTable(dataset)

	if mode != store.Create {
		local, err := b.localPath(ctx, path)
		if err != nil {
			return nil, err
		}
		staged, err = b.readTable(ctx, local, dataset)
		if err != nil {
			return nil, err
		}
	}

	return store.NewStagingSink(staged, mode, func(t *store.Table) error {
		return b.commit(ctx, path, t)
	}), nil
}

func (b *Backend) commit(ctx context.Context, path string, t *store.Table) error {
	if !remote.IsRemote(path) {
		return b.writeTable(path, t)
	}
	if b.fetcher == nil {
		return errors.New(errors.ErrorTypeFile, "remote paths need a fetcher").WithDetail("path", path)
	}

	dir, err := os.MkdirTemp("", "strata-upload-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create upload staging directory")
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, filepath.Base(path))
	if err := b.writeTable(local, t); err != nil {
		return err
	}
	return b.fetcher.Upload(ctx, local, path)
}
