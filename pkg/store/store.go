// Package store defines the boundary between the dataset reader and writer and
// the files that actually hold column data. Implementations live in the
// parquet and memory subpackages.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// WriteMode selects how a Sink treats an existing destination.
type WriteMode int

const (
	// Create starts a new dataset, replacing anything at the path.
	Create WriteMode = iota
	// Append adds rows to an existing dataset with the same columns.
	Append
	// Extend adds new columns alongside the rows already present.
	Extend
)

func (m WriteMode) String() string {
	switch m {
	case Create:
		return "create"
	case Append:
		return "append"
	case Extend:
		return "extend"
	}
	return fmt.Sprintf("WriteMode(%d)", int(m))
}

// ParseWriteMode parses "create", "append" or "extend".
func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(s) {
	case "", "create", "recreate":
		return Create, nil
	case "append", "update":
		return Append, nil
	case "extend", "expand":
		return Extend, nil
	}
	return Create, errors.Newf(errors.ErrorTypeConfig, "unknown write mode %q", s)
}

// Backend opens files for reading and creates sinks for writing.
type Backend interface {
	// Open opens path and checks that it holds the named dataset. An empty
	// dataset name accepts any file.
	Open(ctx context.Context, path, dataset string) (File, error)
	Create(ctx context.Context, path, dataset string, mode WriteMode) (Sink, error)
}

// File is one opened backing file.
type File interface {
	Path() string
	Dataset() string
	// NumRows returns the row count. ok is false when the count cannot be
	// obtained without a scan.
	NumRows() (n int64, ok bool)
	Columns() []columnar.Declaration
	Column(name string) (columnar.Declaration, bool)
	// Bind registers buf as the destination for subsequent Loads of name,
	// replacing any earlier buffer.
	Bind(name string, buf columnar.Buffer) error
	// Load decodes row localRow of the named column into its bound buffer.
	// Array elements beyond the buffer's capacity are dropped.
	Load(ctx context.Context, name string, localRow int64) error
	Close() error
}

// Sink is the write side of a backing file.
type Sink interface {
	// Declare registers a column. existing is true when the column was
	// already present in the destination (append sessions).
	Declare(decl columnar.Declaration) (existing bool, err error)
	// Bind registers the buffer whose contents are captured on Fill.
	Bind(name string, buf columnar.Buffer) error
	// Fill captures one row for every bound column.
	Fill() error
	// FillColumn captures one row for a single column.
	FillColumn(name string) error
	// Entries returns the number of rows in the dataset.
	Entries() int64
	ColumnEntries(name string) (int64, error)
	Close() error
}

// CheckRagged returns a type_mismatch error when the columns hold different
// row counts. Sinks call it before writing so an uneven independent commit is
// refused rather than padded.
func CheckRagged(counts map[string]int64) error {
	if len(counts) < 2 {
		return nil
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	first := counts[names[0]]
	for _, name := range names[1:] {
		if counts[name] != first {
			parts := make([]string, len(names))
			for i, n := range names {
				parts[i] = fmt.Sprintf("%s=%d", n, counts[n])
			}
			return errors.New(errors.ErrorTypeTypeMismatch, "columns hold different row counts").
				WithDetail("counts", strings.Join(parts, ","))
		}
	}
	return nil
}

// Entries returns the row count of the column set, taking the largest column.
func Entries(counts map[string]int64) int64 {
	var n int64
	for _, c := range counts {
		if c > n {
			n = c
		}
	}
	return n
}

// ElementCount returns how many elements a row of decl holds given the value
// of its length column. Negative lengths count as zero.
func ElementCount(decl columnar.Declaration, length int64) int {
	if decl.LengthColumn != "" {
		if length < 0 {
			return 0
		}
		return int(length)
	}
	if decl.Arity > 1 {
		return decl.Arity
	}
	return 1
}
