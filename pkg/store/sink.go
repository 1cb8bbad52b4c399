package store

import (
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// CommitFunc persists a finished table. It runs once, from Close.
type CommitFunc func(t *Table) error

// StagingSink collects rows in a Table and hands it to a CommitFunc on Close.
// Backends build their Sink on it and only supply persistence.
type StagingSink struct {
	table  *Table
	mode   WriteMode
	commit CommitFunc
	closed bool
}

// NewStagingSink returns a sink writing into t. For Append and Extend, t
// should already hold the destination's existing content.
func NewStagingSink(t *Table, mode WriteMode, commit CommitFunc) *StagingSink {
	return &StagingSink{table: t, mode: mode, commit: commit}
}

// Table returns the staged table.
func (s *StagingSink) Table() *Table { return s.table }

func (s *StagingSink) Declare(decl columnar.Declaration) (bool, error) {
	if s.closed {
		return false, errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	return s.table.Declare(decl)
}

func (s *StagingSink) Bind(name string, buf columnar.Buffer) error {
	return s.table.Bind(name, buf)
}

// Fill captures one row for every bound column. In Append mode existing
// columns that nobody bound get a zero row.
func (s *StagingSink) Fill() error {
	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	return s.table.Fill(s.mode == Append)
}

func (s *StagingSink) FillColumn(name string) error {
	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	return s.table.FillColumn(name)
}

func (s *StagingSink) Entries() int64 { return s.table.Entries() }

func (s *StagingSink) ColumnEntries(name string) (int64, error) {
	return s.table.ColumnEntries(name)
}

// Close refuses ragged tables, then commits. A second Close is a no-op.
func (s *StagingSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := CheckRagged(s.table.Counts()); err != nil {
		return err
	}
	return s.commit(s.table)
}
