// Package testutil provides testing utilities for strata
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/store"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Clock is a manually advanced clock for progress and ETA tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Row is one row of fixture data. Scalars hold a single element.
type Row map[string][]float64

// Table builds an in-memory table from declaration strings and rows. Columns
// missing from a row get an empty row.
func Table(t *testing.T, dataset string, decls []string, rows ...Row) *store.Table {
	t.Helper()

	tbl := store.NewTable(dataset)
	for _, s := range decls {
		d, err := columnar.ParseDeclaration(s)
		require.NoError(t, err)
		_, err = tbl.Declare(d)
		require.NoError(t, err)
	}
	for _, row := range rows {
		for _, d := range tbl.Columns() {
			c, _ := tbl.Column(d.Name)
			vals := row[d.Name]
			if len(vals) == 0 && !d.IsArray() {
				vals = []float64{0}
			}
			c.AppendFloat64s(vals...)
		}
	}
	return tbl
}

// Scalars returns one Row per value of a single scalar column.
func Scalars(name string, vals ...float64) []Row {
	rows := make([]Row, len(vals))
	for i, v := range vals {
		rows[i] = Row{name: {v}}
	}
	return rows
}
