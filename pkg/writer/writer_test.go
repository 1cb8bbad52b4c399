package writer

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/dataset"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/store"
	"github.com/ajitpratap0/strata/pkg/store/memory"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

func newWriter(t *testing.T, fs *memory.FS, path string, opts ...Option) *Writer {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.TestLogger(t))}, opts...)
	w, err := New(context.Background(), fs, path, "events", opts...)
	require.NoError(t, err)
	return w
}

// readAll returns every row of column name in path.
func readAll(t *testing.T, fs *memory.FS, path, name string) [][]float64 {
	t.Helper()
	ctx := context.Background()
	s, err := dataset.Open(ctx, fs, "events", []string{path})
	require.NoError(t, err)
	defer s.Close()

	var rows [][]float64
	for _, err := range s.Entries(ctx, dataset.Quiet()) {
		require.NoError(t, err)
		v, err := s.Read(ctx, name)
		require.NoError(t, err)
		rows = append(rows, v.Float64s())
	}
	return rows
}

func TestEndToEndArrayColumn(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out")
	require.NoError(t, w.Declare("x"))
	require.NoError(t, w.Declare("n", Type(columnar.Int32)))
	require.NoError(t, w.Declare("y", Arity(4), LengthFrom("n")))

	for _, row := range []map[string]any{
		{"x": 1.0, "y": []float64{2.0, 3.0}, "n": 2},
		{"x": 4.0, "y": []float64{5.0}, "n": 1},
		{"x": 6.0, "y": []float64{}, "n": 0},
	} {
		require.NoError(t, w.Commit(row))
	}
	assert.Equal(t, int64(3), w.Entries())
	require.NoError(t, w.Close())

	assert.Equal(t, [][]float64{{1}, {4}, {6}}, readAll(t, fs, "out", "x"))
	assert.Equal(t, [][]float64{{2, 3}, {5}, {}}, readAll(t, fs, "out", "y"))
}

func TestUnknownColumnIsDiagnosed(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out")
	require.NoError(t, w.Declare("x"))

	before := promtest.ToFloat64(metrics.WriterDiagnostics.WithLabelValues("events", "unknown_column"))

	err := w.Set("bogus", 1.0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownColumn))

	require.NoError(t, w.Commit(map[string]any{"x": 1.0, "bogus": 2.0}))
	assert.Equal(t, 2, w.Diagnostics())
	assert.Equal(t, int64(1), w.Entries())
	assert.Equal(t, before+2, promtest.ToFloat64(metrics.WriterDiagnostics.WithLabelValues("events", "unknown_column")))
	require.NoError(t, w.Close())
}

func TestDuplicateDeclaration(t *testing.T) {
	w := newWriter(t, memory.New(), "out")
	require.NoError(t, w.Declare("x"))
	err := w.Declare("x", Type(columnar.Float32))
	assert.True(t, errors.IsType(err, errors.ErrorTypeDuplicateColumn))

	err = w.DeclareString("bad[/F")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSetSemantics(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out", WithColumns("p[3]/D", "a", "b/I", "flag/O"))
	assert.Equal(t, []string{"p", "a", "b", "flag"}, w.Columns())

	require.NoError(t, w.Commit(map[string]any{"p": []float64{1, 2, 3}, "a": 1.0, "b": int64(2), "flag": true}))
	// Scalars land in element 0; unset columns keep their last value.
	require.NoError(t, w.Commit(map[string]any{"p": 9.0, "a": 3.0}))
	// Sequences are truncated to the arity.
	require.NoError(t, w.Commit(map[string]any{"p": []int{4, 5, 6, 7}, "b": uint8(7), "flag": false}))
	require.NoError(t, w.Commit(map[string]any{"p": [2]float32{8, 8}}))

	err := w.Set("a", "not a number")
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
	require.NoError(t, w.Commit(map[string]any{"a": struct{}{}}))
	assert.Equal(t, 2, w.Diagnostics())
	require.NoError(t, w.Close())

	assert.Equal(t, [][]float64{{1, 2, 3}, {9, 2, 3}, {4, 5, 6}, {8, 8, 6}, {8, 8, 6}}, readAll(t, fs, "out", "p"))
	assert.Equal(t, [][]float64{{1}, {3}, {3}, {3}, {3}}, readAll(t, fs, "out", "a"))
	assert.Equal(t, [][]float64{{2}, {2}, {7}, {7}, {7}}, readAll(t, fs, "out", "b"))
	assert.Equal(t, [][]float64{{1}, {1}, {0}, {0}, {0}}, readAll(t, fs, "out", "flag"))
}

func TestGrowingArray(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out", WithColumns("n/I", "v[n]/D"))
	require.NoError(t, w.Commit(map[string]any{"n": 1, "v": []float64{1}}))
	require.NoError(t, w.Commit(map[string]any{"n": 5, "v": []float64{1, 2, 3, 4, 5}}))
	require.NoError(t, w.Close())

	assert.Equal(t, [][]float64{{1}, {1, 2, 3, 4, 5}}, readAll(t, fs, "out", "v"))
}

func TestAppend(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out", WithColumns("x", "y"))
	require.NoError(t, w.Commit(map[string]any{"x": 1.0, "y": 10.0}))
	require.NoError(t, w.Commit(map[string]any{"x": 2.0, "y": 20.0}))
	require.NoError(t, w.Close())

	w = newWriter(t, fs, "out", WithMode(store.Append))
	require.NoError(t, w.Declare("x"))
	assert.Equal(t, int64(2), w.Entries())
	require.NoError(t, w.Commit(map[string]any{"x": 3.0}))
	require.NoError(t, w.Close())

	assert.Equal(t, [][]float64{{1}, {2}, {3}}, readAll(t, fs, "out", "x"))
	assert.Equal(t, [][]float64{{10}, {20}, {0}}, readAll(t, fs, "out", "y"))
}

func TestExtend(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out", WithColumns("x"))
	for _, x := range []float64{1, 2, 3} {
		require.NoError(t, w.Commit(map[string]any{"x": x}))
	}
	require.NoError(t, w.Close())

	w = newWriter(t, fs, "out", WithMode(store.Extend))
	require.NoError(t, w.Declare("score", Type(columnar.Float32)))
	for _, s := range []float64{0.5, 0.25, 0.125} {
		require.NoError(t, w.Commit(map[string]any{"score": s}))
	}
	n, err := w.ColumnEntries("score")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, w.Close())

	assert.Equal(t, [][]float64{{1}, {2}, {3}}, readAll(t, fs, "out", "x"))
	assert.Equal(t, [][]float64{{0.5}, {0.25}, {0.125}}, readAll(t, fs, "out", "score"))
}

func TestExtendRefusesRaggedColumns(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out", WithColumns("x"))
	for _, x := range []float64{1, 2, 3} {
		require.NoError(t, w.Commit(map[string]any{"x": x}))
	}
	require.NoError(t, w.Close())

	w = newWriter(t, fs, "out", WithMode(store.Extend))
	require.NoError(t, w.Declare("score"))
	require.NoError(t, w.Commit(map[string]any{"score": 1.0}))

	err := w.Close()
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))

	s, err := dataset.Open(context.Background(), fs, "events", []string{"out"})
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.Has("score"))
	assert.Equal(t, int64(3), s.Rows())
}

func TestClosedWriter(t *testing.T) {
	w := newWriter(t, memory.New(), "out", WithColumns("x"))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.True(t, errors.IsType(w.Set("x", 1.0), errors.ErrorTypeFile))
	assert.True(t, errors.IsType(w.Commit(nil), errors.ErrorTypeFile))
	assert.True(t, errors.IsType(w.Declare("y"), errors.ErrorTypeFile))
}

func TestCommitModeDefaults(t *testing.T) {
	fs := memory.New()
	w := newWriter(t, fs, "out", WithColumns("x"))
	assert.Equal(t, Unified, *w.commit)
	require.NoError(t, w.Close())

	w = newWriter(t, fs, "out", WithMode(store.Extend))
	assert.Equal(t, Independent, *w.commit)

	w = newWriter(t, fs, "out2", WithCommit(Independent))
	assert.Equal(t, Independent, *w.commit)
	assert.Equal(t, "independent", Independent.String())
	assert.Equal(t, "unified", Unified.String())
}
