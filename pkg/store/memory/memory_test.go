package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/store"
)

func writeRows(t *testing.T, fs *FS, path string, xs ...float64) {
	t.Helper()
	ctx := context.Background()

	sink, err := fs.Create(ctx, path, "events", store.Create)
	require.NoError(t, err)

	_, err = sink.Declare(columnar.ScalarColumn("x", columnar.Float64))
	require.NoError(t, err)
	buf := columnar.NewBuffer(columnar.Float64, 1)
	require.NoError(t, sink.Bind("x", buf))

	for _, x := range xs {
		buf.SetFloat64(0, x)
		require.NoError(t, sink.Fill())
	}
	require.NoError(t, sink.Close())
}

func TestRoundTrip(t *testing.T) {
	fs := New()
	ctx := context.Background()
	writeRows(t, fs, "a", 1, 2, 3)

	f, err := fs.Open(ctx, "a", "events")
	require.NoError(t, err)
	defer f.Close()

	n, ok := f.NumRows()
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	buf := columnar.NewBuffer(columnar.Float64, 1)
	require.NoError(t, f.Bind("x", buf))
	for row, want := range []float64{1, 2, 3} {
		require.NoError(t, f.Load(ctx, "x", int64(row)))
		assert.Equal(t, want, buf.Float64(0))
	}

	err = f.Load(ctx, "x", 3)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutOfRange))

	err = f.Load(ctx, "missing", 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownColumn))
}

func TestOpenErrors(t *testing.T) {
	fs := New()
	ctx := context.Background()
	writeRows(t, fs, "a", 1)

	_, err := fs.Open(ctx, "b", "events")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnavailable))

	_, err = fs.Open(ctx, "a", "other")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnavailable))

	_, err = fs.Open(ctx, "a", "")
	assert.NoError(t, err)
}

func TestArrayColumnHonoursLength(t *testing.T) {
	fs := New()
	ctx := context.Background()

	sink, err := fs.Create(ctx, "arr", "events", store.Create)
	require.NoError(t, err)
	_, err = sink.Declare(columnar.ScalarColumn("n", columnar.Int32))
	require.NoError(t, err)
	_, err = sink.Declare(columnar.Declaration{Name: "y", Type: columnar.Float32, Arity: 3, LengthColumn: "n"})
	require.NoError(t, err)

	n := columnar.NewBuffer(columnar.Int32, 1)
	y := columnar.NewBuffer(columnar.Float32, 3)
	require.NoError(t, sink.Bind("n", n))
	require.NoError(t, sink.Bind("y", y))

	for _, row := range [][]float64{{1, 2}, {3}, {}, {4, 5, 6}} {
		n.SetInt64(0, int64(len(row)))
		for i, v := range row {
			y.SetFloat64(i, v)
		}
		require.NoError(t, sink.Fill())
	}
	n.SetInt64(0, 9)
	require.NoError(t, sink.Fill())
	require.NoError(t, sink.Close())

	f, err := fs.Open(ctx, "arr", "events")
	require.NoError(t, err)
	decl, ok := f.Column("y")
	require.True(t, ok)
	assert.Equal(t, "y[n]/F", decl.String())

	mt, _ := fs.get("arr")
	col, _ := mt.Column("y")
	var lens []int
	for r := int64(0); r < col.Rows(); r++ {
		s, e := col.Row(r)
		lens = append(lens, e-s)
	}
	assert.Equal(t, []int{2, 1, 0, 3, 3}, lens)
}

func TestAppendKeepsExistingRows(t *testing.T) {
	fs := New()
	ctx := context.Background()
	writeRows(t, fs, "a", 1, 2)

	sink, err := fs.Create(ctx, "a", "events", store.Append)
	require.NoError(t, err)
	existing, err := sink.Declare(columnar.ScalarColumn("x", columnar.Float64))
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, int64(2), sink.Entries())

	buf := columnar.NewBuffer(columnar.Float64, 1)
	require.NoError(t, sink.Bind("x", buf))
	buf.SetFloat64(0, 7)
	require.NoError(t, sink.Fill())

	f, err := fs.Open(ctx, "a", "events")
	require.NoError(t, err)
	n, _ := f.NumRows()
	assert.Equal(t, int64(2), n, "append is invisible until close")

	require.NoError(t, sink.Close())
	f, err = fs.Open(ctx, "a", "events")
	require.NoError(t, err)
	n, _ = f.NumRows()
	assert.Equal(t, int64(3), n)
}

func TestExtendAddsColumn(t *testing.T) {
	fs := New()
	ctx := context.Background()
	writeRows(t, fs, "a", 1, 2)

	sink, err := fs.Create(ctx, "a", "events", store.Extend)
	require.NoError(t, err)
	_, err = sink.Declare(columnar.ScalarColumn("w", columnar.Int64))
	require.NoError(t, err)
	buf := columnar.NewBuffer(columnar.Int64, 1)
	require.NoError(t, sink.Bind("w", buf))

	buf.SetInt64(0, 10)
	require.NoError(t, sink.FillColumn("w"))
	buf.SetInt64(0, 20)
	require.NoError(t, sink.FillColumn("w"))
	require.NoError(t, sink.Close())

	f, err := fs.Open(ctx, "a", "events")
	require.NoError(t, err)
	assert.Len(t, f.Columns(), 2)

	out := columnar.NewBuffer(columnar.Int64, 1)
	require.NoError(t, f.Bind("w", out))
	require.NoError(t, f.Load(ctx, "w", 1))
	assert.Equal(t, int64(20), out.Int64(0))
}

func TestRaggedCloseIsRefused(t *testing.T) {
	fs := New()
	ctx := context.Background()

	sink, err := fs.Create(ctx, "r", "events", store.Create)
	require.NoError(t, err)
	for _, name := range []string{"a", "b"} {
		_, err = sink.Declare(columnar.ScalarColumn(name, columnar.Float64))
		require.NoError(t, err)
		require.NoError(t, sink.Bind(name, columnar.NewBuffer(columnar.Float64, 1)))
	}
	require.NoError(t, sink.FillColumn("a"))
	require.NoError(t, sink.FillColumn("a"))
	require.NoError(t, sink.FillColumn("b"))

	err = sink.Close()
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
	assert.Equal(t, 0, fs.Len())
}

func TestDeclareTypeMismatch(t *testing.T) {
	fs := New()
	ctx := context.Background()
	writeRows(t, fs, "a", 1)

	sink, err := fs.Create(ctx, "a", "events", store.Append)
	require.NoError(t, err)
	_, err = sink.Declare(columnar.ScalarColumn("x", columnar.Int32))
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
}
