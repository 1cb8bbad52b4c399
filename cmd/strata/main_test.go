package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/dataset"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/store/parquet"
	"github.com/ajitpratap0/strata/pkg/writer"
)

// writeInput writes a small DecayTree parquet file and returns its path.
func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run1.parquet")
	w, err := writer.New(context.Background(), parquet.New(), path, "DecayTree",
		writer.WithColumns("x/D", "n/I", "y[n]/F"))
	require.NoError(t, err)
	for _, row := range []map[string]any{
		{"x": 1.0, "n": 2, "y": []float64{2, 3}},
		{"x": 4.0, "n": 1, "y": []float64{5}},
		{"x": 6.0, "n": 0, "y": []float64{}},
	} {
		require.NoError(t, w.Commit(row))
	}
	require.NoError(t, w.Close())
	return path
}

// run executes the CLI with args and returns what it printed on stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, a := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	if stopErr := a.stop(); err == nil {
		err = stopErr
	}
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Strata v"+version+"\n"))
}

func TestColumnsCommand(t *testing.T) {
	path := writeInput(t)

	out, err := run(t, "columns", "-d", "DecayTree", path)
	require.NoError(t, err)
	assert.Equal(t, "x/D\nn/I\ny[n]/F\n", out)

	out, err = run(t, "columns", "-d", "DecayTree", "--search", "y", path)
	require.NoError(t, err)
	assert.Equal(t, "y[n]/F\n", out)
}

func TestCountCommand(t *testing.T) {
	path := writeInput(t)

	out, err := run(t, "count", "-d", "DecayTree", "-s", "x > 2", path)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	t.Setenv("STRATA_SELECTION", "n > 0")
	out, err = run(t, "count", "-d", "DecayTree", path)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestMinMaxCommand(t *testing.T) {
	path := writeInput(t)

	out, err := run(t, "minmax", "-d", "DecayTree", "y", path)
	require.NoError(t, err)
	assert.Equal(t, "2 5\n", out)

	out, err = run(t, "minmax", "-d", "DecayTree", "x * 2", path)
	require.NoError(t, err)
	assert.Equal(t, "2 12\n", out)
}

func TestScanCommand(t *testing.T) {
	path := writeInput(t)

	out, err := run(t, "scan", "-d", "DecayTree", "-q", "--columns", "x,y", path)
	require.NoError(t, err)
	assert.Equal(t, "0\tx=1\ty=[2 3]\n1\tx=4\ty=[5]\n2\tx=6\ty=[]\n", out)

	out, err = run(t, "scan", "-d", "DecayTree", "-q", "--json", "--columns", "x,n", "-s", "x > 2", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"entry":1,"x":4,"n":1}`, lines[0])
	assert.JSONEq(t, `{"entry":2,"x":6,"n":0}`, lines[1])
}

func TestApplyCommand(t *testing.T) {
	path := writeInput(t)
	dir := t.TempDir()

	model := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(model,
		[]byte(`{"name": "BDT", "inputs": ["x", "n"], "weights": [0.5, 1], "bias": 1}`), 0o600))
	output := filepath.Join(dir, "scored.parquet")

	_, err := run(t, "apply", "-d", "DecayTree", "-q",
		"--model", model, "--output", output, "--columns", "x,y", "-s", "x > 2", path)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := dataset.Open(ctx, parquet.New(), "DecayTree", []string{output})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"x", "n", "y", "BDT"}, s.ListColumns())

	var scores, ys [][]float64
	for _, err := range s.Entries(ctx, dataset.Quiet()) {
		require.NoError(t, err)
		v, err := s.Read(ctx, "BDT")
		require.NoError(t, err)
		scores = append(scores, v.Float64s())
		v, err = s.Read(ctx, "y")
		require.NoError(t, err)
		ys = append(ys, v.Float64s())
	}
	assert.Equal(t, [][]float64{{4}, {4}}, scores)
	assert.Equal(t, [][]float64{{5}, {}}, ys)
}

func TestApplyNeedsOutput(t *testing.T) {
	path := writeInput(t)
	_, err := run(t, "apply", "-d", "DecayTree", "--columns", "x", path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNoInputs(t *testing.T) {
	_, err := run(t, "count", "-d", "DecayTree")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "strata.yaml")
	cfg := config.New("DecayTree")
	cfg.Reader.Files = []string{"a.parquet"}
	cfg.Reader.Limit = 10
	cfg.Writer.Mode = "append"
	require.NoError(t, config.Save(file, cfg))

	t.Setenv("STRATA_LIMIT", "25")
	t.Setenv("STRATA_NO_REMAINING", "true")
	t.Setenv("STRATA_MMAP", "true")

	v := viper.New()
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.Set("config", file)
	v.Set("alias", []string{"pt=B_PT"})

	got, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "DecayTree", got.Dataset)
	assert.Equal(t, []string{"a.parquet"}, got.Reader.Files)
	assert.Equal(t, int64(25), got.Reader.Limit)
	assert.False(t, got.Reader.Remaining)
	assert.True(t, got.Reader.MemoryMap)
	assert.Equal(t, "append", got.Writer.Mode)
	assert.Equal(t, "B_PT", got.Reader.Aliases["pt"])

	v.Set("alias", []string{"broken"})
	_, err = loadConfig(v)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
