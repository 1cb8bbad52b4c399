package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/errors"
)

func TestParse(t *testing.T) {
	loc, err := Parse("s3://lhcb-data/2024/run1.parquet")
	require.NoError(t, err)
	assert.Equal(t, Location{Scheme: "s3", Bucket: "lhcb-data", Key: "2024/run1.parquet"}, loc)
	assert.Equal(t, "s3://lhcb-data/2024/run1.parquet", loc.String())

	loc, err = Parse("gs://bucket/a.parquet")
	require.NoError(t, err)
	assert.Equal(t, SchemeGCS, loc.Scheme)

	for _, bad := range []string{"/local/file", "http://x/y", "s3://bucket", "s3:///key", "gs://bucket/dir/"} {
		_, err := Parse(bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), bad)
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("s3://b/k"))
	assert.True(t, IsRemote("gs://b/k"))
	assert.False(t, IsRemote("data/run.parquet"))
	assert.False(t, IsRemote("s3:/b/k"))
}

func TestFetchUsesCache(t *testing.T) {
	dir := t.TempDir()
	f := NewFetcher(Config{CacheDir: dir}, nil)
	defer f.Close()

	loc := Location{Scheme: "s3", Bucket: "b", Key: "dir/run.parquet"}
	local := f.CachePath(loc)
	assert.Equal(t, filepath.Join(dir, "s3", "b", "dir", "run.parquet"), local)

	require.NoError(t, os.MkdirAll(filepath.Dir(local), 0o755))
	require.NoError(t, os.WriteFile(local, []byte("cached"), 0o644))

	got, err := f.Fetch(context.Background(), loc.String())
	require.NoError(t, err)
	assert.Equal(t, local, got)
}
