package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"print every", func(c *Config) { c.Reader.PrintEvery = 0 }},
		{"start at", func(c *Config) { c.Reader.StartAt = -1 }},
		{"friend without files", func(c *Config) { c.Reader.Friends = []FriendConfig{{Dataset: "w"}} }},
		{"write mode", func(c *Config) { c.Writer.Mode = "truncate" }},
		{"commit mode", func(c *Config) { c.Writer.Commit = "sometimes" }},
		{"row group length", func(c *Config) { c.Writer.RowGroupLength = -1 }},
		{"sampling rate", func(c *Config) { c.Observability.Tracing.SamplingRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New("events")
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := New("events")
	cfg.Reader.Files = []string{"a.parquet", "b.parquet"}
	cfg.Reader.Aliases["pt"] = "B_PT"
	cfg.Writer.Columns = []string{"B_M"}
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "events", loaded.Dataset)
	assert.Equal(t, cfg.Reader.Files, loaded.Reader.Files)
	assert.Equal(t, "B_PT", loaded.Reader.Aliases["pt"])
	assert.Equal(t, "events", loaded.OutputDataset())
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), "events")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reader: [unclosed"), 0o600))
	_, err = LoadFile(path, "events")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("STRATA_TEST_DIR", "/data")
	assert.Equal(t, "/data/a and /data/b", substituteEnvVars("${STRATA_TEST_DIR}/a and ${STRATA_TEST_DIR}/b"))
	assert.Equal(t, "x/", substituteEnvVars("x/${STRATA_TEST_UNSET}"))
	assert.Equal(t, "${open", substituteEnvVars("${open"))
}
